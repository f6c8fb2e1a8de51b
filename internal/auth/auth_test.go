package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chessticulate/chessticulate-api/internal/config"
	apperrors "github.com/chessticulate/chessticulate-api/internal/errors"
	"github.com/chessticulate/chessticulate-api/internal/models"
)

type fakeUsers struct {
	users map[int64]*models.User
}

func (f *fakeUsers) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	return f.users[id], nil
}

func newTestService(users *fakeUsers) *Service {
	return NewService(&config.AuthConfig{
		Secret:       "test-secret",
		TokenTTLDays: 7,
		BcryptCost:   10, // keep tests fast
	}, users)
}

func TestHashAndCheckPassword(t *testing.T) {
	svc := newTestService(&fakeUsers{})

	hash, err := svc.HashPassword("Sup3r$ecret")
	require.NoError(t, err)
	assert.NotEqual(t, "Sup3r$ecret", hash)

	assert.True(t, svc.CheckPassword(hash, "Sup3r$ecret"))
	assert.False(t, svc.CheckPassword(hash, "wrong"))
}

func TestMintAndVerifyToken(t *testing.T) {
	user := &models.User{ID: 42, Name: "fred"}
	svc := newTestService(&fakeUsers{users: map[int64]*models.User{42: user}})

	token, err := svc.MintToken(user)
	require.NoError(t, err)

	claims, err := svc.VerifyToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "fred", claims.UserName)
	assert.NotEmpty(t, claims.ID)
}

func TestVerifyTokenRejectsExpired(t *testing.T) {
	user := &models.User{ID: 42, Name: "fred"}
	svc := newTestService(&fakeUsers{users: map[int64]*models.User{42: user}})

	token, err := svc.MintToken(user)
	require.NoError(t, err)

	// jump past the 7 day TTL
	svc.now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }

	_, err = svc.VerifyToken(context.Background(), token)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeAuth))
}

func TestVerifyTokenRejectsWrongSecret(t *testing.T) {
	user := &models.User{ID: 42, Name: "fred"}
	minter := newTestService(&fakeUsers{users: map[int64]*models.User{42: user}})
	token, err := minter.MintToken(user)
	require.NoError(t, err)

	verifier := NewService(&config.AuthConfig{
		Secret: "different-secret", TokenTTLDays: 7, BcryptCost: 10,
	}, &fakeUsers{users: map[int64]*models.User{42: user}})

	_, err = verifier.VerifyToken(context.Background(), token)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeAuth))
}

func TestVerifyTokenRejectsGarbage(t *testing.T) {
	svc := newTestService(&fakeUsers{})
	_, err := svc.VerifyToken(context.Background(), "not.a.token")
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeAuth))
}

func TestVerifyTokenRejectsDeletedUser(t *testing.T) {
	user := &models.User{ID: 42, Name: "fred"}
	users := &fakeUsers{users: map[int64]*models.User{42: user}}
	svc := newTestService(users)

	token, err := svc.MintToken(user)
	require.NoError(t, err)

	user.Deleted = true
	_, err = svc.VerifyToken(context.Background(), token)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeAuth))

	// a token for an account that never existed fails the same way
	delete(users.users, 42)
	_, err = svc.VerifyToken(context.Background(), token)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeAuth))
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"valid", "Sup3r$ecret", false},
		{"too short", "Ab1!", true},
		{"too long", "Aa1!" + string(make([]byte, 64)), true},
		{"no uppercase", "sup3r$ecret", true},
		{"no lowercase", "SUP3R$ECRET", true},
		{"no digit", "Super$ecret", true},
		{"no special", "Sup3rSecret", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
			} else {
				require.NoError(t, err)
			}
		})
	}
}
