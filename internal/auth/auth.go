// Package auth covers credential hashing and JWT handling for the API.
package auth

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/chessticulate/chessticulate-api/internal/config"
	apperrors "github.com/chessticulate/chessticulate-api/internal/errors"
	"github.com/chessticulate/chessticulate-api/internal/models"
)

// Claims is the token payload issued at login.
type Claims struct {
	UserID   int64  `json:"user_id"`
	UserName string `json:"user_name"`
	jwt.RegisteredClaims
}

// UserLoader resolves a user ID to its current record. The store satisfies
// this; token verification uses it to reject tokens of deleted accounts.
type UserLoader interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// Service mints and verifies tokens and hashes passwords.
type Service struct {
	secret     []byte
	ttl        time.Duration
	bcryptCost int
	users      UserLoader
	now        func() time.Time
}

// NewService builds an auth service from the configured secret, token TTL
// and bcrypt cost.
func NewService(cfg *config.AuthConfig, users UserLoader) *Service {
	return &Service{
		secret:     []byte(cfg.Secret),
		ttl:        time.Duration(cfg.TokenTTLDays) * 24 * time.Hour,
		bcryptCost: cfg.BcryptCost,
		users:      users,
		now:        time.Now,
	}
}

// HashPassword derives a bcrypt hash at the configured cost.
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", apperrors.NewInternalError("hash_password", "failed to hash password", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the stored hash.
func (s *Service) CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// MintToken issues a signed HS256 token for the user.
func (s *Service) MintToken(user *models.User) (string, error) {
	now := s.now()
	claims := Claims{
		UserID:   user.ID,
		UserName: user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", apperrors.NewInternalError("mint_token", "failed to sign token", err)
	}
	return signed, nil
}

// VerifyToken parses and validates a token and confirms the subject account
// still exists and is not deleted. Returns the verified claims.
func (s *Service) VerifyToken(ctx context.Context, tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperrors.NewAuthError("bad_signing_method", "unexpected token signing method")
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, apperrors.NewAuthError("invalid_token", "invalid or expired token")
	}

	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || user.Deleted {
		return nil, apperrors.NewAuthError("invalid_token", "invalid or expired token")
	}
	return claims, nil
}

const (
	// MinPasswordLength and MaxPasswordLength bound accepted passwords.
	MinPasswordLength = 8
	MaxPasswordLength = 64

	specialChars = `!@#$%^&*()_+-=[]{};':"\|,.<>/?~` + "`"
)

// ValidatePassword enforces the signup password policy: length within
// bounds plus at least one uppercase letter, one lowercase letter, one
// digit and one special character.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength || len(password) > MaxPasswordLength {
		return apperrors.NewValidationError("weak_password",
			"password must be between 8 and 64 characters")
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune(specialChars, r):
			special = true
		}
	}
	if !upper || !lower || !digit || !special {
		return apperrors.NewValidationError("weak_password",
			"password must contain uppercase, lowercase, digit and special characters")
	}
	return nil
}
