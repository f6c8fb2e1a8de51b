package store

import (
	"context"
	"database/sql"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	apperrors "github.com/chessticulate/chessticulate-api/internal/errors"
	"github.com/chessticulate/chessticulate-api/internal/models"
)

var foldCaser = cases.Fold()

// CanonicalEmail normalizes an email for uniqueness checks: NFKC
// normalization plus Unicode case folding. "Fred@Example.COM" and
// "fred@example.com" collide.
func CanonicalEmail(email string) string {
	return foldCaser.String(norm.NFKC.String(strings.TrimSpace(email)))
}

const userColumns = `id, name, email, password_hash, deleted, date_joined, wins, draws, losses`

func scanUser(row interface{ Scan(...interface{}) error }) (*models.User, error) {
	var u models.User
	var email, hash sql.NullString
	err := row.Scan(&u.ID, &u.Name, &email, &hash, &u.Deleted, &u.DateJoined,
		&u.Wins, &u.Draws, &u.Losses)
	if err != nil {
		return nil, err
	}
	u.Email = email.String
	u.PasswordHash = hash.String
	return &u, nil
}

// CreateUser inserts a new account. Name and email collisions surface as
// conflict errors.
func (s *Store) CreateUser(ctx context.Context, name, email, passwordHash string) (*models.User, error) {
	var user *models.User
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		id, err := s.insertReturningID(ctx, tx,
			`INSERT INTO users (name, email, password_hash, deleted, date_joined, wins, draws, losses)
			 VALUES (?, ?, ?, FALSE, ?, 0, 0, 0)`,
			name, CanonicalEmail(email), passwordHash, nowUTC())
		if err != nil {
			if isUniqueViolation(err) {
				return apperrors.NewConflictError("user_exists", "user with same name or email already exists")
			}
			return apperrors.NewStorageError("insert_user", "failed to create user", err)
		}

		row := tx.QueryRowContext(ctx, s.rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
		user, err = scanUser(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByID retrieves a user by id. Missing users return (nil, nil);
// deleted users are returned so callers can distinguish deleted from absent.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	row := s.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewStorageError("get_user", "failed to load user", err)
	}
	return user, nil
}

// GetUserByName retrieves a non-deleted user by name.
func (s *Store) GetUserByName(ctx context.Context, name string) (*models.User, error) {
	row := s.queryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE name = ? AND deleted = FALSE`, name)
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewStorageError("get_user", "failed to load user", err)
	}
	return user, nil
}

// GetUserByEmail retrieves a non-deleted user by canonicalized email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := s.queryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? AND deleted = FALSE`,
		CanonicalEmail(email))
	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewStorageError("get_user", "failed to load user", err)
	}
	return user, nil
}

// UserFilter narrows ListUsers.
type UserFilter struct {
	ID      *int64
	Name    *string
	Skip    int
	Limit   int
	OrderBy string // "date_joined" (default), "name", "wins"
	Reverse bool
}

var userOrderColumns = map[string]string{
	"date_joined": "date_joined",
	"name":        "name",
	"wins":        "wins",
}

// ListUsers retrieves non-deleted users matching the filter.
func (s *Store) ListUsers(ctx context.Context, filter UserFilter) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE deleted = FALSE`
	args := []interface{}{}

	if filter.ID != nil {
		query += ` AND id = ?`
		args = append(args, *filter.ID)
	}
	if filter.Name != nil {
		query += ` AND name = ?`
		args = append(args, *filter.Name)
	}

	query += orderClause(filter.OrderBy, userOrderColumns, "date_joined", filter.Reverse)
	query += ` LIMIT ? OFFSET ?`
	args = append(args, clampLimit(filter.Limit), filter.Skip)

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStorageError("list_users", "failed to list users", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, apperrors.NewStorageError("list_users", "failed to scan user", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// SoftDeleteUser marks a user deleted and strips email and password. The
// row survives so finished games keep their player references. Returns
// false when the user is missing or already deleted.
func (s *Store) SoftDeleteUser(ctx context.Context, id int64) (bool, error) {
	res, err := s.exec(ctx,
		`UPDATE users SET deleted = TRUE, email = NULL, password_hash = NULL
		 WHERE id = ? AND deleted = FALSE`, id)
	if err != nil {
		return false, apperrors.NewStorageError("delete_user", "failed to delete user", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperrors.NewStorageError("delete_user", "failed to read rowcount", err)
	}
	return n == 1, nil
}
