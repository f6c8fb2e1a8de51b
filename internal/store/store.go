// Package store implements relational persistence for users, invitations,
// challenges, games and moves on top of database/sql. It runs against
// SQLite (modernc.org/sqlite, pure Go) or PostgreSQL (pgx stdlib driver);
// all queries are written with ? placeholders and rebound for Postgres.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	sqlite "modernc.org/sqlite"

	"github.com/chessticulate/chessticulate-api/internal/config"
	apperrors "github.com/chessticulate/chessticulate-api/internal/errors"
	"github.com/chessticulate/chessticulate-api/internal/logging"
)

// DefaultListLimit bounds list queries when the caller does not set one.
const DefaultListLimit = 10

// MaxListLimit is the hard cap on list query sizes.
const MaxListLimit = 50

// Store wraps the sql database handle and the driver dialect.
type Store struct {
	db      *sql.DB
	dialect string // "sqlite" or "postgres"
	log     logging.Logger
}

// Open connects to the configured database and verifies the connection.
func Open(ctx context.Context, cfg *config.DatabaseConfig, log logging.Logger) (*Store, error) {
	driverName := cfg.Driver
	if driverName == "postgres" {
		driverName = "pgx"
	}

	db, err := sql.Open(driverName, cfg.DSN)
	if err != nil {
		return nil, apperrors.NewStorageError("open", "failed to open database", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db, dialect: cfg.Driver, log: log.WithComponent("store")}

	if cfg.Driver == "sqlite" {
		// WAL keeps readers unblocked during writes; busy_timeout covers
		// the writer lock handoff under concurrent requests.
		for _, pragma := range []string{
			"PRAGMA journal_mode = WAL",
			"PRAGMA busy_timeout = 5000",
			"PRAGMA foreign_keys = ON",
		} {
			if _, err := db.ExecContext(ctx, pragma); err != nil {
				db.Close()
				return nil, apperrors.NewStorageError("pragma", "failed to configure sqlite", err)
			}
		}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, apperrors.NewStorageError("ping", "database unreachable", err)
	}

	s.log.Info(ctx, "database connected", "driver", cfg.Driver)
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports database reachability. The readiness probe consumes this.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// rebind rewrites ? placeholders to $1..$n for the postgres dialect.
func (s *Store) rebind(query string) string {
	if s.dialect != "postgres" {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// exec runs a statement with placeholder rebinding.
func (s *Store) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(query), args...)
}

// query runs a query with placeholder rebinding.
func (s *Store) query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.rebind(query), args...)
}

// queryRow runs a single-row query with placeholder rebinding.
func (s *Store) queryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(query), args...)
}

// withTx runs fn inside a transaction, committing on nil error.
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.NewStorageError("begin", "failed to begin transaction", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.Warn(ctx, rbErr, "transaction rollback failed")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewStorageError("commit", "failed to commit transaction", err)
	}
	return nil
}

// lastInsertID returns the id of a freshly inserted row. Postgres has no
// LastInsertId, so inserts there append RETURNING id and scan instead.
func (s *Store) insertReturningID(ctx context.Context, tx *sql.Tx, query string, args ...interface{}) (int64, error) {
	if s.dialect == "postgres" {
		var id int64
		row := tx.QueryRowContext(ctx, s.rebind(query+" RETURNING id"), args...)
		if err := row.Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// isUniqueViolation detects duplicate-key failures across both drivers.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		// 2067 = SQLITE_CONSTRAINT_UNIQUE, 1555 = SQLITE_CONSTRAINT_PRIMARYKEY
		return sqliteErr.Code() == 2067 || sqliteErr.Code() == 1555
	}

	return false
}

// nowUTC returns the current time truncated for stable storage round-trips.
func nowUTC() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// clampLimit applies the default and maximum list limits.
func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// orderClause builds an ORDER BY for a whitelisted column.
func orderClause(column string, allowed map[string]string, fallback string, reverse bool) string {
	col, ok := allowed[column]
	if !ok {
		col = fallback
	}
	dir := "ASC"
	if reverse {
		dir = "DESC"
	}
	return fmt.Sprintf(" ORDER BY %s %s", col, dir)
}
