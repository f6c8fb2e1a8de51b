package store

import (
	"context"
	"database/sql"

	apperrors "github.com/chessticulate/chessticulate-api/internal/errors"
)

// migration is one schema step. SQL differing between dialects (serial
// primary keys, mostly) is generated per dialect.
type migration struct {
	version int
	name    string
	up      func(dialect string) []string
}

// pk returns the autoincrementing primary key column for the dialect.
func pk(dialect string) string {
	if dialect == "postgres" {
		return "id BIGSERIAL PRIMARY KEY"
	}
	return "id INTEGER PRIMARY KEY AUTOINCREMENT"
}

var migrations = []migration{
	{
		version: 1,
		name:    "users",
		up: func(d string) []string {
			return []string{
				`CREATE TABLE users (
					` + pk(d) + `,
					name TEXT NOT NULL,
					email TEXT,
					password_hash TEXT,
					deleted BOOLEAN NOT NULL DEFAULT FALSE,
					date_joined TIMESTAMP NOT NULL,
					wins INTEGER NOT NULL DEFAULT 0,
					draws INTEGER NOT NULL DEFAULT 0,
					losses INTEGER NOT NULL DEFAULT 0
				)`,
				`CREATE UNIQUE INDEX idx_users_name ON users (name)`,
				`CREATE UNIQUE INDEX idx_users_email ON users (email)`,
			}
		},
	},
	{
		version: 2,
		name:    "invitations",
		up: func(d string) []string {
			return []string{
				`CREATE TABLE invitations (
					` + pk(d) + `,
					from_id BIGINT NOT NULL REFERENCES users (id),
					to_id BIGINT NOT NULL REFERENCES users (id),
					game_type TEXT NOT NULL,
					status TEXT NOT NULL DEFAULT 'PENDING',
					date_sent TIMESTAMP NOT NULL,
					date_answered TIMESTAMP
				)`,
				`CREATE INDEX idx_invitations_to ON invitations (to_id, status)`,
				`CREATE INDEX idx_invitations_from ON invitations (from_id, status)`,
			}
		},
	},
	{
		version: 3,
		name:    "games",
		up: func(d string) []string {
			return []string{
				`CREATE TABLE games (
					` + pk(d) + `,
					game_type TEXT NOT NULL DEFAULT 'CHESS',
					invitation_id BIGINT REFERENCES invitations (id),
					white BIGINT NOT NULL REFERENCES users (id),
					black BIGINT NOT NULL REFERENCES users (id),
					whomst BIGINT NOT NULL REFERENCES users (id),
					winner BIGINT REFERENCES users (id),
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					result TEXT,
					fen TEXT NOT NULL,
					states TEXT NOT NULL DEFAULT '{}',
					date_started TIMESTAMP NOT NULL,
					last_active TIMESTAMP NOT NULL
				)`,
				`CREATE INDEX idx_games_white ON games (white)`,
				`CREATE INDEX idx_games_black ON games (black)`,
				`CREATE INDEX idx_games_active ON games (is_active)`,
			}
		},
	},
	{
		version: 4,
		name:    "moves",
		up: func(d string) []string {
			return []string{
				`CREATE TABLE moves (
					` + pk(d) + `,
					user_id BIGINT NOT NULL REFERENCES users (id),
					game_id BIGINT NOT NULL REFERENCES games (id),
					movestr TEXT NOT NULL,
					fen TEXT NOT NULL,
					timestamp TIMESTAMP NOT NULL
				)`,
				`CREATE INDEX idx_moves_game ON moves (game_id)`,
				`CREATE INDEX idx_moves_user ON moves (user_id)`,
			}
		},
	},
	{
		version: 5,
		name:    "challenges",
		up: func(d string) []string {
			return []string{
				`CREATE TABLE challenges (
					` + pk(d) + `,
					requester_id BIGINT NOT NULL REFERENCES users (id),
					game_type TEXT NOT NULL DEFAULT 'CHESS',
					status TEXT NOT NULL DEFAULT 'PENDING',
					fulfilled_by BIGINT REFERENCES users (id),
					game_id BIGINT REFERENCES games (id),
					date_requested TIMESTAMP NOT NULL
				)`,
				`CREATE INDEX idx_challenges_requester ON challenges (requester_id, status)`,
				`CREATE INDEX idx_challenges_status ON challenges (status)`,
			}
		},
	},
}

// Migrate applies all pending schema migrations in order.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL
		)`); err != nil {
		return apperrors.NewStorageError("migrate", "failed to create migrations table", err)
	}

	current := 0
	row := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`)
	if err := row.Scan(&current); err != nil {
		return apperrors.NewStorageError("migrate", "failed to read schema version", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		err := s.withTx(ctx, func(tx *sql.Tx) error {
			for _, stmt := range m.up(s.dialect) {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return apperrors.NewStorageError("migrate", "migration "+m.name+" failed", err)
				}
			}
			_, err := tx.ExecContext(ctx,
				s.rebind(`INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)`),
				m.version, m.name, nowUTC())
			return err
		})
		if err != nil {
			return err
		}

		s.log.Info(ctx, "applied migration", "version", m.version, "name", m.name)
	}

	return nil
}
