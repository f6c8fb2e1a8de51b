package store

import (
	"context"
	"database/sql"

	apperrors "github.com/chessticulate/chessticulate-api/internal/errors"
	"github.com/chessticulate/chessticulate-api/internal/models"
)

const challengeColumns = `id, requester_id, game_type, status, fulfilled_by, game_id, date_requested`

func scanChallenge(row interface{ Scan(...interface{}) error }) (*models.Challenge, error) {
	var c models.Challenge
	var fulfilledBy, gameID sql.NullInt64
	err := row.Scan(&c.ID, &c.RequesterID, &c.GameType, &c.Status,
		&fulfilledBy, &gameID, &c.DateRequested)
	if err != nil {
		return nil, err
	}
	if fulfilledBy.Valid {
		v := fulfilledBy.Int64
		c.FulfilledBy = &v
	}
	if gameID.Valid {
		v := gameID.Int64
		c.GameID = &v
	}
	return &c, nil
}

// CreateChallenge records an open challenge any other user may accept.
func (s *Store) CreateChallenge(ctx context.Context, requesterID int64, gameType models.GameType) (*models.Challenge, error) {
	var challenge *models.Challenge
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		id, err := s.insertReturningID(ctx, tx,
			`INSERT INTO challenges (requester_id, game_type, status, date_requested)
			 VALUES (?, ?, 'PENDING', ?)`,
			requesterID, string(gameType), nowUTC())
		if err != nil {
			return apperrors.NewStorageError("insert_challenge", "failed to create challenge", err)
		}

		row := tx.QueryRowContext(ctx,
			s.rebind(`SELECT `+challengeColumns+` FROM challenges WHERE id = ?`), id)
		challenge, err = scanChallenge(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return challenge, nil
}

// GetChallenge retrieves one challenge, (nil, nil) when absent.
func (s *Store) GetChallenge(ctx context.Context, id int64) (*models.Challenge, error) {
	row := s.queryRow(ctx, `SELECT `+challengeColumns+` FROM challenges WHERE id = ?`, id)
	challenge, err := scanChallenge(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewStorageError("get_challenge", "failed to load challenge", err)
	}
	return challenge, nil
}

// ChallengeFilter narrows ListChallenges.
type ChallengeFilter struct {
	ID          *int64
	RequesterID *int64
	FulfilledBy *int64
	Status      *models.ChallengeStatus
	Skip        int
	Limit       int
	Reverse     bool
}

// ListChallenges retrieves challenges ordered by request date.
func (s *Store) ListChallenges(ctx context.Context, filter ChallengeFilter) ([]*models.Challenge, error) {
	query := `SELECT ` + challengeColumns + ` FROM challenges WHERE 1=1`
	args := []interface{}{}

	if filter.ID != nil {
		query += ` AND id = ?`
		args = append(args, *filter.ID)
	}
	if filter.RequesterID != nil {
		query += ` AND requester_id = ?`
		args = append(args, *filter.RequesterID)
	}
	if filter.FulfilledBy != nil {
		query += ` AND fulfilled_by = ?`
		args = append(args, *filter.FulfilledBy)
	}
	if filter.Status != nil {
		query += ` AND status = ?`
		args = append(args, string(*filter.Status))
	}

	dir := "ASC"
	if filter.Reverse {
		dir = "DESC"
	}
	query += ` ORDER BY date_requested ` + dir + ` LIMIT ? OFFSET ?`
	args = append(args, clampLimit(filter.Limit), filter.Skip)

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStorageError("list_challenges", "failed to list challenges", err)
	}
	defer rows.Close()

	var challenges []*models.Challenge
	for rows.Next() {
		challenge, err := scanChallenge(rows)
		if err != nil {
			return nil, apperrors.NewStorageError("list_challenges", "failed to scan challenge", err)
		}
		challenges = append(challenges, challenge)
	}
	return challenges, rows.Err()
}

// CancelChallenge cancels a pending challenge. Returns false when the
// challenge is missing or no longer pending.
func (s *Store) CancelChallenge(ctx context.Context, id int64) (bool, error) {
	res, err := s.exec(ctx,
		`UPDATE challenges SET status = 'CANCELLED' WHERE id = ? AND status = 'PENDING'`, id)
	if err != nil {
		return false, apperrors.NewStorageError("cancel_challenge", "failed to cancel challenge", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperrors.NewStorageError("cancel_challenge", "failed to read rowcount", err)
	}
	return n == 1, nil
}

// AcceptChallenge marks a pending challenge accepted by accepterID and
// creates the game in the same transaction. The requester plays white.
// Returns (nil, nil) when the challenge is missing or no longer pending.
func (s *Store) AcceptChallenge(ctx context.Context, id, accepterID int64) (*models.Game, error) {
	var game *models.Game
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			s.rebind(`SELECT `+challengeColumns+` FROM challenges WHERE id = ?`), id)
		challenge, err := scanChallenge(row)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return apperrors.NewStorageError("accept_challenge", "failed to load challenge", err)
		}

		game, err = s.insertGame(ctx, tx, insertGameParams{
			GameType: challenge.GameType,
			White:    challenge.RequesterID,
			Black:    accepterID,
		})
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, s.rebind(
			`UPDATE challenges SET status = 'ACCEPTED', fulfilled_by = ?, game_id = ?
			 WHERE id = ? AND status = 'PENDING'`),
			accepterID, game.ID, id)
		if err != nil {
			return apperrors.NewStorageError("accept_challenge", "failed to update challenge", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return apperrors.NewStorageError("accept_challenge", "failed to read rowcount", err)
		}
		if n != 1 {
			// lost the race; roll the game insert back
			game = nil
			return apperrors.NewConflictError("challenge_answered", "challenge is no longer pending")
		}
		return nil
	})
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeConflict) {
			return nil, nil
		}
		return nil, err
	}
	return game, nil
}
