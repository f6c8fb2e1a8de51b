package store

import (
	"context"
	"database/sql"

	apperrors "github.com/chessticulate/chessticulate-api/internal/errors"
	"github.com/chessticulate/chessticulate-api/internal/models"
)

const invitationColumns = `id, from_id, to_id, game_type, status, date_sent, date_answered`

func scanInvitation(row interface{ Scan(...interface{}) error }) (*models.Invitation, error) {
	var inv models.Invitation
	var answered sql.NullTime
	err := row.Scan(&inv.ID, &inv.FromID, &inv.ToID, &inv.GameType, &inv.Status,
		&inv.DateSent, &answered)
	if err != nil {
		return nil, err
	}
	if answered.Valid {
		t := answered.Time
		inv.DateAnswered = &t
	}
	return &inv, nil
}

// CreateInvitation records a pending invitation from one user to another.
func (s *Store) CreateInvitation(ctx context.Context, fromID, toID int64, gameType models.GameType) (*models.Invitation, error) {
	var inv *models.Invitation
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		id, err := s.insertReturningID(ctx, tx,
			`INSERT INTO invitations (from_id, to_id, game_type, status, date_sent)
			 VALUES (?, ?, ?, 'PENDING', ?)`,
			fromID, toID, string(gameType), nowUTC())
		if err != nil {
			return apperrors.NewStorageError("insert_invitation", "failed to create invitation", err)
		}

		row := tx.QueryRowContext(ctx,
			s.rebind(`SELECT `+invitationColumns+` FROM invitations WHERE id = ?`), id)
		inv, err = scanInvitation(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// GetInvitation retrieves one invitation, (nil, nil) when absent.
func (s *Store) GetInvitation(ctx context.Context, id int64) (*models.Invitation, error) {
	row := s.queryRow(ctx, `SELECT `+invitationColumns+` FROM invitations WHERE id = ?`, id)
	inv, err := scanInvitation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewStorageError("get_invitation", "failed to load invitation", err)
	}
	return inv, nil
}

// InvitationFilter narrows ListInvitations.
type InvitationFilter struct {
	ID      *int64
	FromID  *int64
	ToID    *int64
	Status  *models.InvitationStatus
	Skip    int
	Limit   int
	Reverse bool
}

// ListInvitations retrieves invitations ordered by date sent.
func (s *Store) ListInvitations(ctx context.Context, filter InvitationFilter) ([]*models.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE 1=1`
	args := []interface{}{}

	if filter.ID != nil {
		query += ` AND id = ?`
		args = append(args, *filter.ID)
	}
	if filter.FromID != nil {
		query += ` AND from_id = ?`
		args = append(args, *filter.FromID)
	}
	if filter.ToID != nil {
		query += ` AND to_id = ?`
		args = append(args, *filter.ToID)
	}
	if filter.Status != nil {
		query += ` AND status = ?`
		args = append(args, string(*filter.Status))
	}

	dir := "ASC"
	if filter.Reverse {
		dir = "DESC"
	}
	query += ` ORDER BY date_sent ` + dir + ` LIMIT ? OFFSET ?`
	args = append(args, clampLimit(filter.Limit), filter.Skip)

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStorageError("list_invitations", "failed to list invitations", err)
	}
	defer rows.Close()

	var invs []*models.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, apperrors.NewStorageError("list_invitations", "failed to scan invitation", err)
		}
		invs = append(invs, inv)
	}
	return invs, rows.Err()
}

// answerInvitation flips a PENDING invitation to the given terminal status.
// The status guard in the WHERE clause makes answers one-shot under
// concurrent requests.
func (s *Store) answerInvitation(ctx context.Context, tx *sql.Tx, id int64, status models.InvitationStatus) (bool, error) {
	res, err := tx.ExecContext(ctx, s.rebind(
		`UPDATE invitations SET status = ?, date_answered = ?
		 WHERE id = ? AND status = 'PENDING'`),
		string(status), nowUTC(), id)
	if err != nil {
		return false, apperrors.NewStorageError("answer_invitation", "failed to update invitation", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperrors.NewStorageError("answer_invitation", "failed to read rowcount", err)
	}
	return n == 1, nil
}

// DeclineInvitation declines a pending invitation. Returns false when the
// invitation is missing or no longer pending.
func (s *Store) DeclineInvitation(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		ok, err = s.answerInvitation(ctx, tx, id, models.InvitationDeclined)
		return err
	})
	return ok, err
}

// CancelInvitation cancels a pending invitation. Returns false when the
// invitation is missing or no longer pending.
func (s *Store) CancelInvitation(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		ok, err = s.answerInvitation(ctx, tx, id, models.InvitationCancelled)
		return err
	})
	return ok, err
}

// AcceptInvitation accepts a pending invitation and creates the game in the
// same transaction. The inviter plays white and moves first. Returns
// (nil, nil) when the invitation is missing or no longer pending.
func (s *Store) AcceptInvitation(ctx context.Context, id int64) (*models.Game, error) {
	var game *models.Game
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			s.rebind(`SELECT `+invitationColumns+` FROM invitations WHERE id = ?`), id)
		inv, err := scanInvitation(row)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return apperrors.NewStorageError("accept_invitation", "failed to load invitation", err)
		}

		ok, err := s.answerInvitation(ctx, tx, id, models.InvitationAccepted)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		game, err = s.insertGame(ctx, tx, insertGameParams{
			GameType:     inv.GameType,
			InvitationID: &inv.ID,
			White:        inv.FromID,
			Black:        inv.ToID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return game, nil
}
