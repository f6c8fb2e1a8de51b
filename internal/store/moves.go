package store

import (
	"context"
	"strings"

	apperrors "github.com/chessticulate/chessticulate-api/internal/errors"
	"github.com/chessticulate/chessticulate-api/internal/models"
)

const moveColumns = `id, user_id, game_id, movestr, fen, timestamp`

func scanMove(row interface{ Scan(...interface{}) error }) (*models.Move, error) {
	var m models.Move
	err := row.Scan(&m.ID, &m.UserID, &m.GameID, &m.MoveStr, &m.FEN, &m.Timestamp)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// MoveFilter narrows ListMoves.
type MoveFilter struct {
	ID      *int64
	UserID  *int64
	GameID  *int64
	Skip    int
	Limit   int
	Reverse bool
}

// ListMoves retrieves moves ordered by timestamp.
func (s *Store) ListMoves(ctx context.Context, filter MoveFilter) ([]*models.Move, error) {
	query := `SELECT ` + moveColumns + ` FROM moves WHERE 1=1`
	args := []interface{}{}

	if filter.ID != nil {
		query += ` AND id = ?`
		args = append(args, *filter.ID)
	}
	if filter.UserID != nil {
		query += ` AND user_id = ?`
		args = append(args, *filter.UserID)
	}
	if filter.GameID != nil {
		query += ` AND game_id = ?`
		args = append(args, *filter.GameID)
	}

	dir := "ASC"
	if filter.Reverse {
		dir = "DESC"
	}
	query += ` ORDER BY timestamp ` + dir + `, id ` + dir + ` LIMIT ? OFFSET ?`
	args = append(args, clampLimit(filter.Limit), filter.Skip)

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStorageError("list_moves", "failed to list moves", err)
	}
	defer rows.Close()

	var moves []*models.Move
	for rows.Next() {
		move, err := scanMove(rows)
		if err != nil {
			return nil, apperrors.NewStorageError("list_moves", "failed to scan move", err)
		}
		moves = append(moves, move)
	}
	return moves, rows.Err()
}

// MoveHistory returns the full ordered move list of a game as move
// strings, oldest first.
func (s *Store) MoveHistory(ctx context.Context, gameID int64) ([]string, error) {
	rows, err := s.query(ctx,
		`SELECT movestr FROM moves WHERE game_id = ? ORDER BY timestamp ASC, id ASC`, gameID)
	if err != nil {
		return nil, apperrors.NewStorageError("move_history", "failed to load move history", err)
	}
	defer rows.Close()

	hist := []string{}
	for rows.Next() {
		var movestr string
		if err := rows.Scan(&movestr); err != nil {
			return nil, apperrors.NewStorageError("move_history", "failed to scan move", err)
		}
		hist = append(hist, movestr)
	}
	return hist, rows.Err()
}

// MoveHistories loads the ordered move strings of several games in one
// query, keyed by game ID. Games without moves get an empty slice.
func (s *Store) MoveHistories(ctx context.Context, gameIDs []int64) (map[int64][]string, error) {
	hists := make(map[int64][]string, len(gameIDs))
	if len(gameIDs) == 0 {
		return hists, nil
	}

	args := make([]interface{}, 0, len(gameIDs))
	for _, id := range gameIDs {
		hists[id] = []string{}
		args = append(args, id)
	}
	placeholders := strings.Repeat("?, ", len(gameIDs)-1) + "?"

	rows, err := s.query(ctx,
		`SELECT game_id, movestr FROM moves WHERE game_id IN (`+placeholders+`)
		 ORDER BY timestamp ASC, id ASC`, args...)
	if err != nil {
		return nil, apperrors.NewStorageError("move_histories", "failed to load move histories", err)
	}
	defer rows.Close()

	for rows.Next() {
		var gameID int64
		var movestr string
		if err := rows.Scan(&gameID, &movestr); err != nil {
			return nil, apperrors.NewStorageError("move_histories", "failed to scan move", err)
		}
		hists[gameID] = append(hists[gameID], movestr)
	}
	return hists, rows.Err()
}
