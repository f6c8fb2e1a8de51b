package store

import (
	"context"
	"database/sql"

	apperrors "github.com/chessticulate/chessticulate-api/internal/errors"
	"github.com/chessticulate/chessticulate-api/internal/models"
)

const gameColumns = `g.id, g.game_type, g.invitation_id, g.white, g.black, g.whomst,
	g.winner, g.is_active, g.result, g.fen, g.states, g.date_started, g.last_active`

// GameView is a game joined with the names of both players, as returned by
// list and detail endpoints.
type GameView struct {
	models.Game
	WhiteName string
	BlackName string
}

func scanGame(row interface{ Scan(...interface{}) error }) (*models.Game, error) {
	var g models.Game
	var invitationID, winner sql.NullInt64
	var result sql.NullString
	err := row.Scan(&g.ID, &g.GameType, &invitationID, &g.White, &g.Black, &g.Whomst,
		&winner, &g.IsActive, &result, &g.FEN, &g.States, &g.DateStarted, &g.LastActive)
	if err != nil {
		return nil, err
	}
	if invitationID.Valid {
		v := invitationID.Int64
		g.InvitationID = &v
	}
	if winner.Valid {
		v := winner.Int64
		g.Winner = &v
	}
	if result.Valid {
		r := models.GameResult(result.String)
		g.Result = &r
	}
	return &g, nil
}

func scanGameView(row interface{ Scan(...interface{}) error }) (*GameView, error) {
	var v GameView
	var invitationID, winner sql.NullInt64
	var result sql.NullString
	err := row.Scan(&v.ID, &v.GameType, &invitationID, &v.White, &v.Black, &v.Whomst,
		&winner, &v.IsActive, &result, &v.FEN, &v.States, &v.DateStarted, &v.LastActive,
		&v.WhiteName, &v.BlackName)
	if err != nil {
		return nil, err
	}
	if invitationID.Valid {
		id := invitationID.Int64
		v.InvitationID = &id
	}
	if winner.Valid {
		id := winner.Int64
		v.Winner = &id
	}
	if result.Valid {
		r := models.GameResult(result.String)
		v.Result = &r
	}
	return &v, nil
}

type insertGameParams struct {
	GameType     models.GameType
	InvitationID *int64
	White        int64
	Black        int64
}

// insertGame creates a game at the starting position. White moves first.
func (s *Store) insertGame(ctx context.Context, tx *sql.Tx, params insertGameParams) (*models.Game, error) {
	now := nowUTC()
	id, err := s.insertReturningID(ctx, tx,
		`INSERT INTO games (game_type, invitation_id, white, black, whomst, is_active,
			fen, states, date_started, last_active)
		 VALUES (?, ?, ?, ?, ?, TRUE, ?, '{}', ?, ?)`,
		string(params.GameType), params.InvitationID, params.White, params.Black,
		params.White, models.StartingFEN, now, now)
	if err != nil {
		return nil, apperrors.NewStorageError("insert_game", "failed to create game", err)
	}

	row := tx.QueryRowContext(ctx,
		s.rebind(`SELECT `+gameColumns+` FROM games g WHERE g.id = ?`), id)
	return scanGame(row)
}

// GetGame retrieves one game with player names, (nil, nil) when absent.
func (s *Store) GetGame(ctx context.Context, id int64) (*GameView, error) {
	row := s.queryRow(ctx,
		`SELECT `+gameColumns+`, wu.name, bu.name
		 FROM games g
		 JOIN users wu ON wu.id = g.white
		 JOIN users bu ON bu.id = g.black
		 WHERE g.id = ?`, id)
	view, err := scanGameView(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.NewStorageError("get_game", "failed to load game", err)
	}
	return view, nil
}

// GameFilter narrows ListGames.
type GameFilter struct {
	ID           *int64
	InvitationID *int64
	PlayerID     *int64 // matches either color
	White        *int64
	Black        *int64
	Whomst       *int64
	Winner       *int64
	IsActive     *bool
	Skip         int
	Limit        int
	Reverse      bool
}

// ListGames retrieves games with player names, ordered by last activity.
func (s *Store) ListGames(ctx context.Context, filter GameFilter) ([]*GameView, error) {
	query := `SELECT ` + gameColumns + `, wu.name, bu.name
		 FROM games g
		 JOIN users wu ON wu.id = g.white
		 JOIN users bu ON bu.id = g.black
		 WHERE 1=1`
	args := []interface{}{}

	if filter.ID != nil {
		query += ` AND g.id = ?`
		args = append(args, *filter.ID)
	}
	if filter.InvitationID != nil {
		query += ` AND g.invitation_id = ?`
		args = append(args, *filter.InvitationID)
	}
	if filter.PlayerID != nil {
		query += ` AND (g.white = ? OR g.black = ?)`
		args = append(args, *filter.PlayerID, *filter.PlayerID)
	}
	if filter.White != nil {
		query += ` AND g.white = ?`
		args = append(args, *filter.White)
	}
	if filter.Black != nil {
		query += ` AND g.black = ?`
		args = append(args, *filter.Black)
	}
	if filter.Whomst != nil {
		query += ` AND g.whomst = ?`
		args = append(args, *filter.Whomst)
	}
	if filter.Winner != nil {
		query += ` AND g.winner = ?`
		args = append(args, *filter.Winner)
	}
	if filter.IsActive != nil {
		query += ` AND g.is_active = ?`
		args = append(args, *filter.IsActive)
	}

	dir := "ASC"
	if filter.Reverse {
		dir = "DESC"
	}
	query += ` ORDER BY g.last_active ` + dir + ` LIMIT ? OFFSET ?`
	args = append(args, clampLimit(filter.Limit), filter.Skip)

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStorageError("list_games", "failed to list games", err)
	}
	defer rows.Close()

	var views []*GameView
	for rows.Next() {
		view, err := scanGameView(rows)
		if err != nil {
			return nil, apperrors.NewStorageError("list_games", "failed to scan game", err)
		}
		views = append(views, view)
	}
	return views, rows.Err()
}

// ApplyMoveParams describes one validated move to persist.
type ApplyMoveParams struct {
	GameID  int64
	UserID  int64
	MoveStr string
	FEN     string
	States  string
	// Result is nil while the game continues; a terminal result finishes
	// the game and updates both players' tallies.
	Result *models.GameResult
}

// ApplyMove records a move, advances the turn and, on a terminal result,
// finishes the game and updates win/draw/loss counts. All of it commits in
// one transaction.
func (s *Store) ApplyMove(ctx context.Context, params ApplyMoveParams) (*models.Game, error) {
	var game *models.Game
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			s.rebind(`SELECT `+gameColumns+` FROM games g WHERE g.id = ?`), params.GameID)
		current, err := scanGame(row)
		if err == sql.ErrNoRows {
			return apperrors.NewNotFoundError("game_not_found", "game does not exist")
		}
		if err != nil {
			return apperrors.NewStorageError("apply_move", "failed to load game", err)
		}

		opponent, ok := current.Opponent(params.UserID)
		if !ok {
			return apperrors.NewForbiddenError("not_player", "user is not a player in this game")
		}

		now := nowUTC()
		if _, err := tx.ExecContext(ctx, s.rebind(
			`INSERT INTO moves (user_id, game_id, movestr, fen, timestamp)
			 VALUES (?, ?, ?, ?, ?)`),
			params.UserID, params.GameID, params.MoveStr, params.FEN, now); err != nil {
			return apperrors.NewStorageError("apply_move", "failed to record move", err)
		}

		if params.Result == nil {
			_, err = tx.ExecContext(ctx, s.rebind(
				`UPDATE games SET fen = ?, states = ?, whomst = ?, last_active = ?
				 WHERE id = ?`),
				params.FEN, params.States, opponent, now, params.GameID)
			if err != nil {
				return apperrors.NewStorageError("apply_move", "failed to update game", err)
			}
		} else {
			var winner interface{}
			if !params.Result.IsDraw() {
				winner = params.UserID
			}
			_, err = tx.ExecContext(ctx, s.rebind(
				`UPDATE games SET fen = ?, states = ?, whomst = ?, last_active = ?,
					is_active = FALSE, result = ?, winner = ?
				 WHERE id = ?`),
				params.FEN, params.States, opponent, now,
				string(*params.Result), winner, params.GameID)
			if err != nil {
				return apperrors.NewStorageError("apply_move", "failed to finish game", err)
			}

			if err := s.recordOutcome(ctx, tx, current, params.UserID, *params.Result); err != nil {
				return err
			}
		}

		row = tx.QueryRowContext(ctx,
			s.rebind(`SELECT `+gameColumns+` FROM games g WHERE g.id = ?`), params.GameID)
		game, err = scanGame(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return game, nil
}

// ForfeitGame resigns an active game on behalf of quitterID. The opponent
// wins. Returns (nil, nil) when the game is missing or already finished.
func (s *Store) ForfeitGame(ctx context.Context, gameID, quitterID int64) (*models.Game, error) {
	var game *models.Game
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			s.rebind(`SELECT `+gameColumns+` FROM games g WHERE g.id = ?`), gameID)
		current, err := scanGame(row)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return apperrors.NewStorageError("forfeit", "failed to load game", err)
		}

		opponent, ok := current.Opponent(quitterID)
		if !ok {
			return apperrors.NewForbiddenError("not_player", "user is not a player in this game")
		}

		res, err := tx.ExecContext(ctx, s.rebind(
			`UPDATE games SET is_active = FALSE, result = 'RESIGNATION', winner = ?,
				last_active = ?
			 WHERE id = ? AND is_active = TRUE`),
			opponent, nowUTC(), gameID)
		if err != nil {
			return apperrors.NewStorageError("forfeit", "failed to update game", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return apperrors.NewStorageError("forfeit", "failed to read rowcount", err)
		}
		if n != 1 {
			return nil
		}

		if err := s.recordOutcome(ctx, tx, current, opponent, models.ResultResignation); err != nil {
			return err
		}

		row = tx.QueryRowContext(ctx,
			s.rebind(`SELECT `+gameColumns+` FROM games g WHERE g.id = ?`), gameID)
		game, err = scanGame(row)
		return err
	})
	if err != nil {
		return nil, err
	}
	return game, nil
}

// recordOutcome bumps win/draw/loss tallies for both players of a finished
// game. winnerID is ignored for draw results.
func (s *Store) recordOutcome(ctx context.Context, tx *sql.Tx, game *models.Game, winnerID int64, result models.GameResult) error {
	if result.IsDraw() {
		_, err := tx.ExecContext(ctx, s.rebind(
			`UPDATE users SET draws = draws + 1 WHERE id IN (?, ?)`),
			game.White, game.Black)
		if err != nil {
			return apperrors.NewStorageError("record_outcome", "failed to record draw", err)
		}
		return nil
	}

	loserID, _ := game.Opponent(winnerID)
	if _, err := tx.ExecContext(ctx, s.rebind(
		`UPDATE users SET wins = wins + 1 WHERE id = ?`), winnerID); err != nil {
		return apperrors.NewStorageError("record_outcome", "failed to record win", err)
	}
	if _, err := tx.ExecContext(ctx, s.rebind(
		`UPDATE users SET losses = losses + 1 WHERE id = ?`), loserID); err != nil {
		return apperrors.NewStorageError("record_outcome", "failed to record loss", err)
	}
	return nil
}
