package server

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/chessticulate/chessticulate-api/internal/errors"
	"github.com/chessticulate/chessticulate-api/internal/store"
)

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	skip, limit, reverse, err := paging(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	filter := store.GameFilter{Skip: skip, Limit: limit, Reverse: reverse}
	for _, q := range []struct {
		name string
		dst  **int64
	}{
		{"game_id", &filter.ID},
		{"invitation_id", &filter.InvitationID},
		{"player_id", &filter.PlayerID},
		{"white_id", &filter.White},
		{"black_id", &filter.Black},
		{"whomst_id", &filter.Whomst},
		{"winner_id", &filter.Winner},
	} {
		v, err := queryInt64(r, q.name)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		*q.dst = v
	}
	isActive, err := queryBool(r, "is_active")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	filter.IsActive = isActive

	games, err := s.store.ListGames(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	gameIDs := make([]int64, 0, len(games))
	for _, game := range games {
		gameIDs = append(gameIDs, game.ID)
	}
	hists, err := s.store.MoveHistories(r.Context(), gameIDs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := make([]gameResponse, 0, len(games))
	for _, game := range games {
		resp = append(resp, toGameViewResponse(game, hists[game.ID]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleMove validates a move with chess-workers and applies it. The
// caller must be the player whose turn it is.
func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	gameID, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var req moveRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	view, err := s.store.GetGame(r.Context(), gameID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if view == nil {
		s.writeError(w, r, apperrors.NewNotFoundError("game_not_found", "invalid game id"))
		return
	}
	game := &view.Game

	if !game.HasPlayer(claims.UserID) {
		s.writeError(w, r, apperrors.NewForbiddenError("not_player",
			"user is not a player in this game"))
		return
	}
	if game.Whomst != claims.UserID {
		s.writeError(w, r, apperrors.NewValidationError("not_your_turn",
			"it is not this user's turn"))
		return
	}

	result, err := s.workers.DoMove(r.Context(), game.FEN, req.Move, json.RawMessage(game.States))
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeValidation) {
			s.metrics.CountMove("rejected")
		} else {
			s.metrics.CountMove("error")
		}
		s.writeError(w, r, err)
		return
	}

	updated, err := s.store.ApplyMove(r.Context(), store.ApplyMoveParams{
		GameID:  gameID,
		UserID:  claims.UserID,
		MoveStr: req.Move,
		FEN:     result.FEN,
		States:  string(result.States),
		Result:  result.Result(),
	})
	if err != nil {
		s.metrics.CountMove("error")
		s.writeError(w, r, err)
		return
	}
	s.metrics.CountMove("ok")

	s.hub.Publish(MoveEvent{
		Type:   "move",
		GameID: gameID,
		Move:   req.Move,
		FEN:    updated.FEN,
		Status: result.Status,
		Whomst: updated.Whomst,
	})

	writeJSON(w, http.StatusOK, toGameResponse(updated))
}

// handleForfeit resigns an active game on behalf of the caller.
func (s *Server) handleForfeit(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	gameID, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	game, err := s.store.ForfeitGame(r.Context(), gameID, claims.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if game == nil {
		s.writeError(w, r, apperrors.NewNotFoundError("game_not_found",
			"game does not exist or is already finished"))
		return
	}

	status := ""
	if game.Result != nil {
		status = string(*game.Result)
	}
	s.hub.Publish(MoveEvent{
		Type:   "forfeit",
		GameID: gameID,
		FEN:    game.FEN,
		Status: status,
		Whomst: game.Whomst,
	})

	s.log.Info(r.Context(), "game forfeited", "game_id", gameID, "user_id", claims.UserID)
	writeJSON(w, http.StatusOK, toGameResponse(game))
}

func (s *Server) handleListMoves(w http.ResponseWriter, r *http.Request) {
	skip, limit, reverse, err := paging(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	filter := store.MoveFilter{Skip: skip, Limit: limit, Reverse: reverse}
	for _, q := range []struct {
		name string
		dst  **int64
	}{
		{"move_id", &filter.ID},
		{"user_id", &filter.UserID},
		{"game_id", &filter.GameID},
	} {
		v, err := queryInt64(r, q.name)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		*q.dst = v
	}

	moves, err := s.store.ListMoves(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := make([]moveResponse, 0, len(moves))
	for _, move := range moves {
		resp = append(resp, toMoveResponse(move))
	}
	writeJSON(w, http.StatusOK, resp)
}
