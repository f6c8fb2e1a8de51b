package server

import (
	"net/http"

	apperrors "github.com/chessticulate/chessticulate-api/internal/errors"
	"github.com/chessticulate/chessticulate-api/internal/models"
	"github.com/chessticulate/chessticulate-api/internal/store"
)

// handleCreateChallenge opens a challenge any other user may accept.
func (s *Server) handleCreateChallenge(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	req := createChallengeRequest{GameType: models.GameTypeChess}
	if r.ContentLength > 0 {
		if err := s.decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		if req.GameType == "" {
			req.GameType = models.GameTypeChess
		}
	}
	if !req.GameType.Valid() {
		s.writeError(w, r, apperrors.NewValidationError("bad_game_type", "unsupported game type"))
		return
	}

	challenge, err := s.store.CreateChallenge(r.Context(), claims.UserID, req.GameType)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toChallengeResponse(challenge))
}

func (s *Server) handleListChallenges(w http.ResponseWriter, r *http.Request) {
	skip, limit, reverse, err := paging(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	challengeID, err := queryInt64(r, "challenge_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	requesterID, err := queryInt64(r, "requester_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	responderID, err := queryInt64(r, "responder_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	filter := store.ChallengeFilter{
		ID:          challengeID,
		RequesterID: requesterID,
		FulfilledBy: responderID,
		Skip:        skip,
		Limit:       limit,
		Reverse:     reverse,
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := models.ChallengeStatus(raw)
		if !status.Valid() {
			s.writeError(w, r, apperrors.NewValidationError("bad_status", "unknown challenge status"))
			return
		}
		filter.Status = &status
	}

	challenges, err := s.store.ListChallenges(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := make([]challengeResponse, 0, len(challenges))
	for _, challenge := range challenges {
		resp = append(resp, toChallengeResponse(challenge))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAcceptChallenge accepts an open challenge and starts the game. The
// requester plays white.
func (s *Server) handleAcceptChallenge(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	challenge, err := s.store.GetChallenge(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if challenge == nil {
		s.writeError(w, r, apperrors.NewValidationError("challenge_not_found",
			"challenge does not exist"))
		return
	}
	if challenge.RequesterID == claims.UserID {
		s.writeError(w, r, apperrors.NewValidationError("own_challenge",
			"cannot accept own challenge"))
		return
	}

	requester, err := s.store.GetUserByID(r.Context(), challenge.RequesterID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if requester == nil || requester.Deleted {
		s.writeError(w, r, apperrors.NewNotFoundError("requester_deleted",
			"the user who created this challenge no longer exists"))
		return
	}

	game, err := s.store.AcceptChallenge(r.Context(), id, claims.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if game == nil {
		s.writeError(w, r, apperrors.NewConflictError("already_answered",
			"challenge is no longer pending"))
		return
	}

	s.log.Info(r.Context(), "challenge accepted",
		"challenge_id", id, "game_id", game.ID)
	writeJSON(w, http.StatusAccepted, gameIDResponse{GameID: game.ID})
}

// handleCancelChallenge cancels a pending challenge the caller created.
func (s *Server) handleCancelChallenge(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	challenge, err := s.store.GetChallenge(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if challenge == nil {
		s.writeError(w, r, apperrors.NewValidationError("challenge_not_found",
			"challenge does not exist"))
		return
	}
	if challenge.RequesterID != claims.UserID {
		s.writeError(w, r, apperrors.NewForbiddenError("not_own_challenge",
			"can't cancel someone else's challenge"))
		return
	}
	if challenge.Status != models.ChallengePending {
		s.writeError(w, r, apperrors.NewValidationError("already_answered",
			"challenge is no longer pending"))
		return
	}

	ok, err := s.store.CancelChallenge(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !ok {
		s.writeError(w, r, apperrors.NewConflictError("already_answered",
			"challenge is no longer pending"))
		return
	}
	w.WriteHeader(http.StatusOK)
}
