package server

import (
	"net/http"

	apperrors "github.com/chessticulate/chessticulate-api/internal/errors"
	"github.com/chessticulate/chessticulate-api/internal/models"
	"github.com/chessticulate/chessticulate-api/internal/store"
)

// handleCreateInvitation sends an invitation to another user.
func (s *Server) handleCreateInvitation(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	var req createInvitationRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.GameType == "" {
		req.GameType = models.GameTypeChess
	}
	if !req.GameType.Valid() {
		s.writeError(w, r, apperrors.NewValidationError("bad_game_type", "unsupported game type"))
		return
	}
	if req.ToID == claims.UserID {
		s.writeError(w, r, apperrors.NewValidationError("invite_self", "cannot invite self"))
		return
	}

	addressee, err := s.store.GetUserByID(r.Context(), req.ToID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if addressee == nil || addressee.Deleted {
		s.writeError(w, r, apperrors.NewValidationError("bad_addressee", "addressee does not exist"))
		return
	}

	inv, err := s.store.CreateInvitation(r.Context(), claims.UserID, req.ToID, req.GameType)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toInvitationResponse(inv))
}

// handleListInvitations lists invitations involving the caller. One of
// to_id or from_id must be given and must be the caller's own ID.
func (s *Server) handleListInvitations(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	toID, err := queryInt64(r, "to_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	fromID, err := queryInt64(r, "from_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if toID == nil && fromID == nil {
		s.writeError(w, r, apperrors.NewValidationError("missing_party",
			"'to_id' or 'from_id' must be supplied"))
		return
	}
	callerListed := (toID != nil && *toID == claims.UserID) ||
		(fromID != nil && *fromID == claims.UserID)
	if !callerListed {
		s.writeError(w, r, apperrors.NewValidationError("not_own_invitations",
			"'to_id' or 'from_id' must match the requestor's user ID"))
		return
	}

	skip, limit, reverse, err := paging(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	invitationID, err := queryInt64(r, "invitation_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	filter := store.InvitationFilter{
		ID:      invitationID,
		FromID:  fromID,
		ToID:    toID,
		Skip:    skip,
		Limit:   limit,
		Reverse: reverse,
	}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := models.InvitationStatus(raw)
		if !status.Valid() {
			s.writeError(w, r, apperrors.NewValidationError("bad_status", "unknown invitation status"))
			return
		}
		filter.Status = &status
	}

	invs, err := s.store.ListInvitations(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := make([]invitationResponse, 0, len(invs))
	for _, inv := range invs {
		resp = append(resp, toInvitationResponse(inv))
	}
	writeJSON(w, http.StatusOK, resp)
}

// loadInvitation fetches an invitation and enforces that actorID matches
// the given party of it.
func (s *Server) loadInvitation(r *http.Request, mustMatch func(*models.Invitation) int64) (*models.Invitation, error) {
	id, err := pathID(r)
	if err != nil {
		return nil, err
	}

	inv, err := s.store.GetInvitation(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, apperrors.NewNotFoundError("invitation_not_found", "invitation does not exist")
	}

	claims := ClaimsFromContext(r.Context())
	if claims.UserID != mustMatch(inv) {
		return nil, apperrors.NewForbiddenError("wrong_party",
			"invitation does not belong to this user")
	}
	if inv.Status != models.InvitationPending {
		return nil, apperrors.NewValidationError("already_answered",
			"invitation already has '"+string(inv.Status)+"' status")
	}
	return inv, nil
}

// handleAcceptInvitation accepts a pending invitation addressed to the
// caller and starts the game.
func (s *Server) handleAcceptInvitation(w http.ResponseWriter, r *http.Request) {
	inv, err := s.loadInvitation(r, func(inv *models.Invitation) int64 { return inv.ToID })
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	sender, err := s.store.GetUserByID(r.Context(), inv.FromID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if sender == nil || sender.Deleted {
		s.writeError(w, r, apperrors.NewNotFoundError("sender_deleted",
			"the user who sent this invitation no longer exists"))
		return
	}

	game, err := s.store.AcceptInvitation(r.Context(), inv.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if game == nil {
		// answered concurrently between the status check and the accept
		s.writeError(w, r, apperrors.NewConflictError("already_answered",
			"invitation is no longer pending"))
		return
	}

	s.log.Info(r.Context(), "invitation accepted",
		"invitation_id", inv.ID, "game_id", game.ID)
	writeJSON(w, http.StatusOK, gameIDResponse{GameID: game.ID})
}

// handleDeclineInvitation declines a pending invitation addressed to the
// caller.
func (s *Server) handleDeclineInvitation(w http.ResponseWriter, r *http.Request) {
	inv, err := s.loadInvitation(r, func(inv *models.Invitation) int64 { return inv.ToID })
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	sender, err := s.store.GetUserByID(r.Context(), inv.FromID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if sender == nil || sender.Deleted {
		s.writeError(w, r, apperrors.NewNotFoundError("sender_deleted",
			"the user who sent this invitation no longer exists"))
		return
	}

	ok, err := s.store.DeclineInvitation(r.Context(), inv.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !ok {
		s.writeError(w, r, apperrors.NewConflictError("already_answered",
			"invitation is no longer pending"))
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleCancelInvitation cancels a pending invitation the caller sent.
func (s *Server) handleCancelInvitation(w http.ResponseWriter, r *http.Request) {
	inv, err := s.loadInvitation(r, func(inv *models.Invitation) int64 { return inv.FromID })
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ok, err := s.store.CancelInvitation(r.Context(), inv.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !ok {
		s.writeError(w, r, apperrors.NewConflictError("already_answered",
			"invitation is no longer pending"))
		return
	}
	w.WriteHeader(http.StatusOK)
}
