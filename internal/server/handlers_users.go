package server

import (
	"net/http"

	"github.com/chessticulate/chessticulate-api/internal/auth"
	apperrors "github.com/chessticulate/chessticulate-api/internal/errors"
	"github.com/chessticulate/chessticulate-api/internal/store"
)

// handleSignup creates a new account. The password must satisfy the
// strength policy; name and email must be unused.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		s.writeError(w, r, err)
		return
	}

	hash, err := s.auth.HashPassword(req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := s.store.CreateUser(r.Context(), req.Name, req.Email, hash)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.log.Info(r.Context(), "user signed up", "user_id", user.ID, "name", user.Name)
	writeJSON(w, http.StatusCreated, toOwnUserResponse(user))
}

// handleLogin checks credentials and returns a signed JWT.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := s.decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	user, err := s.store.GetUserByName(r.Context(), req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if user == nil || !s.auth.CheckPassword(user.PasswordHash, req.Password) {
		s.writeError(w, r, apperrors.NewAuthError("bad_credentials", "invalid credentials"))
		return
	}

	token, err := s.auth.MintToken(user)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{JWT: token})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	skip, limit, reverse, err := paging(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	userID, err := queryInt64(r, "user_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	filter := store.UserFilter{
		ID:      userID,
		Skip:    skip,
		Limit:   limit,
		Reverse: reverse,
		OrderBy: r.URL.Query().Get("order_by"),
	}
	if name := r.URL.Query().Get("user_name"); name != "" {
		filter.Name = &name
	}

	users, err := s.store.ListUsers(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := make([]userResponse, 0, len(users))
	for _, user := range users {
		resp = append(resp, toUserResponse(user))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetSelf(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	user, err := s.store.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if user == nil {
		s.writeError(w, r, apperrors.NewNotFoundError("user_not_found", "user does not exist"))
		return
	}
	writeJSON(w, http.StatusOK, toOwnUserResponse(user))
}

// handleDeleteSelf soft deletes the calling account. Games and moves keep
// referencing the row.
func (s *Server) handleDeleteSelf(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	if _, err := s.store.SoftDeleteUser(r.Context(), claims.UserID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.log.Info(r.Context(), "user deleted", "user_id", claims.UserID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUsernameExists(w http.ResponseWriter, r *http.Request) {
	user, err := s.store.GetUserByName(r.Context(), r.PathValue("name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if user == nil {
		writeJSON(w, http.StatusOK, existsResponse{Exists: false, Detail: "username does not exist"})
		return
	}
	writeJSON(w, http.StatusOK, existsResponse{Exists: true, Detail: "username exists"})
}

func (s *Server) handleEmailExists(w http.ResponseWriter, r *http.Request) {
	user, err := s.store.GetUserByEmail(r.Context(), r.PathValue("email"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if user == nil {
		writeJSON(w, http.StatusOK, existsResponse{Exists: false, Detail: "email does not exist"})
		return
	}
	writeJSON(w, http.StatusOK, existsResponse{Exists: true, Detail: "email exists"})
}
