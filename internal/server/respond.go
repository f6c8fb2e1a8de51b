package server

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/chessticulate/chessticulate-api/internal/errors"
)

// errorBody matches the {"detail": "..."} error shape of the API.
type errorBody struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps an error to its HTTP status and body. Internal details
// never leak to the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.StatusFor(err)
	if status >= 500 {
		s.log.Error(r.Context(), err, "request failed",
			"path", r.URL.Path, "method", r.Method)
	}
	writeJSON(w, status, errorBody{Detail: apperrors.DetailFor(err)})
}
