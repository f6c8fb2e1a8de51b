package server

import (
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"strconv"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/chessticulate/chessticulate-api/internal/errors"
	"github.com/chessticulate/chessticulate-api/internal/models"
)

// usernamePattern restricts account names to word characters and dashes.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return v
}

type signupRequest struct {
	Name     string `json:"name" validate:"required,min=3,max=15,username"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginRequest struct {
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type createInvitationRequest struct {
	ToID     int64           `json:"to_id" validate:"required,gt=0"`
	GameType models.GameType `json:"game_type"`
}

type createChallengeRequest struct {
	GameType models.GameType `json:"game_type"`
}

type moveRequest struct {
	Move string `json:"move" validate:"required"`
}

// decodeJSON reads and validates a request body.
func (s *Server) decodeJSON(r *http.Request, dst interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return apperrors.NewValidationError("bad_body", "failed to read request body")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return apperrors.NewValidationError("bad_json", "request body is not valid JSON")
	}
	if err := s.validate.Struct(dst); err != nil {
		if _, ok := err.(*validator.InvalidValidationError); ok {
			return apperrors.NewInternalError("validate", "validation failed", err)
		}
		fields := err.(validator.ValidationErrors)
		if len(fields) > 0 {
			return apperrors.NewValidationError("invalid_field",
				"invalid value for field '"+fields[0].Field()+"'")
		}
		return apperrors.NewValidationError("invalid_request", "invalid request")
	}
	return nil
}

// pathID parses the {id} path segment.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("bad_id", "invalid id in path")
	}
	return id, nil
}

// queryInt64 parses an optional integer query parameter.
func queryInt64(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, apperrors.NewValidationError("bad_query",
			"query parameter '"+name+"' must be an integer")
	}
	return &v, nil
}

// queryBool parses an optional boolean query parameter.
func queryBool(r *http.Request, name string) (*bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperrors.NewValidationError("bad_query",
			"query parameter '"+name+"' must be a boolean")
	}
	return &v, nil
}

// paging extracts skip/limit/reverse, leaving limit clamping to the store.
func paging(r *http.Request) (skip, limit int, reverse bool, err error) {
	if v, perr := queryInt64(r, "skip"); perr != nil {
		return 0, 0, false, perr
	} else if v != nil {
		skip = int(*v)
	}
	if v, perr := queryInt64(r, "limit"); perr != nil {
		return 0, 0, false, perr
	} else if v != nil {
		limit = int(*v)
	}
	if v, perr := queryBool(r, "reverse"); perr != nil {
		return 0, 0, false, perr
	} else if v != nil {
		reverse = *v
	}
	return skip, limit, reverse, nil
}
