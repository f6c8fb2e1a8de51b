// Package workers is the HTTP client for the chess-workers move
// validation service. The API owns game records; chess-workers owns the
// rules of chess.
package workers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/chessticulate/chessticulate-api/internal/config"
	apperrors "github.com/chessticulate/chessticulate-api/internal/errors"
	"github.com/chessticulate/chessticulate-api/internal/logging"
	"github.com/chessticulate/chessticulate-api/internal/models"
)

// rejection messages chess-workers returns for moves the player got wrong,
// as opposed to service failures
var clientFaultMessages = map[string]struct{}{
	"invalid move":              {},
	"move puts player in check": {},
	"player is still in check":  {},
	"the game is already over":  {},
}

// MoveResult is the outcome of a validated move.
type MoveResult struct {
	FEN    string          `json:"fen"`
	States json.RawMessage `json:"states"`
	// Status carries a terminal game result, empty while the game continues.
	Status string `json:"status"`
}

// Result converts the status field to a GameResult, nil for an ongoing game.
func (r *MoveResult) Result() *models.GameResult {
	if r.Status == "" {
		return nil
	}
	res := models.GameResult(r.Status)
	return &res
}

// Client calls the chess-workers service.
type Client struct {
	baseURL string
	http    *http.Client
	log     logging.Logger
}

// NewClient builds a workers client from configuration.
func NewClient(cfg *config.WorkersConfig, log logging.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: timeout},
		log:     log.WithComponent("workers"),
	}
}

type moveRequest struct {
	FEN    string          `json:"fen"`
	Move   string          `json:"move,omitempty"`
	States json.RawMessage `json:"states"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// DoMove submits a move for validation. A rule violation comes back as a
// validation error carrying the rejection message; a workers failure comes
// back as an upstream error.
func (c *Client) DoMove(ctx context.Context, fen, move string, states json.RawMessage) (*MoveResult, error) {
	return c.post(ctx, moveRequest{FEN: fen, Move: move, States: states})
}

// SuggestMove asks chess-workers for a move suggestion at the given
// position. Only "the game is already over" counts as the caller's fault.
func (c *Client) SuggestMove(ctx context.Context, fen string, states json.RawMessage) (*MoveResult, error) {
	return c.post(ctx, moveRequest{FEN: fen, States: states})
}

func (c *Client) post(ctx context.Context, payload moveRequest) (*MoveResult, error) {
	if len(payload.States) == 0 {
		payload.States = json.RawMessage("{}")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, apperrors.NewInternalError("encode_move", "failed to encode move request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.NewInternalError("build_request", "failed to build workers request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.NewUpstreamError("workers_unreachable", "chess-workers request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperrors.NewUpstreamError("workers_read", "failed to read chess-workers response", err)
	}

	if resp.StatusCode == http.StatusOK {
		var result MoveResult
		if err := json.Unmarshal(raw, &result); err != nil {
			return nil, apperrors.NewUpstreamError("workers_decode",
				"chess-workers returned malformed response", err)
		}
		return &result, nil
	}

	var errResp errorResponse
	_ = json.Unmarshal(raw, &errResp)

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		if _, ok := clientFaultMessages[errResp.Message]; ok {
			return nil, apperrors.NewValidationError("rejected_move", errResp.Message)
		}
	}

	c.log.Error(ctx, nil, "chess-workers request failed",
		"status", resp.StatusCode, "message", errResp.Message)
	return nil, apperrors.NewUpstreamError("workers_error",
		fmt.Sprintf("chess-workers returned status %d", resp.StatusCode), nil)
}
