package workers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chessticulate/chessticulate-api/internal/config"
	apperrors "github.com/chessticulate/chessticulate-api/internal/errors"
	"github.com/chessticulate/chessticulate-api/internal/logging"
	"github.com/chessticulate/chessticulate-api/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(&config.WorkersConfig{
		BaseURL: srv.URL,
		Timeout: 2 * time.Second,
	}, logging.NewLogger(nil))
}

func TestDoMoveSuccess(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.JSONEq(t, `"e4"`, string(req["move"]))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"fen":    "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1",
			"states": map[string]int{"some-state": 1},
			"status": "",
		})
	})

	result, err := client.DoMove(context.Background(), models.StartingFEN, "e4", nil)
	require.NoError(t, err)
	assert.Contains(t, result.FEN, " b KQkq")
	assert.Nil(t, result.Result())
}

func TestDoMoveTerminalStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"fen":    "final-fen",
			"states": map[string]int{},
			"status": "CHECKMATE",
		})
	})

	result, err := client.DoMove(context.Background(), "fen", "Qxf7#", json.RawMessage(`{}`))
	require.NoError(t, err)
	require.NotNil(t, result.Result())
	assert.Equal(t, models.ResultCheckmate, *result.Result())
}

func TestDoMoveRejectedMove(t *testing.T) {
	for _, message := range []string{
		"invalid move",
		"move puts player in check",
		"player is still in check",
		"the game is already over",
	} {
		t.Run(message, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(map[string]string{"message": message})
			})

			_, err := client.DoMove(context.Background(), "fen", "e9", nil)
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
			assert.Contains(t, err.Error(), message)
		})
	}
}

func TestDoMoveUnknownClientErrorIsUpstream(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"message": "something else entirely"})
	})

	_, err := client.DoMove(context.Background(), "fen", "e4", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUpstream))
}

func TestDoMoveServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.DoMove(context.Background(), "fen", "e4", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUpstream))
}

func TestDoMoveUnreachable(t *testing.T) {
	client := NewClient(&config.WorkersConfig{
		BaseURL: "http://127.0.0.1:1",
		Timeout: 500 * time.Millisecond,
	}, logging.NewLogger(nil))

	_, err := client.DoMove(context.Background(), "fen", "e4", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUpstream))
}

func TestSuggestMoveOmitsMoveField(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_, hasMove := req["move"]
		assert.False(t, hasMove)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"fen": "fen", "states": map[string]int{}, "status": "",
		})
	})

	_, err := client.SuggestMove(context.Background(), "fen", nil)
	require.NoError(t, err)
}
