package server

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// acceptAnyMove is a chess-workers stub that approves every move without
// ending the game.
func acceptAnyMove(fen string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"fen": fen, "states": map[string]int{}, "status": "",
		})
	}
}

func TestGameUpdatesSSE(t *testing.T) {
	nextFEN := "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1"
	env := newTestEnv(t, acceptAnyMove(nextFEN))
	whiteToken, _, gameID := startGame(t, env)

	srv := httptest.NewServer(env.handler)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/games/%d/update", srv.URL, gameID), nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readLine := func() string {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		return line
	}

	// the preamble confirms the subscription is registered
	assert.Equal(t, ": connected\n", readLine())
	assert.Equal(t, "\n", readLine())

	rec := env.do(t, http.MethodPost,
		fmt.Sprintf("/games/%d/move", gameID), whiteToken, map[string]string{"move": "e4"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	line := readLine()
	require.True(t, strings.HasPrefix(line, "data: "), line)

	var event MoveEvent
	require.NoError(t, json.Unmarshal(
		[]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &event))
	assert.Equal(t, "move", event.Type)
	assert.Equal(t, gameID, event.GameID)
	assert.Equal(t, "e4", event.Move)
	assert.Equal(t, nextFEN, event.FEN)
}

func TestGameUpdatesWebsocket(t *testing.T) {
	nextFEN := "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1"
	env := newTestEnv(t, acceptAnyMove(nextFEN))
	whiteToken, _, gameID := startGame(t, env)

	srv := httptest.NewServer(env.handler)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") +
		fmt.Sprintf("/games/%d/ws", gameID)
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	// the handler subscribes after the upgrade completes; wait for it to
	// attach before publishing
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(env.server.metrics.subscribers) >= 1
	}, 2*time.Second, 10*time.Millisecond)

	rec := env.do(t, http.MethodPost,
		fmt.Sprintf("/games/%d/move", gameID), whiteToken, map[string]string{"move": "e4"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	typ, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageText, typ)

	var event MoveEvent
	require.NoError(t, json.Unmarshal(data, &event))
	assert.Equal(t, "move", event.Type)
	assert.Equal(t, gameID, event.GameID)
	assert.Equal(t, "e4", event.Move)
	assert.Equal(t, nextFEN, event.FEN)
}
