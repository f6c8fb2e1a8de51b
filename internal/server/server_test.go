package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chessticulate/chessticulate-api/internal/auth"
	"github.com/chessticulate/chessticulate-api/internal/config"
	"github.com/chessticulate/chessticulate-api/internal/logging"
	"github.com/chessticulate/chessticulate-api/internal/models"
	"github.com/chessticulate/chessticulate-api/internal/store"
	"github.com/chessticulate/chessticulate-api/internal/workers"
)

type testEnv struct {
	server  *Server
	handler http.Handler
	store   *store.Store
}

func newTestEnv(t *testing.T, workersHandler http.HandlerFunc) *testEnv {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{
			Host:        "127.0.0.1",
			Port:        0,
			Environment: "development",
			RateLimit:   config.RateLimitConfig{Enabled: false},
		},
		Database: config.DatabaseConfig{
			Driver:       "sqlite",
			DSN:          "file:" + filepath.Join(t.TempDir(), "test.db"),
			MaxOpenConns: 5,
			MaxIdleConns: 2,
		},
		Auth: config.AuthConfig{
			Secret:       "test-secret",
			TokenTTLDays: 7,
			BcryptCost:   10,
		},
	}

	log := logging.NewLogger(nil)
	st, err := store.Open(context.Background(), &cfg.Database, log)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	if workersHandler == nil {
		workersHandler = func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}
	}
	workersSrv := httptest.NewServer(workersHandler)
	t.Cleanup(workersSrv.Close)
	cfg.Workers = config.WorkersConfig{BaseURL: workersSrv.URL, Timeout: 2 * time.Second}

	authSvc := auth.NewService(&cfg.Auth, st)
	workersClient := workers.NewClient(&cfg.Workers, log)

	srv := New(cfg, log, st, authSvc, workersClient)

	hubCtx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.hub.Run(hubCtx)

	return &testEnv{server: srv, handler: srv.Handler(), store: st}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

// signup registers a user and returns a login token.
func (e *testEnv) signup(t *testing.T, name string) string {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/signup", "", map[string]string{
		"name":     name,
		"email":    name + "@example.com",
		"password": "Sup3r$ecret",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodPost, "/login", "", map[string]string{
		"name":     name,
		"password": "Sup3r$ecret",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp loginResponse
	decodeBody(t, rec, &resp)
	require.NotEmpty(t, resp.JWT)
	return resp.JWT
}

func TestSignup(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodPost, "/signup", "", map[string]string{
		"name": "fred", "email": "fred@example.com", "password": "Sup3r$ecret",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp ownUserResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "fred", resp.Name)
	assert.Equal(t, "fred@example.com", resp.Email)
	assert.NotZero(t, resp.ID)

	t.Run("duplicate name", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/signup", "", map[string]string{
			"name": "fred", "email": "other@example.com", "password": "Sup3r$ecret",
		})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("weak password", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/signup", "", map[string]string{
			"name": "george", "email": "george@example.com", "password": "weak",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad username", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/signup", "", map[string]string{
			"name": "no spaces!", "email": "x@example.com", "password": "Sup3r$ecret",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t, nil)
	env.signup(t, "fred")

	rec := env.do(t, http.MethodPost, "/login", "", map[string]string{
		"name": "fred", "password": "WrongPassword1!",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/login", "", map[string]string{
		"name": "nobody", "password": "Sup3r$ecret",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/users", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUserEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)
	token := env.signup(t, "fred")
	env.signup(t, "alice")

	rec := env.do(t, http.MethodGet, "/users?order_by=name", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var users []userResponse
	decodeBody(t, rec, &users)
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].Name)

	rec = env.do(t, http.MethodGet, "/users/self", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var self ownUserResponse
	decodeBody(t, rec, &self)
	assert.Equal(t, "fred", self.Name)
	assert.Equal(t, "fred@example.com", self.Email)

	rec = env.do(t, http.MethodGet, "/users/name/fred", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var exists existsResponse
	decodeBody(t, rec, &exists)
	assert.True(t, exists.Exists)

	rec = env.do(t, http.MethodGet, "/users/name/nobody", "", nil)
	decodeBody(t, rec, &exists)
	assert.False(t, exists.Exists)

	rec = env.do(t, http.MethodGet, "/users/email/fred@example.com", "", nil)
	decodeBody(t, rec, &exists)
	assert.True(t, exists.Exists)

	rec = env.do(t, http.MethodDelete, "/users/self", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// deleted accounts cannot log in or use their old token
	rec = env.do(t, http.MethodPost, "/login", "", map[string]string{
		"name": "fred", "password": "Sup3r$ecret",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodGet, "/users/self", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestInvitationFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	aliceToken := env.signup(t, "alice")
	bobToken := env.signup(t, "bob")

	var alice, bob ownUserResponse
	rec := env.do(t, http.MethodGet, "/users/self", aliceToken, nil)
	decodeBody(t, rec, &alice)
	rec = env.do(t, http.MethodGet, "/users/self", bobToken, nil)
	decodeBody(t, rec, &bob)

	t.Run("cannot invite self", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/invitations", aliceToken,
			map[string]int64{"to_id": alice.ID})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("addressee must exist", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/invitations", aliceToken,
			map[string]int64{"to_id": 9999})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	rec = env.do(t, http.MethodPost, "/invitations", aliceToken,
		map[string]int64{"to_id": bob.ID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var inv invitationResponse
	decodeBody(t, rec, &inv)
	assert.Equal(t, "PENDING", inv.Status)

	t.Run("list requires own party", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/invitations", aliceToken, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = env.do(t, http.MethodGet,
			fmt.Sprintf("/invitations?to_id=%d", bob.ID), aliceToken, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = env.do(t, http.MethodGet,
			fmt.Sprintf("/invitations?from_id=%d", alice.ID), aliceToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var invs []invitationResponse
		decodeBody(t, rec, &invs)
		assert.Len(t, invs, 1)
	})

	t.Run("only addressee accepts", func(t *testing.T) {
		rec := env.do(t, http.MethodPut,
			fmt.Sprintf("/invitations/%d/accept", inv.ID), aliceToken, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	rec = env.do(t, http.MethodPut,
		fmt.Sprintf("/invitations/%d/accept", inv.ID), bobToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var accepted gameIDResponse
	decodeBody(t, rec, &accepted)
	assert.NotZero(t, accepted.GameID)

	t.Run("answered invitations stay answered", func(t *testing.T) {
		rec := env.do(t, http.MethodPut,
			fmt.Sprintf("/invitations/%d/decline", inv.ID), bobToken, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing invitation is 404", func(t *testing.T) {
		rec := env.do(t, http.MethodPut, "/invitations/9999/accept", bobToken, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestInvitationSenderDeleted(t *testing.T) {
	env := newTestEnv(t, nil)
	aliceToken := env.signup(t, "alice")
	bobToken := env.signup(t, "bob")

	var bob ownUserResponse
	rec := env.do(t, http.MethodGet, "/users/self", bobToken, nil)
	decodeBody(t, rec, &bob)

	invite := func() invitationResponse {
		rec := env.do(t, http.MethodPost, "/invitations", aliceToken,
			map[string]int64{"to_id": bob.ID})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var inv invitationResponse
		decodeBody(t, rec, &inv)
		return inv
	}
	first := invite()
	second := invite()

	rec = env.do(t, http.MethodDelete, "/users/self", aliceToken, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	// invitations from a deleted account cannot be answered either way
	rec = env.do(t, http.MethodPut,
		fmt.Sprintf("/invitations/%d/accept", first.ID), bobToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPut,
		fmt.Sprintf("/invitations/%d/decline", second.ID), bobToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChallengeFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	aliceToken := env.signup(t, "alice")
	bobToken := env.signup(t, "bob")

	rec := env.do(t, http.MethodPost, "/challenges", aliceToken, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var challenge challengeResponse
	decodeBody(t, rec, &challenge)
	assert.Equal(t, "PENDING", challenge.Status)

	t.Run("cannot accept own challenge", func(t *testing.T) {
		rec := env.do(t, http.MethodPost,
			fmt.Sprintf("/challenges/%d/accept", challenge.ID), aliceToken, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	rec = env.do(t, http.MethodPost,
		fmt.Sprintf("/challenges/%d/accept", challenge.ID), bobToken, nil)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var accepted gameIDResponse
	decodeBody(t, rec, &accepted)
	assert.NotZero(t, accepted.GameID)

	t.Run("accepted challenge cannot be cancelled", func(t *testing.T) {
		rec := env.do(t, http.MethodPost,
			fmt.Sprintf("/challenges/%d/cancel", challenge.ID), aliceToken, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("only creator cancels", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/challenges", aliceToken, nil)
		require.Equal(t, http.StatusCreated, rec.Code)
		var c challengeResponse
		decodeBody(t, rec, &c)

		rec = env.do(t, http.MethodPost,
			fmt.Sprintf("/challenges/%d/cancel", c.ID), bobToken, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec = env.do(t, http.MethodPost,
			fmt.Sprintf("/challenges/%d/cancel", c.ID), aliceToken, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

// startGame signs two users up, runs an invitation through acceptance and
// returns both tokens plus the game ID. The inviter plays white.
func startGame(t *testing.T, env *testEnv) (whiteToken, blackToken string, gameID int64) {
	t.Helper()

	whiteToken = env.signup(t, "alice")
	blackToken = env.signup(t, "bob")

	var bob ownUserResponse
	rec := env.do(t, http.MethodGet, "/users/self", blackToken, nil)
	decodeBody(t, rec, &bob)

	rec = env.do(t, http.MethodPost, "/invitations", whiteToken,
		map[string]int64{"to_id": bob.ID})
	require.Equal(t, http.StatusCreated, rec.Code)
	var inv invitationResponse
	decodeBody(t, rec, &inv)

	rec = env.do(t, http.MethodPut,
		fmt.Sprintf("/invitations/%d/accept", inv.ID), blackToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var accepted gameIDResponse
	decodeBody(t, rec, &accepted)
	return whiteToken, blackToken, accepted.GameID
}

func TestMoveFlow(t *testing.T) {
	nextFEN := "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 1"
	env := newTestEnv(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Move string `json:"move"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.Move == "e9" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"message": "invalid move"})
			return
		}
		status := ""
		if req.Move == "Qxf7#" {
			status = "CHECKMATE"
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"fen": nextFEN, "states": map[string]int{}, "status": status,
		})
	})

	whiteToken, blackToken, gameID := startGame(t, env)
	movePath := fmt.Sprintf("/games/%d/move", gameID)

	t.Run("not your turn", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, movePath, blackToken, map[string]string{"move": "e5"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("non-player is forbidden", func(t *testing.T) {
		carolToken := env.signup(t, "carol")
		rec := env.do(t, http.MethodPost, movePath, carolToken, map[string]string{"move": "e4"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("rejected move", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, movePath, whiteToken, map[string]string{"move": "e9"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "invalid move")
	})

	t.Run("missing game", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/games/9999/move", whiteToken,
			map[string]string{"move": "e4"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	rec := env.do(t, http.MethodPost, movePath, whiteToken, map[string]string{"move": "e4"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var game gameResponse
	decodeBody(t, rec, &game)
	assert.Equal(t, nextFEN, game.FEN)
	assert.True(t, game.IsActive)

	// the turn passed to black
	rec = env.do(t, http.MethodPost, movePath, blackToken, map[string]string{"move": "Qxf7#"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	decodeBody(t, rec, &game)
	assert.False(t, game.IsActive)
	require.NotNil(t, game.Result)
	assert.Equal(t, string(models.ResultCheckmate), *game.Result)

	t.Run("moves are listed", func(t *testing.T) {
		rec := env.do(t, http.MethodGet,
			fmt.Sprintf("/moves?game_id=%d", gameID), whiteToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var moves []moveResponse
		decodeBody(t, rec, &moves)
		require.Len(t, moves, 2)
		assert.Equal(t, "e4", moves[0].MoveStr)
	})
}

func TestForfeit(t *testing.T) {
	env := newTestEnv(t, nil)
	whiteToken, blackToken, gameID := startGame(t, env)

	rec := env.do(t, http.MethodPost,
		fmt.Sprintf("/games/%d/forfeit", gameID), blackToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var game gameResponse
	decodeBody(t, rec, &game)
	assert.False(t, game.IsActive)
	require.NotNil(t, game.Result)
	assert.Equal(t, string(models.ResultResignation), *game.Result)

	// a finished game cannot be forfeited again
	rec = env.do(t, http.MethodPost,
		fmt.Sprintf("/games/%d/forfeit", gameID), whiteToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListGames(t *testing.T) {
	env := newTestEnv(t, nil)
	whiteToken, _, gameID := startGame(t, env)

	rec := env.do(t, http.MethodGet, "/games?is_active=true", whiteToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var games []gameResponse
	decodeBody(t, rec, &games)
	require.Len(t, games, 1)
	assert.Equal(t, gameID, games[0].ID)
	assert.Equal(t, "alice", games[0].WhiteUsername)
	assert.Equal(t, "bob", games[0].BlackUsername)
}

func TestMetaEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// the server never started listening, so readiness reports starting
	rec = env.do(t, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = env.do(t, http.MethodGet, "/version", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "version")

	rec = env.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, nil)
	env.server.cfg.Server.AllowedOrigins = []string{"https://chessticulate.example"}
	handler := env.server.Handler()

	req := httptest.NewRequest(http.MethodOptions, "/login", nil)
	req.Header.Set("Origin", "https://chessticulate.example")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://chessticulate.example",
		rec.Header().Get("Access-Control-Allow-Origin"))

	// unknown origins get no CORS headers
	req = httptest.NewRequest(http.MethodOptions, "/login", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, nil)
	env.server.cfg.Server.RateLimit = config.RateLimitConfig{
		Enabled:           true,
		RequestsPerMinute: 60,
		BurstSize:         2,
	}
	env.server.limiter = NewRateLimiter(&env.server.cfg.Server.RateLimit, logging.NewLogger(nil))
	t.Cleanup(env.server.limiter.Stop)
	handler := env.server.Handler()

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "10.1.2.3:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
