// Package server is the HTTP surface of the chessticulate API: routing,
// middleware, request validation and the live game update hub.
package server

import (
	"context"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/net/netutil"

	"github.com/chessticulate/chessticulate-api/internal/auth"
	"github.com/chessticulate/chessticulate-api/internal/config"
	"github.com/chessticulate/chessticulate-api/internal/logging"
	"github.com/chessticulate/chessticulate-api/internal/store"
	"github.com/chessticulate/chessticulate-api/internal/workers"
)

// Server owns the HTTP listener and its dependencies.
type Server struct {
	cfg      *config.Config
	log      logging.Logger
	store    *store.Store
	auth     *auth.Service
	workers  *workers.Client
	hub      *Hub
	limiter  *RateLimiter
	metrics  *Metrics
	validate *validator.Validate

	httpServer *http.Server
	ready      atomic.Bool
}

// New wires a server from its dependencies. Call Start to serve.
func New(cfg *config.Config, log logging.Logger, st *store.Store, authSvc *auth.Service, workersClient *workers.Client) *Server {
	s := &Server{
		cfg:      cfg,
		log:      log.WithComponent("server"),
		store:    st,
		auth:     authSvc,
		workers:  workersClient,
		hub:      NewHub(log),
		metrics:  NewMetrics(),
		validate: newValidator(),
	}
	if cfg.Server.RateLimit.Enabled {
		s.limiter = NewRateLimiter(&cfg.Server.RateLimit, log)
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler builds the routed handler with the full middleware stack. Exposed
// for handler tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.routes(mux)

	// outermost first
	chain := []Middleware{
		RequestIDMiddleware(),
		RecoveryMiddleware(s.log),
		LoggingMiddleware(s.log),
		MetricsMiddleware(s.metrics),
		CORSMiddleware(s.cfg.Server.AllowedOrigins),
	}
	if s.limiter != nil {
		chain = append(chain, RateLimitMiddleware(s.limiter))
	}
	return Chain(mux, chain...)
}

func (s *Server) routes(mux *http.ServeMux) {
	authed := s.requireAuth

	mux.HandleFunc("POST /signup", s.handleSignup)
	mux.HandleFunc("POST /login", s.handleLogin)

	mux.HandleFunc("GET /users", authed(s.handleListUsers))
	mux.HandleFunc("GET /users/self", authed(s.handleGetSelf))
	mux.HandleFunc("DELETE /users/self", authed(s.handleDeleteSelf))
	mux.HandleFunc("GET /users/name/{name}", s.handleUsernameExists)
	mux.HandleFunc("GET /users/email/{email}", s.handleEmailExists)

	mux.HandleFunc("POST /invitations", authed(s.handleCreateInvitation))
	mux.HandleFunc("GET /invitations", authed(s.handleListInvitations))
	mux.HandleFunc("PUT /invitations/{id}/accept", authed(s.handleAcceptInvitation))
	mux.HandleFunc("PUT /invitations/{id}/decline", authed(s.handleDeclineInvitation))
	mux.HandleFunc("PUT /invitations/{id}/cancel", authed(s.handleCancelInvitation))

	mux.HandleFunc("GET /games", authed(s.handleListGames))
	mux.HandleFunc("POST /games/{id}/move", authed(s.handleMove))
	mux.HandleFunc("POST /games/{id}/forfeit", authed(s.handleForfeit))
	mux.HandleFunc("GET /games/{id}/update", s.handleGameUpdates)
	mux.HandleFunc("GET /games/{id}/ws", s.handleGameSocket)

	mux.HandleFunc("GET /moves", authed(s.handleListMoves))

	mux.HandleFunc("POST /challenges", authed(s.handleCreateChallenge))
	mux.HandleFunc("GET /challenges", authed(s.handleListChallenges))
	mux.HandleFunc("POST /challenges/{id}/accept", authed(s.handleAcceptChallenge))
	mux.HandleFunc("POST /challenges/{id}/cancel", authed(s.handleCancelChallenge))

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)
	mux.HandleFunc("GET /version", s.handleVersion)
	mux.Handle("GET /metrics", s.metrics.Handler())
}

// Start serves until ctx is cancelled, then drains in-flight requests. The
// listener is capped at the configured connection limit.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	if s.cfg.Server.MaxConns > 0 {
		ln = netutil.LimitListener(ln, s.cfg.Server.MaxConns)
	}

	hubCtx, cancelHub := context.WithCancel(context.Background())
	defer cancelHub()
	go s.hub.Run(hubCtx)

	s.ready.Store(true)
	s.log.Info(ctx, "server listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.ready.Store(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if s.limiter != nil {
		s.limiter.Stop()
	}
	s.log.Info(context.Background(), "server stopped")
	return nil
}
