package server

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

const (
	// heartbeatInterval keeps proxies from closing idle SSE streams.
	heartbeatInterval = 20 * time.Second

	// socketWriteWait bounds each websocket write.
	socketWriteWait = 10 * time.Second
)

// handleGameUpdates streams move events for one game over SSE.
func (s *Server) handleGameUpdates(w http.ResponseWriter, r *http.Request) {
	gameID, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorBody{Detail: "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-transform")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sub := s.hub.Subscribe(gameID)
	defer s.hub.Unsubscribe(sub)
	s.metrics.subscribers.Inc()
	defer s.metrics.subscribers.Dec()

	if _, err := w.Write([]byte(": connected\n\n")); err != nil {
		return
	}
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := w.Write([]byte(": ping\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case msg, open := <-sub.send:
			if !open {
				return
			}
			if _, err := w.Write([]byte("data: ")); err != nil {
				return
			}
			if _, err := w.Write(msg); err != nil {
				return
			}
			if _, err := w.Write([]byte("\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// handleGameSocket streams the same move events over a websocket.
func (s *Server) handleGameSocket(w http.ResponseWriter, r *http.Request) {
	gameID, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.originPatterns(),
	})
	if err != nil {
		s.log.Warn(r.Context(), err, "websocket upgrade failed", "game_id", gameID)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "")

	sub := s.hub.Subscribe(gameID)
	defer s.hub.Unsubscribe(sub)
	s.metrics.subscribers.Inc()
	defer s.metrics.subscribers.Dec()

	// reads are discarded; the socket exists to push updates and notice
	// client disconnects
	readCtx := conn.CloseRead(r.Context())

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-readCtx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case <-heartbeat.C:
			ctx, cancel := context.WithTimeout(readCtx, socketWriteWait)
			err := conn.Ping(ctx)
			cancel()
			if err != nil {
				return
			}
		case msg, open := <-sub.send:
			if !open {
				conn.Close(websocket.StatusGoingAway, "shutting down")
				return
			}
			ctx, cancel := context.WithTimeout(readCtx, socketWriteWait)
			err := conn.Write(ctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// originPatterns derives websocket origin patterns from the CORS allowlist.
func (s *Server) originPatterns() []string {
	if len(s.cfg.Server.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	patterns := make([]string, 0, len(s.cfg.Server.AllowedOrigins))
	for _, origin := range s.cfg.Server.AllowedOrigins {
		patterns = append(patterns, trimScheme(origin))
	}
	return patterns
}

func trimScheme(origin string) string {
	for _, scheme := range []string{"https://", "http://"} {
		if len(origin) > len(scheme) && origin[:len(scheme)] == scheme {
			return origin[len(scheme):]
		}
	}
	return origin
}
