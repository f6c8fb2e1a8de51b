package server

import (
	"context"
	"encoding/json"

	"github.com/chessticulate/chessticulate-api/internal/logging"
)

// subscriberBuffer is the per-subscriber send queue depth. Subscribers that
// fall this far behind are dropped.
const subscriberBuffer = 16

// MoveEvent is the payload broadcast to game subscribers after each
// accepted move or forfeit.
type MoveEvent struct {
	Type   string `json:"type"`
	GameID int64  `json:"gameId"`
	Move   string `json:"move,omitempty"`
	FEN    string `json:"fen"`
	Status string `json:"status"`
	Whomst int64  `json:"whomst"`
}

type subscriber struct {
	gameID int64
	send   chan []byte
}

type event struct {
	gameID  int64
	payload []byte
}

// Hub fans move events out to the subscribers of each game. SSE and
// websocket handlers both register here; all state is confined to Run.
type Hub struct {
	log        logging.Logger
	register   chan *subscriber
	unregister chan *subscriber
	broadcast  chan event
	done       chan struct{}
}

// NewHub builds a hub. Call Run before subscribing.
func NewHub(log logging.Logger) *Hub {
	return &Hub{
		log:        log.WithComponent("hub"),
		register:   make(chan *subscriber),
		unregister: make(chan *subscriber),
		broadcast:  make(chan event, 64),
		done:       make(chan struct{}),
	}
}

// Run owns the subscriber table until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	subs := make(map[int64]map[*subscriber]struct{})
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for _, gameSubs := range subs {
				for sub := range gameSubs {
					close(sub.send)
				}
			}
			return

		case sub := <-h.register:
			gameSubs, ok := subs[sub.gameID]
			if !ok {
				gameSubs = make(map[*subscriber]struct{})
				subs[sub.gameID] = gameSubs
			}
			gameSubs[sub] = struct{}{}

		case sub := <-h.unregister:
			if gameSubs, ok := subs[sub.gameID]; ok {
				if _, registered := gameSubs[sub]; registered {
					delete(gameSubs, sub)
					close(sub.send)
					if len(gameSubs) == 0 {
						delete(subs, sub.gameID)
					}
				}
			}

		case ev := <-h.broadcast:
			gameSubs := subs[ev.gameID]
			var stalled []*subscriber
			for sub := range gameSubs {
				select {
				case sub.send <- ev.payload:
				default:
					stalled = append(stalled, sub)
				}
			}
			for _, sub := range stalled {
				delete(gameSubs, sub)
				close(sub.send)
				h.log.Warn(context.Background(), nil, "dropped slow subscriber",
					"game_id", ev.gameID)
			}
			if len(gameSubs) == 0 {
				delete(subs, ev.gameID)
			}
		}
	}
}

// Subscribe registers a new subscriber for a game. The returned channel is
// closed when the hub drops the subscriber or shuts down.
func (h *Hub) Subscribe(gameID int64) *subscriber {
	sub := &subscriber{gameID: gameID, send: make(chan []byte, subscriberBuffer)}
	select {
	case h.register <- sub:
	case <-h.done:
		close(sub.send)
	}
	return sub
}

// Unsubscribe removes a subscriber. Safe to call after the hub already
// dropped it or shut down.
func (h *Hub) Unsubscribe(sub *subscriber) {
	select {
	case h.unregister <- sub:
	case <-h.done:
	}
}

// Publish broadcasts a move event to all subscribers of its game.
func (h *Hub) Publish(ev MoveEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- event{gameID: ev.GameID, payload: payload}:
	default:
		h.log.Warn(context.Background(), nil, "broadcast queue full, event dropped",
			"game_id", ev.GameID)
	}
}
