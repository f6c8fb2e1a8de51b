package server

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/chessticulate/chessticulate-api/internal/logging"
)

func newRunningHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(logging.NewLogger(nil))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() { goleak.VerifyNone(t) })
	t.Cleanup(func() {
		cancel()
		<-hub.done
	})
	go hub.Run(ctx)
	return hub
}

func recvEvent(t *testing.T, sub *subscriber) MoveEvent {
	t.Helper()
	select {
	case payload, open := <-sub.send:
		require.True(t, open, "send channel closed")
		var ev MoveEvent
		require.NoError(t, json.Unmarshal(payload, &ev))
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return MoveEvent{}
	}
}

func TestHubDeliversToGameSubscribers(t *testing.T) {
	hub := newRunningHub(t)

	sub1 := hub.Subscribe(1)
	sub2 := hub.Subscribe(1)
	other := hub.Subscribe(2)
	defer hub.Unsubscribe(sub1)
	defer hub.Unsubscribe(sub2)
	defer hub.Unsubscribe(other)

	hub.Publish(MoveEvent{Type: "move", GameID: 1, Move: "e4", Whomst: 7})

	for _, sub := range []*subscriber{sub1, sub2} {
		ev := recvEvent(t, sub)
		assert.Equal(t, "move", ev.Type)
		assert.Equal(t, int64(1), ev.GameID)
		assert.Equal(t, "e4", ev.Move)
	}

	select {
	case payload := <-other.send:
		t.Fatalf("subscriber of another game received %s", payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	hub := newRunningHub(t)

	sub := hub.Subscribe(1)
	hub.Unsubscribe(sub)

	select {
	case _, open := <-sub.send:
		assert.False(t, open)
	case <-time.After(2 * time.Second):
		t.Fatal("send channel not closed after unsubscribe")
	}

	// double unsubscribe is harmless
	hub.Unsubscribe(sub)
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	hub := newRunningHub(t)

	slow := hub.Subscribe(1)
	// never read: overflow the buffered send queue
	for i := 0; i < subscriberBuffer+5; i++ {
		hub.Publish(MoveEvent{Type: "move", GameID: 1, Move: "e4"})
		// the broadcast queue is buffered too, give Run a moment to drain
		time.Sleep(time.Millisecond)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, open := <-slow.send:
			if !open {
				return // dropped as expected
			}
		case <-deadline:
			t.Fatal("slow subscriber was never dropped")
		}
	}
}

func TestHubShutdownClosesSubscribers(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := NewHub(logging.NewLogger(nil))
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	sub := hub.Subscribe(1)
	cancel()
	<-hub.done

	select {
	case _, open := <-sub.send:
		assert.False(t, open)
	case <-time.After(2 * time.Second):
		t.Fatal("send channel not closed on shutdown")
	}

	// subscribe and unsubscribe after shutdown do not block
	late := hub.Subscribe(2)
	_, open := <-late.send
	assert.False(t, open)
	hub.Unsubscribe(late)
}
