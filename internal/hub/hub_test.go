package hub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/researchbot/internal/domain"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Run(ctx)
	return h
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, time.Second, 5*time.Millisecond)
}

func TestHubDeliversToSessionOnly(t *testing.T) {
	h := startHub(t)
	a := h.NewConnection(nil, "s1")
	b := h.NewConnection(nil, "s2")
	h.Register(a)
	h.Register(b)
	waitFor(t, func() bool { return h.GetConnectionCount() == 2 })

	h.OnEvent(domain.Event{Type: domain.EventTypeTurnDone, SessionID: "s1", Outcome: "answered"})

	select {
	case data := <-a.Send:
		var ev domain.Event
		require.NoError(t, json.Unmarshal(data, &ev))
		assert.Equal(t, domain.EventTypeTurnDone, ev.Type)
		assert.Equal(t, "answered", ev.Outcome)
	case <-time.After(time.Second):
		t.Fatal("expected event for s1")
	}

	select {
	case <-b.Send:
		t.Fatal("s2 must not receive s1 events")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestHubUnregister(t *testing.T) {
	h := startHub(t)
	conn := h.NewConnection(nil, "s1")
	h.Register(conn)
	waitFor(t, func() bool { return h.HasActiveConnections("s1") })

	h.Unregister(conn)
	waitFor(t, func() bool { return !h.HasActiveConnections("s1") })

	_, open := <-conn.Send
	assert.False(t, open)
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	h := startHub(t)
	conn := h.NewConnection(nil, "s1")
	h.Register(conn)
	waitFor(t, func() bool { return h.HasActiveConnections("s1") })

	for i := 0; i < sendBufferSize+10; i++ {
		h.Broadcast("s1", []byte(`{}`))
		time.Sleep(time.Millisecond)
	}
	waitFor(t, func() bool { return !h.HasActiveConnections("s1") })
}

func TestHubIgnoresSessionsWithoutSubscribers(t *testing.T) {
	h := startHub(t)
	h.OnEvent(domain.Event{Type: domain.EventTypeTurnDone, SessionID: "nobody"})
	assert.Equal(t, 0, h.GetConnectionCount())
}

func TestHubShutdownClosesConnections(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()

	conn := h.NewConnection(nil, "s1")
	h.Register(conn)
	cancel()
	<-stopped

	_, open := <-conn.Send
	assert.False(t, open)
	// Registering after shutdown must not block.
	h.Register(h.NewConnection(nil, "s2"))
}

func TestHubSubscribeQueuesAckFirst(t *testing.T) {
	h := startHub(t)
	conn := h.NewConnection(nil, "s1")
	h.Subscribe(conn, []byte(`{"type":"subscribed"}`))
	waitFor(t, func() bool { return h.HasActiveConnections("s1") })

	h.OnEvent(domain.Event{Type: domain.EventTypeTurnDone, SessionID: "s1"})
	assert.JSONEq(t, `{"type":"subscribed"}`, string(<-conn.Send))
	assert.Contains(t, string(<-conn.Send), string(domain.EventTypeTurnDone))
}

func TestHubSendAfterShutdown(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()

	conn := h.NewConnection(nil, "s1")
	h.Register(conn)
	waitFor(t, func() bool { return h.HasActiveConnections("s1") })
	require.NoError(t, h.SendToConnection(conn, []byte(`{}`)))
	cancel()
	<-stopped

	assert.NotPanics(t, func() {
		assert.ErrorIs(t, h.SendToConnection(conn, []byte(`{}`)), ErrConnectionClosed)
	})
}

func TestHubSendToUnregisteredConnection(t *testing.T) {
	h := startHub(t)
	conn := h.NewConnection(nil, "s1")
	assert.ErrorIs(t, h.SendToConnection(conn, []byte(`{}`)), ErrConnectionClosed)
}
