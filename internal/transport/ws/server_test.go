package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/researchbot/internal/domain"
	"github.com/xiaot623/gogo/researchbot/internal/hub"
)

func TestWebSocketStreamsSessionEvents(t *testing.T) {
	h := hub.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	e := echo.New()
	NewServer(h).RegisterRoutes(e)
	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/s1"
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer client.Close()

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ack domain.Event
	require.NoError(t, client.ReadJSON(&ack))
	assert.Equal(t, EventTypeSubscribed, ack.Type)
	assert.Equal(t, "s1", ack.SessionID)

	require.Eventually(t, func() bool { return h.HasActiveConnections("s1") }, time.Second, 5*time.Millisecond)
	h.OnEvent(domain.Event{Type: domain.EventTypeToolCallStarted, SessionID: "s1", ToolName: "arxiv"})

	var ev domain.Event
	require.NoError(t, client.ReadJSON(&ev))
	assert.Equal(t, domain.EventTypeToolCallStarted, ev.Type)
	assert.Equal(t, "arxiv", ev.ToolName)

	raw, err := json.Marshal(ev)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"session_id":"s1"`)
}
