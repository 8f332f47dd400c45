// Package ws streams agent progress events over WebSocket.
package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/researchbot/internal/domain"
	"github.com/xiaot623/gogo/researchbot/internal/hub"
)

const (
	writeTimeout   = 10 * time.Second
	readTimeout    = 60 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 4096
)

// EventTypeSubscribed acknowledges a new subscription.
const EventTypeSubscribed domain.EventType = "subscribed"

// Server handles WebSocket subscriptions.
type Server struct {
	hub      *hub.Hub
	upgrader websocket.Upgrader
}

// NewServer creates a new WebSocket server.
func NewServer(h *hub.Hub) *Server {
	return &Server{
		hub: h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// RegisterRoutes registers the WebSocket route.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/:session_id", s.HandleWebSocket)
}

// HandleWebSocket upgrades the request and subscribes it to the session's events.
func (s *Server) HandleWebSocket(c echo.Context) error {
	sessionID := strings.TrimSpace(c.Param("session_id"))
	if sessionID == "" {
		return c.JSON(http.StatusBadRequest, domain.ErrorResponse{Error: "session_id is required"})
	}

	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("WARN: failed to upgrade WebSocket: %v", err)
		return err
	}
	ws.SetReadLimit(maxMessageSize)

	conn := s.hub.NewConnection(ws, sessionID)
	s.hub.Subscribe(conn, subscribedMessage(sessionID))

	go s.writePump(conn)
	go s.readPump(conn)
	return nil
}

func subscribedMessage(sessionID string) []byte {
	data, _ := json.Marshal(domain.Event{Type: EventTypeSubscribed, Ts: time.Now().UnixMilli(), SessionID: sessionID})
	return data
}

// readPump drains client frames so control messages are processed.
func (s *Server) readPump(conn *hub.Connection) {
	defer func() {
		s.hub.Unregister(conn)
		conn.Close()
	}()

	conn.Conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.Conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	for {
		if _, _, err := conn.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WARN: WebSocket error: %v", err)
			}
			return
		}
	}
}

// writePump writes queued events and keepalive pings.
func (s *Server) writePump(conn *hub.Connection) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("WARN: failed to write message: %v", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
