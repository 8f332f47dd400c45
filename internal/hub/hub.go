// Package hub fans out agent progress events to WebSocket subscribers.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/xiaot623/gogo/researchbot/internal/domain"
)

const sendBufferSize = 64

var (
	// ErrBufferFull is returned when a connection's send buffer is full.
	ErrBufferFull = errors.New("send buffer full")
	// ErrConnectionClosed is returned for connections the hub no longer holds.
	ErrConnectionClosed = errors.New("connection closed")
)

// Connection is one subscriber of a session's events.
type Connection struct {
	ID        string
	SessionID string
	Conn      *websocket.Conn
	Send      chan []byte
	mu        sync.Mutex
}

// registration adds a connection and optionally queues a first message.
type registration struct {
	conn *Connection
	ack  []byte
}

// sessionMessage is a payload addressed to every connection of a session.
type sessionMessage struct {
	sessionID string
	data      []byte
}

// Hub owns the session -> connections index. A single goroutine (Run)
// applies registrations and broadcasts.
type Hub struct {
	connections map[string]*Connection
	sessions    map[string]map[string]bool

	register   chan registration
	unregister chan *Connection
	broadcast  chan sessionMessage
	done       chan struct{}

	mu sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		connections: make(map[string]*Connection),
		sessions:    make(map[string]map[string]bool),
		register:    make(chan registration),
		unregister:  make(chan *Connection),
		broadcast:   make(chan sessionMessage, 256),
		done:        make(chan struct{}),
	}
}

// Run starts the hub's main loop and returns when ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()
	for {
		select {
		case <-ctx.Done():
			return

		case reg := <-h.register:
			conn := reg.conn
			h.mu.Lock()
			h.connections[conn.ID] = conn
			if h.sessions[conn.SessionID] == nil {
				h.sessions[conn.SessionID] = make(map[string]bool)
			}
			h.sessions[conn.SessionID][conn.ID] = true
			if reg.ack != nil {
				select {
				case conn.Send <- reg.ack:
				default:
				}
			}
			h.mu.Unlock()
			log.Printf("INFO: subscriber registered: %s (session: %s)", conn.ID, conn.SessionID)

		case conn := <-h.unregister:
			h.remove(conn)

		case msg := <-h.broadcast:
			var slow []*Connection
			h.mu.RLock()
			for connID := range h.sessions[msg.sessionID] {
				conn := h.connections[connID]
				if conn == nil {
					continue
				}
				select {
				case conn.Send <- msg.data:
				default:
					slow = append(slow, conn)
				}
			}
			h.mu.RUnlock()
			for _, conn := range slow {
				log.Printf("WARN: subscriber %s buffer full, closing", conn.ID)
				h.remove(conn)
			}
		}
	}
}

func (h *Hub) remove(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.connections[conn.ID]; !ok {
		return
	}
	delete(h.connections, conn.ID)
	if ids := h.sessions[conn.SessionID]; ids != nil {
		delete(ids, conn.ID)
		if len(ids) == 0 {
			delete(h.sessions, conn.SessionID)
		}
	}
	close(conn.Send)
	log.Printf("INFO: subscriber unregistered: %s", conn.ID)
}

func (h *Hub) shutdown() {
	close(h.done)
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, conn := range h.connections {
		close(conn.Send)
		delete(h.connections, id)
	}
	h.sessions = make(map[string]map[string]bool)
}

// NewConnection creates a connection for a session. ws may be nil for
// in-process subscribers.
func (h *Hub) NewConnection(ws *websocket.Conn, sessionID string) *Connection {
	return &Connection{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Conn:      ws,
		Send:      make(chan []byte, sendBufferSize),
	}
}

// Register registers a connection with the hub.
func (h *Hub) Register(conn *Connection) {
	h.Subscribe(conn, nil)
}

// Subscribe registers a connection and queues ack as its first message.
// After shutdown it does nothing.
func (h *Hub) Subscribe(conn *Connection, ack []byte) {
	select {
	case h.register <- registration{conn: conn, ack: ack}:
	case <-h.done:
	}
}

// Unregister unregisters a connection from the hub.
func (h *Hub) Unregister(conn *Connection) {
	select {
	case h.unregister <- conn:
	case <-h.done:
	}
}

// Broadcast queues data for every connection of a session. It never blocks;
// when the queue is full the payload is dropped.
func (h *Hub) Broadcast(sessionID string, data []byte) bool {
	select {
	case h.broadcast <- sessionMessage{sessionID: sessionID, data: data}:
		return true
	default:
		return false
	}
}

// BroadcastJSON marshals v and broadcasts it to a session.
func (h *Hub) BroadcastJSON(sessionID string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if !h.Broadcast(sessionID, data) {
		return ErrBufferFull
	}
	return nil
}

// OnEvent publishes an agent event to the event's session.
func (h *Hub) OnEvent(ev domain.Event) {
	if ev.SessionID == "" || !h.HasActiveConnections(ev.SessionID) {
		return
	}
	if err := h.BroadcastJSON(ev.SessionID, ev); err != nil {
		log.Printf("WARN: dropping %s event for session %s: %v", ev.Type, ev.SessionID, err)
	}
}

// SendToConnection sends a message to a specific connection. Send channels
// are only closed under the write lock.
func (h *Hub) SendToConnection(conn *Connection, data []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.connections[conn.ID] != conn {
		return ErrConnectionClosed
	}
	select {
	case conn.Send <- data:
		return nil
	default:
		return ErrBufferFull
	}
}

// GetConnectionCount returns the number of active connections.
func (h *Hub) GetConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// HasActiveConnections checks if a session has any active connections.
func (h *Hub) HasActiveConnections(sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID]) > 0
}

// WriteMessage writes a message to the connection with proper locking.
func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}

// SetWriteDeadline sets the write deadline for the connection.
func (c *Connection) SetWriteDeadline(t time.Time) error {
	return c.Conn.SetWriteDeadline(t)
}

// Close closes the underlying WebSocket.
func (c *Connection) Close() error {
	if c.Conn == nil {
		return nil
	}
	return c.Conn.Close()
}
