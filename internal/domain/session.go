package domain

import "time"

// Session represents a conversation session.
type Session struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Turn is a durable human or ai message belonging to one session.
type Turn struct {
	MessageID string    `json:"message_id"`
	SessionID string    `json:"session_id"`
	Kind      TurnKind  `json:"type"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"timestamp"`
}
