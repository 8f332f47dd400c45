// Package domain defines the core domain models for the research assistant.
package domain

// TurnKind is the kind of a persisted conversation turn.
type TurnKind string

const (
	TurnKindHuman TurnKind = "human"
	TurnKindAI    TurnKind = "ai"
)

// Valid reports whether the kind may be persisted. Tool turns never are.
func (k TurnKind) Valid() bool {
	return k == TurnKindHuman || k == TurnKindAI
}

// Role is the role tag of a transient message.
type Role string

const (
	RoleHuman Role = "human"
	RoleAI    Role = "ai"
	RoleTool  Role = "tool"
)

// EventType represents the type of a progress event emitted while a turn runs.
type EventType string

const (
	EventTypeModelCallStarted EventType = "model_call_started"
	EventTypeModelCallDone    EventType = "model_call_done"
	EventTypeToolCallStarted  EventType = "tool_call_started"
	EventTypeToolCallDone     EventType = "tool_call_done"
	EventTypeTurnDone         EventType = "turn_done"
)
