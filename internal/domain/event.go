package domain

// Event is a transient progress notification produced by the agent loop.
// Events are pushed to live subscribers only and never persisted.
type Event struct {
	Type       EventType `json:"type"`
	Ts         int64     `json:"ts"` // Unix milliseconds
	SessionID  string    `json:"session_id,omitempty"`
	Round      int       `json:"round,omitempty"`
	ToolName   string    `json:"tool_name,omitempty"`
	ToolCallID string    `json:"tool_call_id,omitempty"`
	ToolCalls  int       `json:"tool_calls,omitempty"`
	LatencyMs  int64     `json:"latency_ms,omitempty"`
	Outcome    string    `json:"outcome,omitempty"`
	Error      string    `json:"error,omitempty"`
}
