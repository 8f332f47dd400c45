package domain

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message   string  `json:"message"`
	SessionID *string `json:"session_id,omitempty"`
}

// ChatResponse is returned after a successful chat turn.
type ChatResponse struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

// HistoryEntry is one turn as exposed by the history endpoint.
type HistoryEntry struct {
	Type      TurnKind `json:"type"`
	Content   string   `json:"content"`
	Timestamp string   `json:"timestamp"`
}

// HistoryResponse is returned by GET /api/history/:session_id.
type HistoryResponse struct {
	History   []HistoryEntry `json:"history"`
	SessionID string         `json:"session_id"`
}

// DiagnosticResponse is returned by POST /api/test.
type DiagnosticResponse struct {
	FinalResponse string `json:"final_response"`
	Status        string `json:"status"`
}

// ErrorResponse is the error body used by every endpoint.
type ErrorResponse struct {
	Error string `json:"error"`
}
