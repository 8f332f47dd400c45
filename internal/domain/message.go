package domain

// Message is an in-memory transcript entry scoped to a single agent loop run.
// The set of implementations is closed: HumanMessage, AIMessage and ToolResultMessage.
type Message interface {
	Role() Role
	isMessage()
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON object text
}

// HumanMessage is a user turn.
type HumanMessage struct {
	Content string
}

// AIMessage is a model turn. It is final only when ToolCalls is empty.
type AIMessage struct {
	Content   string
	ToolCalls []ToolCall
}

// ToolResultMessage answers exactly one ToolCall of the preceding AIMessage.
type ToolResultMessage struct {
	ToolCallID string
	Name       string
	Content    string
}

func (HumanMessage) Role() Role      { return RoleHuman }
func (AIMessage) Role() Role         { return RoleAI }
func (ToolResultMessage) Role() Role { return RoleTool }

func (HumanMessage) isMessage()      {}
func (AIMessage) isMessage()         {}
func (ToolResultMessage) isMessage() {}

// NewHumanMessage builds a human message.
func NewHumanMessage(content string) HumanMessage {
	return HumanMessage{Content: content}
}

// NewAIMessage builds an ai message, optionally carrying tool calls.
func NewAIMessage(content string, calls ...ToolCall) AIMessage {
	return AIMessage{Content: content, ToolCalls: calls}
}

// NewToolResultMessage builds the result for the tool call identified by callID.
func NewToolResultMessage(callID, name, content string) ToolResultMessage {
	return ToolResultMessage{ToolCallID: callID, Name: name, Content: content}
}

// HasToolCalls reports whether the model asked for tools.
func (m AIMessage) HasToolCalls() bool {
	return len(m.ToolCalls) > 0
}

// MessageFromTurn rebuilds a transient message from a persisted turn.
// Tool metadata is never reconstructed.
func MessageFromTurn(t Turn) (Message, bool) {
	switch t.Kind {
	case TurnKindHuman:
		return NewHumanMessage(t.Content), true
	case TurnKindAI:
		return NewAIMessage(t.Content), true
	}
	return nil, false
}
