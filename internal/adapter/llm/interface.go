// Package llm provides the chat model adapters used by the agent loop.
package llm

import (
	"context"
	"errors"

	"github.com/xiaot623/gogo/researchbot/internal/domain"
)

// ErrEmptyResponse is returned when the model produced neither text nor tool calls.
var ErrEmptyResponse = errors.New("model returned an empty response")

// Model is a chat-completion model with a fixed tool set bound at construction.
type Model interface {
	// Generate returns the next assistant message for the transcript.
	Generate(ctx context.Context, messages []domain.Message) (*domain.AIMessage, error)
}

// Ensure the adapters implement Model.
var (
	_ Model = (*OpenAIModel)(nil)
	_ Model = (*AnthropicModel)(nil)
	_ Model = (*MockModel)(nil)
)

// validate enforces the well-formed response rule shared by every adapter.
func validate(msg *domain.AIMessage) (*domain.AIMessage, error) {
	if msg == nil || (msg.Content == "" && len(msg.ToolCalls) == 0) {
		return nil, ErrEmptyResponse
	}
	return msg, nil
}
