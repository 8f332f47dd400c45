// Package llmtest provides scripted models for tests.
package llmtest

import (
	"context"
	"errors"
	"sync"

	"github.com/xiaot623/gogo/researchbot/internal/domain"
)

// ErrScriptExhausted is returned once every scripted step has been consumed.
var ErrScriptExhausted = errors.New("no more scripted responses")

// Step is one scripted model reply.
type Step struct {
	Message *domain.AIMessage
	Err     error
}

// Reply scripts an assistant message.
func Reply(content string, calls ...domain.ToolCall) Step {
	msg := domain.NewAIMessage(content, calls...)
	return Step{Message: &msg}
}

// Fail scripts a model error.
func Fail(err error) Step {
	return Step{Err: err}
}

// Model replays its steps in order and records every transcript it receives.
type Model struct {
	mu    sync.Mutex
	steps []Step
	calls [][]domain.Message
}

// New creates a scripted model.
func New(steps ...Step) *Model {
	return &Model{steps: steps}
}

// Generate returns the next scripted step.
func (m *Model) Generate(ctx context.Context, messages []domain.Message) (*domain.AIMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, append([]domain.Message(nil), messages...))
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(m.steps) == 0 {
		return nil, ErrScriptExhausted
	}
	step := m.steps[0]
	m.steps = m.steps[1:]
	return step.Message, step.Err
}

// Calls returns the transcripts seen so far.
func (m *Model) Calls() [][]domain.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]domain.Message(nil), m.calls...)
}

// Func adapts a function to the model interface.
type Func func(ctx context.Context, messages []domain.Message) (*domain.AIMessage, error)

// Generate calls f.
func (f Func) Generate(ctx context.Context, messages []domain.Message) (*domain.AIMessage, error) {
	return f(ctx, messages)
}
