package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xiaot623/gogo/researchbot/internal/domain"
	"github.com/xiaot623/gogo/researchbot/internal/tools"
)

// MockModel is a deterministic offline model for local runs and tests.
// It calls the first bound tool once with the latest user text and then
// answers from that tool's output.
type MockModel struct {
	tools []tools.Spec
}

// NewMockModel creates a new mock model.
func NewMockModel(specs []tools.Spec) *MockModel {
	return &MockModel{tools: specs}
}

// Generate implements Model.
func (m *MockModel) Generate(ctx context.Context, messages []domain.Message) (*domain.AIMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lastHuman := -1
	for i, msg := range messages {
		if _, ok := msg.(domain.HumanMessage); ok {
			lastHuman = i
		}
	}
	if lastHuman < 0 {
		return nil, fmt.Errorf("mock model: transcript has no human message")
	}
	question := messages[lastHuman].(domain.HumanMessage).Content

	var results []string
	for _, msg := range messages[lastHuman+1:] {
		if tr, ok := msg.(domain.ToolResultMessage); ok {
			results = append(results, fmt.Sprintf("[%s] %s", tr.Name, tr.Content))
		}
	}
	if len(results) > 0 {
		return validate(&domain.AIMessage{
			Content: "Mock answer based on tool results:\n" + strings.Join(results, "\n"),
		})
	}

	if len(m.tools) == 0 {
		return validate(&domain.AIMessage{Content: "Mock response to: " + question})
	}

	args, err := json.Marshal(map[string]string{"query": question})
	if err != nil {
		return nil, err
	}
	return validate(&domain.AIMessage{
		ToolCalls: []domain.ToolCall{{
			ID:        fmt.Sprintf("mock_call_%d", lastHuman+1),
			Name:      m.tools[0].Name,
			Arguments: string(args),
		}},
	})
}
