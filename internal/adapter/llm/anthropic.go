package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"

	"github.com/xiaot623/gogo/researchbot/internal/config"
	"github.com/xiaot623/gogo/researchbot/internal/domain"
	"github.com/xiaot623/gogo/researchbot/internal/tools"
)

// DefaultAnthropicModel is used when the configured model is the Groq default.
const DefaultAnthropicModel = "claude-sonnet-4-5"

// AnthropicModel talks to the Anthropic Messages API with tool use.
type AnthropicModel struct {
	client    anthropic.Client
	model     string
	system    string
	maxTokens int
	tools     []anthropic.ToolUnionParam
}

// NewAnthropicModel creates a model bound to the given tool specs.
func NewAnthropicModel(cfg config.LLMConfig, specs []tools.Spec) *AnthropicModel {
	opts := []anthropicopt.RequestOption{
		anthropicopt.WithAPIKey(cfg.APIKey),
		anthropicopt.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, anthropicopt.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, anthropicopt.WithRequestTimeout(cfg.Timeout))
	}

	bound := make([]anthropic.ToolUnionParam, 0, len(specs))
	for _, s := range specs {
		bound = append(bound, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        s.Name,
				Description: anthropic.String(s.Description),
				InputSchema: toInputSchema(s.Parameters),
			},
		})
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &AnthropicModel{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		system:    cfg.SystemPrompt,
		maxTokens: maxTokens,
		tools:     bound,
	}
}

// toInputSchema converts a JSON schema object into Anthropic's input schema.
func toInputSchema(params map[string]any) anthropic.ToolInputSchemaParam {
	schema := anthropic.ToolInputSchemaParam{Properties: params["properties"]}
	switch req := params["required"].(type) {
	case []string:
		schema.Required = req
	case []any:
		for _, v := range req {
			if name, ok := v.(string); ok {
				schema.Required = append(schema.Required, name)
			}
		}
	}
	return schema
}

// Generate implements Model.
func (m *AnthropicModel) Generate(ctx context.Context, messages []domain.Message) (*domain.AIMessage, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.model),
		MaxTokens: int64(m.maxTokens),
		Messages:  toAnthropicMessages(messages),
	}
	if m.system != "" {
		params.System = []anthropic.TextBlockParam{{Text: m.system}}
	}
	if len(m.tools) > 0 {
		params.Tools = m.tools
	}

	resp, err := m.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	out := &domain.AIMessage{}
	var text strings.Builder
	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(b.Text)
		case anthropic.ToolUseBlock:
			args := string(b.Input)
			if strings.TrimSpace(args) == "" || args == "null" {
				args = "{}"
			}
			out.ToolCalls = append(out.ToolCalls, domain.ToolCall{ID: b.ID, Name: b.Name, Arguments: args})
		}
	}
	out.Content = strings.TrimSpace(text.String())
	return validate(out)
}

// toAnthropicMessages converts the transcript. Consecutive tool results are
// grouped into a single user message.
func toAnthropicMessages(messages []domain.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	var pending []anthropic.ContentBlockParamUnion
	flush := func() {
		if len(pending) > 0 {
			out = append(out, anthropic.NewUserMessage(pending...))
			pending = nil
		}
	}

	for _, msg := range messages {
		switch v := msg.(type) {
		case domain.HumanMessage:
			flush()
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(v.Content)))
		case domain.AIMessage:
			flush()
			var blocks []anthropic.ContentBlockParamUnion
			if v.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(v.Content))
			}
			for _, tc := range v.ToolCalls {
				args := json.RawMessage(tc.Arguments)
				if !json.Valid(args) {
					args = json.RawMessage("{}")
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, args, tc.Name))
			}
			if len(blocks) > 0 {
				out = append(out, anthropic.NewAssistantMessage(blocks...))
			}
		case domain.ToolResultMessage:
			isError := strings.HasPrefix(v.Content, "Error:")
			pending = append(pending, anthropic.NewToolResultBlock(v.ToolCallID, v.Content, isError))
		}
	}
	flush()
	return out
}
