package llm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"

	"github.com/xiaot623/gogo/researchbot/internal/config"
	"github.com/xiaot623/gogo/researchbot/internal/domain"
	"github.com/xiaot623/gogo/researchbot/internal/tools"
)

// GroqBaseURL is the OpenAI-compatible endpoint of Groq.
const GroqBaseURL = "https://api.groq.com/openai/v1"

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// OpenAIModel talks to any OpenAI-compatible chat completion API (Groq by default).
type OpenAIModel struct {
	client     *openai.Client
	model      string
	system     string
	maxTokens  int
	maxRetries int
	backoff    time.Duration
	tools      []openai.Tool
}

// NewOpenAIModel creates a model bound to the given tool specs.
func NewOpenAIModel(cfg config.LLMConfig, specs []tools.Spec) *OpenAIModel {
	oc := openai.DefaultConfig(cfg.APIKey)
	switch {
	case cfg.BaseURL != "":
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	case cfg.Provider == "" || cfg.Provider == "groq":
		oc.BaseURL = GroqBaseURL
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	bound := make([]openai.Tool, 0, len(specs))
	for _, s := range specs {
		bound = append(bound, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  s.Parameters,
			},
		})
	}

	return &OpenAIModel{
		client:     openai.NewClientWithConfig(oc),
		model:      cfg.Model,
		system:     cfg.SystemPrompt,
		maxTokens:  cfg.MaxTokens,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Second,
		tools:      bound,
	}
}

// Generate implements Model.
func (m *OpenAIModel) Generate(ctx context.Context, messages []domain.Message) (*domain.AIMessage, error) {
	req := openai.ChatCompletionRequest{
		Model:     m.model,
		Messages:  m.toOpenAIMessages(messages),
		MaxTokens: m.maxTokens,
	}
	if len(m.tools) > 0 {
		req.Tools = m.tools
	}

	var resp openai.ChatCompletionResponse
	var err error
	for attempt := 0; ; attempt++ {
		resp, err = m.client.CreateChatCompletion(ctx, req)
		if err == nil || attempt >= m.maxRetries || !retryable(err) {
			break
		}
		wait := m.backoff * time.Duration(attempt+1)
		log.Printf("WARN: model call failed (attempt %d), retrying in %s: %v", attempt+1, wait, err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	choice := resp.Choices[0].Message
	out := &domain.AIMessage{Content: stripThink(choice.Content)}
	for _, tc := range choice.ToolCalls {
		id := tc.ID
		if id == "" {
			id = "call_" + uuid.New().String()
		}
		args := tc.Function.Arguments
		if strings.TrimSpace(args) == "" {
			args = "{}"
		}
		out.ToolCalls = append(out.ToolCalls, domain.ToolCall{ID: id, Name: tc.Function.Name, Arguments: args})
	}
	return validate(out)
}

func (m *OpenAIModel) toOpenAIMessages(messages []domain.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if m.system != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: m.system})
	}
	for _, msg := range messages {
		switch v := msg.(type) {
		case domain.HumanMessage:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: v.Content})
		case domain.AIMessage:
			am := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: v.Content}
			for _, tc := range v.ToolCalls {
				am.ToolCalls = append(am.ToolCalls, openai.ToolCall{
					ID:       tc.ID,
					Type:     openai.ToolTypeFunction,
					Function: openai.FunctionCall{Name: tc.Name, Arguments: tc.Arguments},
				})
			}
			out = append(out, am)
		case domain.ToolResultMessage:
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    v.Content,
				Name:       v.Name,
				ToolCallID: v.ToolCallID,
			})
		}
	}
	return out
}

// retryable reports whether err is a rate limit or server-side failure.
func retryable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return false
}

// stripThink removes <think>...</think> reasoning blocks.
func stripThink(s string) string {
	return strings.TrimSpace(thinkBlock.ReplaceAllString(s, ""))
}
