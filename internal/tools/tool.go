// Package tools provides the lookup tools the model may call and the registry that runs them.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownTool is returned when the model names a tool that is not registered.
var ErrUnknownTool = errors.New("unknown tool")

// Spec is the model-facing description of a tool.
type Spec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON schema
}

// Tool is a uniform name + query -> text lookup.
type Tool interface {
	Spec() Spec
	Invoke(ctx context.Context, args json.RawMessage) (string, error)
}

// QueryParameters is the JSON schema shared by every lookup tool.
func QueryParameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "search query to look up",
			},
		},
		"required": []string{"query"},
	}
}

type queryArgs struct {
	Query string `json:"query"`
}

// parseQuery extracts the query argument. A bare JSON string is accepted too.
func parseQuery(args json.RawMessage) (string, error) {
	var qa queryArgs
	if err := json.Unmarshal(args, &qa); err != nil {
		var s string
		if err2 := json.Unmarshal(args, &s); err2 != nil {
			return "", fmt.Errorf("invalid tool arguments: %w", err)
		}
		qa.Query = s
	}
	q := strings.TrimSpace(qa.Query)
	if q == "" {
		return "", fmt.Errorf("query is required")
	}
	return q, nil
}

// truncate cuts s to at most n characters.
func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
