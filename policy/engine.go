package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/v1/rego"
)

// Decision actions.
const (
	ActionAllow = "allow"
	ActionBlock = "block"
)

// Decision is the outcome of evaluating one tool call.
type Decision struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

// Allowed reports whether the call may run.
func (d Decision) Allowed() bool {
	return d.Action != ActionBlock
}

// Input is the document the policy evaluates.
type Input struct {
	ToolName       string         `json:"tool_name"`
	Args           map[string]any `json:"args"`
	SessionID      string         `json:"session_id,omitempty"`
	DisabledTools  []string       `json:"disabled_tools"`
	MaxQueryLength int            `json:"max_query_length"`
}

// NewInput builds an Input from raw tool-call arguments. A bare JSON string
// is read as the query, matching what the lookup tools accept. Anything else
// that is not a JSON object evaluates as an empty object.
func NewInput(toolName, rawArgs string) Input {
	return Input{ToolName: toolName, Args: parseArgs(rawArgs), DisabledTools: []string{}}
}

func parseArgs(rawArgs string) map[string]any {
	args := map[string]any{}
	if rawArgs == "" {
		return args
	}
	if err := json.Unmarshal([]byte(rawArgs), &args); err == nil && args != nil {
		return args
	}
	var query string
	if err := json.Unmarshal([]byte(rawArgs), &query); err == nil {
		return map[string]any{"query": query}
	}
	return map[string]any{}
}

// Engine is the OPA policy engine.
type Engine struct {
	query          rego.PreparedEvalQuery
	disabledTools  []string
	maxQueryLength int
}

// Option configures an Engine.
type Option func(*Engine)

// WithDisabledTools blocks the named tools.
func WithDisabledTools(names ...string) Option {
	return func(e *Engine) { e.disabledTools = append(e.disabledTools, names...) }
}

// WithMaxQueryLength caps the query argument length. Zero means 300.
func WithMaxQueryLength(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxQueryLength = n
		}
	}
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string, opts ...Option) (*Engine, error) {
	r := rego.New(
		rego.Query("data.tool_policy.decision"),
		rego.Module("tool_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	e := &Engine{query: query, disabledTools: []string{}, maxQueryLength: 300}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// NewEngineFromFile loads the policy from path, or DefaultPolicy when path is empty.
func NewEngineFromFile(ctx context.Context, path string, opts ...Option) (*Engine, error) {
	content := DefaultPolicy
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read policy file: %w", err)
		}
		content = string(b)
	}
	return NewEngine(ctx, content, opts...)
}

// Evaluate checks one tool call. The engine fills in its configured
// disabled tools and query length limit.
func (e *Engine) Evaluate(ctx context.Context, input Input) (Decision, error) {
	input.DisabledTools = append(append([]string{}, input.DisabledTools...), e.disabledTools...)
	if input.MaxQueryLength == 0 {
		input.MaxQueryLength = e.maxQueryLength
	}
	if input.Args == nil {
		input.Args = map[string]any{}
	}

	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Decision{}, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	// Policies are expected to define a default; an undefined result allows.
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Decision{Action: ActionAllow, Reason: "default"}, nil
	}

	switch v := results[0].Expressions[0].Value.(type) {
	case string:
		return Decision{Action: v}, nil
	case map[string]any:
		d := Decision{Action: ActionAllow}
		if a, ok := v["action"].(string); ok {
			d.Action = a
		}
		if r, ok := v["reason"].(string); ok {
			d.Reason = r
		}
		return d, nil
	}
	return Decision{}, fmt.Errorf("unexpected policy result type %T", results[0].Expressions[0].Value)
}

// DefaultPolicy is the default policy content.
const DefaultPolicy = `
package tool_policy

default decision := {"action": "allow", "reason": ""}

decision := {"action": "block", "reason": concat("; ", sort(reasons))} if {
	count(reasons) > 0
}

reasons contains "tool disabled by configuration" if {
	input.tool_name in input.disabled_tools
}

reasons contains "query is empty" if {
	trim_space(object.get(input.args, "query", "")) == ""
}

reasons contains "query exceeds maximum length" if {
	count(object.get(input.args, "query", "")) > input.max_query_length
}
`
