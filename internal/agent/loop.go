// Package agent implements the tool-calling loop that turns one user message
// into a final answer.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xiaot623/gogo/researchbot/internal/adapter/llm"
	"github.com/xiaot623/gogo/researchbot/internal/domain"
	"github.com/xiaot623/gogo/researchbot/policy"
)

const (
	// DefaultMaxToolRounds bounds the number of tool rounds per turn.
	DefaultMaxToolRounds = 8
	// RoundLimitAnswer is returned when the model still wants tools after the cap.
	RoundLimitAnswer = "I'm sorry, but I could not complete your request within the allowed number of steps."

	errorAnswerPrefix   = "I encountered an error: "
	toolErrorPrefix     = "Error: "
	toolBlockedPrefix   = "Tool call blocked: "
	defaultConcurrency  = 3
	policyFailureReason = "policy evaluation failed"
)

// State is the loop's position in the model/tool cycle.
type State int

const (
	StateAwaitingModel State = iota
	StateExecutingTools
	StateDone
)

func (s State) String() string {
	switch s {
	case StateAwaitingModel:
		return "awaiting_model"
	case StateExecutingTools:
		return "executing_tools"
	case StateDone:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Outcome describes how a run terminated.
type Outcome string

const (
	OutcomeAnswered   Outcome = "answered"
	OutcomeModelError Outcome = "model_error"
	OutcomeRoundLimit Outcome = "round_limit"
)

// ToolExecutor runs a named tool. *tools.Registry satisfies it.
type ToolExecutor interface {
	Execute(ctx context.Context, toolName string, args json.RawMessage) (string, error)
}

// Gate decides whether a tool call may run. *policy.Engine satisfies it.
type Gate interface {
	Evaluate(ctx context.Context, input policy.Input) (policy.Decision, error)
}

// Observer receives progress events. Tool events may arrive from several
// goroutines at once.
type Observer interface {
	OnEvent(domain.Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(domain.Event)

// OnEvent calls f.
func (f ObserverFunc) OnEvent(ev domain.Event) { f(ev) }

// Request is one user turn to answer.
type Request struct {
	SessionID string
	History   []domain.Turn
	Message   string
	Observer  Observer
}

// Result is what a run produced.
type Result struct {
	Answer     string
	Transcript []domain.Message
	ModelCalls int
	ToolRounds int
	Outcome    Outcome
	Err        error // model error that ended the run, if any
}

// Loop drives a model and its tools until a final answer is produced.
type Loop struct {
	model         llm.Model
	tools         ToolExecutor
	gate          Gate
	maxToolRounds int
	concurrency   int
	timeout       time.Duration
}

// Option configures a Loop.
type Option func(*Loop)

// WithMaxToolRounds caps the number of tool rounds.
func WithMaxToolRounds(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.maxToolRounds = n
		}
	}
}

// WithToolConcurrency bounds parallel tool calls within one round.
func WithToolConcurrency(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.concurrency = n
		}
	}
}

// WithTimeout bounds a whole run.
func WithTimeout(d time.Duration) Option {
	return func(l *Loop) { l.timeout = d }
}

// WithGate installs a policy gate consulted before every tool call.
func WithGate(g Gate) Option {
	return func(l *Loop) { l.gate = g }
}

// New creates a loop over the given model and tools.
func New(model llm.Model, tools ToolExecutor, opts ...Option) *Loop {
	l := &Loop{
		model:         model,
		tools:         tools,
		maxToolRounds: DefaultMaxToolRounds,
		concurrency:   defaultConcurrency,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run answers req.Message given the prior durable turns. Model failures are
// turned into an apology answer rather than returned as errors.
func (l *Loop) Run(ctx context.Context, req Request) (*Result, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, domain.ErrEmptyMessage
	}
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	transcript := make([]domain.Message, 0, len(req.History)+2)
	for _, turn := range req.History {
		if msg, ok := domain.MessageFromTurn(turn); ok {
			transcript = append(transcript, msg)
		}
	}
	transcript = append(transcript, domain.NewHumanMessage(message))

	res := &Result{}
	emit := func(ev domain.Event) {
		if req.Observer == nil {
			return
		}
		ev.Ts = time.Now().UnixMilli()
		ev.SessionID = req.SessionID
		req.Observer.OnEvent(ev)
	}

	state := StateAwaitingModel
	var last *domain.AIMessage
	for state != StateDone {
		switch state {
		case StateAwaitingModel:
			emit(domain.Event{Type: domain.EventTypeModelCallStarted, Round: res.ToolRounds})
			start := time.Now()
			msg, err := l.model.Generate(ctx, transcript)
			res.ModelCalls++
			if err == nil && msg == nil {
				err = llm.ErrEmptyResponse
			}
			done := domain.Event{Type: domain.EventTypeModelCallDone, Round: res.ToolRounds, LatencyMs: time.Since(start).Milliseconds()}
			if err != nil {
				log.Printf("WARN: model call failed for session %s: %v", req.SessionID, err)
				done.Error = err.Error()
				emit(done)
				res.Answer = errorAnswerPrefix + err.Error()
				res.Outcome = OutcomeModelError
				res.Err = err
				state = StateDone
				continue
			}
			done.ToolCalls = len(msg.ToolCalls)
			emit(done)

			transcript = append(transcript, *msg)
			last = msg
			switch {
			case !msg.HasToolCalls():
				res.Answer = msg.Content
				res.Outcome = OutcomeAnswered
				state = StateDone
			case res.ToolRounds >= l.maxToolRounds:
				log.Printf("WARN: session %s hit the tool round cap (%d)", req.SessionID, l.maxToolRounds)
				res.Answer = RoundLimitAnswer
				res.Outcome = OutcomeRoundLimit
				state = StateDone
			default:
				state = StateExecutingTools
			}

		case StateExecutingTools:
			res.ToolRounds++
			for _, m := range l.executeTools(ctx, req.SessionID, res.ToolRounds, last.ToolCalls, emit) {
				transcript = append(transcript, m)
			}
			state = StateAwaitingModel
		}
	}

	res.Transcript = transcript
	emit(domain.Event{Type: domain.EventTypeTurnDone, Round: res.ToolRounds, Outcome: string(res.Outcome)})
	return res, nil
}

// executeTools runs one batch of calls, possibly in parallel, and returns the
// results in request order.
func (l *Loop) executeTools(ctx context.Context, sessionID string, round int, calls []domain.ToolCall, emit func(domain.Event)) []domain.ToolResultMessage {
	results := make([]domain.ToolResultMessage, len(calls))
	var g errgroup.Group
	g.SetLimit(l.concurrency)
	for i, call := range calls {
		g.Go(func() error {
			emit(domain.Event{Type: domain.EventTypeToolCallStarted, Round: round, ToolName: call.Name, ToolCallID: call.ID})
			start := time.Now()
			content, err := l.runTool(ctx, sessionID, call)
			done := domain.Event{
				Type:       domain.EventTypeToolCallDone,
				Round:      round,
				ToolName:   call.Name,
				ToolCallID: call.ID,
				LatencyMs:  time.Since(start).Milliseconds(),
			}
			if err != nil {
				done.Error = err.Error()
			}
			emit(done)
			results[i] = domain.NewToolResultMessage(call.ID, call.Name, content)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// runTool returns the content to feed back to the model. The error is only
// informational; it is already folded into the content.
func (l *Loop) runTool(ctx context.Context, sessionID string, call domain.ToolCall) (string, error) {
	if l.gate != nil {
		input := policy.NewInput(call.Name, call.Arguments)
		input.SessionID = sessionID
		decision, err := l.gate.Evaluate(ctx, input)
		if err != nil {
			log.Printf("WARN: policy evaluation failed for %s: %v", call.Name, err)
			decision = policy.Decision{Action: policy.ActionBlock, Reason: policyFailureReason}
		}
		if !decision.Allowed() {
			log.Printf("INFO: tool call %s (%s) blocked: %s", call.ID, call.Name, decision.Reason)
			return toolBlockedPrefix + decision.Reason, errors.New("blocked by policy")
		}
	}

	args := json.RawMessage(call.Arguments)
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	out, err := l.tools.Execute(ctx, call.Name, args)
	if err != nil {
		log.Printf("WARN: tool %s failed: %v", call.Name, err)
		return toolErrorPrefix + err.Error(), err
	}
	return out, nil
}
