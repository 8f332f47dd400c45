package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/researchbot/internal/adapter/llm/llmtest"
	"github.com/xiaot623/gogo/researchbot/internal/agent"
	"github.com/xiaot623/gogo/researchbot/internal/domain"
	"github.com/xiaot623/gogo/researchbot/internal/repository/repotest"
)

type echoTools struct{}

func (echoTools) Execute(_ context.Context, name string, args json.RawMessage) (string, error) {
	return name + ":" + string(args), nil
}

type failingRunner struct{ err error }

func (r failingRunner) Run(context.Context, agent.Request) (*agent.Result, error) {
	return nil, r.err
}

func newTestService(t *testing.T, steps ...llmtest.Step) (*Service, *llmtest.Model) {
	t.Helper()
	model := llmtest.New(steps...)
	return New(repotest.NewStore(t), agent.New(model, echoTools{}), nil), model
}

func strPtr(s string) *string { return &s }

func TestChatCreatesSessionAndPersistsTurns(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, llmtest.Reply("Hello! How can I help?"))

	resp, err := svc.Chat(ctx, domain.ChatRequest{Message: "  hi  "})
	require.NoError(t, err)
	assert.Equal(t, "Hello! How can I help?", resp.Response)
	assert.Equal(t, "success", resp.Status)
	assert.Len(t, resp.SessionID, 36)

	history, err := svc.History(ctx, resp.SessionID)
	require.NoError(t, err)
	require.Len(t, history.History, 2)
	assert.Equal(t, domain.TurnKindHuman, history.History[0].Type)
	assert.Equal(t, "hi", history.History[0].Content)
	assert.Equal(t, domain.TurnKindAI, history.History[1].Type)
	assert.Equal(t, "Hello! How can I help?", history.History[1].Content)

	first, err := time.Parse(time.RFC3339Nano, history.History[0].Timestamp)
	require.NoError(t, err)
	second, err := time.Parse(time.RFC3339Nano, history.History[1].Timestamp)
	require.NoError(t, err)
	assert.False(t, second.Before(first))
}

func TestChatDoesNotReplayNewMessageTwice(t *testing.T) {
	ctx := context.Background()
	svc, model := newTestService(t,
		llmtest.Reply("Nice to meet you, Ada."),
		llmtest.Reply("Your name is Ada."),
	)

	first, err := svc.Chat(ctx, domain.ChatRequest{Message: "My name is Ada."})
	require.NoError(t, err)
	second, err := svc.Chat(ctx, domain.ChatRequest{Message: "What is my name?", SessionID: strPtr(first.SessionID)})
	require.NoError(t, err)
	assert.Equal(t, first.SessionID, second.SessionID)

	seen := model.Calls()[1]
	require.Len(t, seen, 3)
	assert.Equal(t, domain.NewHumanMessage("My name is Ada."), seen[0])
	assert.Equal(t, domain.NewAIMessage("Nice to meet you, Ada."), seen[1])
	assert.Equal(t, domain.NewHumanMessage("What is my name?"), seen[2])
}

func TestChatUsesProvidedSessionID(t *testing.T) {
	svc, _ := newTestService(t, llmtest.Reply("ok"))
	resp, err := svc.Chat(context.Background(), domain.ChatRequest{Message: "hi", SessionID: strPtr("custom-session")})
	require.NoError(t, err)
	assert.Equal(t, "custom-session", resp.SessionID)
}

func TestChatEmptyMessageWritesNothing(t *testing.T) {
	ctx := context.Background()
	svc, model := newTestService(t)
	session, err := svc.EnsureSession(ctx, "s1")
	require.NoError(t, err)

	_, err = svc.Chat(ctx, domain.ChatRequest{Message: "   ", SessionID: strPtr(session.SessionID)})
	assert.ErrorIs(t, err, domain.ErrEmptyMessage)
	assert.Empty(t, model.Calls())

	history, err := svc.History(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, history.History)
}

func TestChatModelErrorIsPersistedAsAnswer(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, llmtest.Fail(errors.New("invalid api key")))

	resp, err := svc.Chat(ctx, domain.ChatRequest{Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "I encountered an error: invalid api key", resp.Response)

	history, err := svc.History(ctx, resp.SessionID)
	require.NoError(t, err)
	require.Len(t, history.History, 2)
	assert.Equal(t, resp.Response, history.History[1].Content)
}

func TestChatEmptyAnswerFallsBack(t *testing.T) {
	svc, _ := newTestService(t, llmtest.Reply(""))
	resp, err := svc.Chat(context.Background(), domain.ChatRequest{Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, FallbackAnswer, resp.Response)
}

func TestChatWithToolsPersistsOnlyTwoTurns(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t,
		llmtest.Reply("", domain.ToolCall{ID: "c1", Name: "arxiv", Arguments: `{"query":"1706.03762"}`}),
		llmtest.Reply("It is the Transformer paper."),
	)

	resp, err := svc.Chat(ctx, domain.ChatRequest{Message: "What is 1706.03762 about?"})
	require.NoError(t, err)

	history, err := svc.History(ctx, resp.SessionID)
	require.NoError(t, err)
	assert.Len(t, history.History, 2)
}

func TestHistoryUnknownSession(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.History(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestEnsureSession(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	minted, err := svc.EnsureSession(ctx, "")
	require.NoError(t, err)
	assert.NotEmpty(t, minted.SessionID)

	again, err := svc.EnsureSession(ctx, minted.SessionID)
	require.NoError(t, err)
	assert.Equal(t, minted.SessionID, again.SessionID)
	assert.True(t, minted.CreatedAt.Equal(again.CreatedAt))
}

func TestDiagnose(t *testing.T) {
	svc, model := newTestService(t, llmtest.Reply("It introduced the Transformer."))
	resp, err := svc.Diagnose(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "It introduced the Transformer.", resp.FinalResponse)
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, domain.NewHumanMessage(DiagnosticQuery), model.Calls()[0][0])
}

func TestDiagnoseModelErrorAnswersWithApology(t *testing.T) {
	svc, _ := newTestService(t, llmtest.Fail(errors.New("groq 401 invalid api key")))
	resp, err := svc.Diagnose(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "I encountered an error: groq 401 invalid api key", resp.FinalResponse)
	assert.Equal(t, "success", resp.Status)
}

func TestDiagnoseRunError(t *testing.T) {
	db := repotest.NewStore(t)
	svc := New(db, failingRunner{err: errors.New("runner exploded")}, nil)
	_, err := svc.Diagnose(context.Background())
	assert.ErrorContains(t, err, "runner exploded")
}
