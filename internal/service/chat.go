package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/xiaot623/gogo/researchbot/internal/agent"
	"github.com/xiaot623/gogo/researchbot/internal/domain"
)

const (
	// FallbackAnswer replaces an empty final answer.
	FallbackAnswer = "I apologize, but I couldn't process your request at the moment."

	statusSuccess = "success"
)

// Chat answers one user message and persists the human and ai turns.
func (s *Service) Chat(ctx context.Context, req domain.ChatRequest) (*domain.ChatResponse, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, domain.ErrEmptyMessage
	}

	var requested string
	if req.SessionID != nil {
		requested = *req.SessionID
	}
	session, err := s.EnsureSession(ctx, requested)
	if err != nil {
		return nil, err
	}

	// History is read before the new turn is written so it is not replayed twice.
	history, err := s.store.History(ctx, session.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	human := &domain.Turn{
		SessionID: session.SessionID,
		Kind:      domain.TurnKindHuman,
		Content:   message,
		CreatedAt: time.Now(),
	}
	if err := s.store.AppendTurn(ctx, human); err != nil {
		return nil, fmt.Errorf("failed to save human turn: %w", err)
	}

	result, err := s.runner.Run(ctx, agent.Request{
		SessionID: session.SessionID,
		History:   history,
		Message:   message,
		Observer:  s.observer,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to run agent: %w", err)
	}

	answer := strings.TrimSpace(result.Answer)
	if answer == "" {
		answer = FallbackAnswer
	}
	log.Printf("INFO: session %s answered (outcome=%s model_calls=%d tool_rounds=%d)",
		session.SessionID, result.Outcome, result.ModelCalls, result.ToolRounds)

	ai := &domain.Turn{
		SessionID: session.SessionID,
		Kind:      domain.TurnKindAI,
		Content:   answer,
		CreatedAt: time.Now(),
	}
	if err := s.store.AppendTurn(ctx, ai); err != nil {
		return nil, fmt.Errorf("failed to save ai turn: %w", err)
	}

	return &domain.ChatResponse{
		Response:  answer,
		SessionID: session.SessionID,
		Status:    statusSuccess,
	}, nil
}
