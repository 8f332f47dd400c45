package service

import (
	"context"
	"fmt"
	"log"

	"github.com/xiaot623/gogo/researchbot/internal/agent"
	"github.com/xiaot623/gogo/researchbot/internal/domain"
)

// DiagnosticQuery is the fixed question used by the self-test endpoint.
const DiagnosticQuery = "What is 1706.03762 about?"

// Diagnose runs DiagnosticQuery through the agent without history and
// without persisting anything.
func (s *Service) Diagnose(ctx context.Context) (*domain.DiagnosticResponse, error) {
	result, err := s.runner.Run(ctx, agent.Request{Message: DiagnosticQuery})
	if err != nil {
		return nil, fmt.Errorf("failed to run agent: %w", err)
	}
	if result.Err != nil {
		log.Printf("WARN: diagnostic model call failed: %v", result.Err)
	}
	answer := result.Answer
	if answer == "" {
		answer = FallbackAnswer
	}
	return &domain.DiagnosticResponse{FinalResponse: answer, Status: statusSuccess}, nil
}
