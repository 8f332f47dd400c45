package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/xiaot623/gogo/researchbot/internal/domain"
)

// EnsureSession returns the session with the given ID, creating it if needed.
// An empty ID mints a new one.
func (s *Service) EnsureSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	session, err := s.store.GetOrCreateSession(ctx, sessionID, "")
	if err != nil {
		return nil, fmt.Errorf("failed to get or create session: %w", err)
	}
	return session, nil
}
