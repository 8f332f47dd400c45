package service

import (
	"context"
	"fmt"
	"time"

	"github.com/xiaot623/gogo/researchbot/internal/domain"
)

// History returns the durable turns of a session in chronological order.
func (s *Service) History(ctx context.Context, sessionID string) (*domain.HistoryResponse, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, domain.ErrSessionNotFound
	}

	turns, err := s.store.History(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}

	entries := make([]domain.HistoryEntry, 0, len(turns))
	for _, t := range turns {
		entries = append(entries, domain.HistoryEntry{
			Type:      t.Kind,
			Content:   t.Content,
			Timestamp: t.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	return &domain.HistoryResponse{History: entries, SessionID: session.SessionID}, nil
}
