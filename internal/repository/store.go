// Package store defines the conversation storage interface and implementations.
package store

import (
	"context"
	"time"

	"github.com/xiaot623/gogo/researchbot/internal/domain"
)

// Store defines the interface for conversation persistence.
type Store interface {
	// Session operations
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	GetOrCreateSession(ctx context.Context, sessionID, userID string) (*domain.Session, error)

	// Turn operations. Only human and ai turns are accepted and returned.
	AppendTurn(ctx context.Context, turn *domain.Turn) error
	History(ctx context.Context, sessionID string) ([]domain.Turn, error)

	// Lifecycle
	Close() error
}

// normalizeTime keeps stored timestamps comparable across backends.
func normalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Truncate(time.Microsecond)
}

// nextTimestamp returns ts, moved forward if needed so that it sorts after last.
func nextTimestamp(ts, last time.Time) time.Time {
	if !last.IsZero() && !ts.After(last) {
		return last.Add(time.Microsecond)
	}
	return ts
}
