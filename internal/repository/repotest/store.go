// Package repotest provides store helpers for tests.
package repotest

import (
	"testing"

	store "github.com/xiaot623/gogo/researchbot/internal/repository"
)

// NewStore returns an in-memory SQLite store that is closed when the test ends.
func NewStore(t testing.TB) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}
