package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/researchbot/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestGetSessionMissing(t *testing.T) {
	store := newTestStore(t)
	session, err := store.GetSession(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestGetOrCreateSessionIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	first, err := store.GetOrCreateSession(ctx, "s1", "u1")
	require.NoError(t, err)
	second, err := store.GetOrCreateSession(ctx, "s1", "someone-else")
	require.NoError(t, err)

	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Equal(t, "u1", second.UserID)
	assert.True(t, first.CreatedAt.Equal(second.CreatedAt))

	var count int
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM sessions WHERE session_id = 's1'`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestGetOrCreateSessionConcurrent(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.GetOrCreateSession(ctx, "shared", "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var count int
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestAppendAndHistoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	_, err := store.GetOrCreateSession(ctx, "s1", "")
	require.NoError(t, err)

	require.NoError(t, store.AppendTurn(ctx, &domain.Turn{SessionID: "s1", Kind: domain.TurnKindHuman, Content: "hi"}))
	require.NoError(t, store.AppendTurn(ctx, &domain.Turn{SessionID: "s1", Kind: domain.TurnKindAI, Content: "Hello! How can I help?"}))

	turns, err := store.History(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, domain.TurnKindHuman, turns[0].Kind)
	assert.Equal(t, "hi", turns[0].Content)
	assert.Equal(t, domain.TurnKindAI, turns[1].Kind)
	assert.Equal(t, "Hello! How can I help?", turns[1].Content)
	assert.NotEmpty(t, turns[0].MessageID)
	assert.NotEqual(t, turns[0].MessageID, turns[1].MessageID)
}

func TestHistoryOrderedWithEqualTimestamps(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	_, err := store.GetOrCreateSession(ctx, "s1", "")
	require.NoError(t, err)

	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	for i := 0; i < 5; i++ {
		kind := domain.TurnKindHuman
		if i%2 == 1 {
			kind = domain.TurnKindAI
		}
		require.NoError(t, store.AppendTurn(ctx, &domain.Turn{
			SessionID: "s1",
			Kind:      kind,
			Content:   fmt.Sprintf("turn %d", i),
			CreatedAt: ts,
		}))
	}

	turns, err := store.History(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, turns, 5)
	for i, turn := range turns {
		assert.Equal(t, fmt.Sprintf("turn %d", i), turn.Content)
		if i > 0 {
			assert.True(t, turn.CreatedAt.After(turns[i-1].CreatedAt), "timestamps must increase")
		}
	}
}

func TestHistoryClampsBackwardsClock(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	_, err := store.GetOrCreateSession(ctx, "s1", "")
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, store.AppendTurn(ctx, &domain.Turn{SessionID: "s1", Kind: domain.TurnKindHuman, Content: "first", CreatedAt: now}))
	require.NoError(t, store.AppendTurn(ctx, &domain.Turn{SessionID: "s1", Kind: domain.TurnKindAI, Content: "second", CreatedAt: now.Add(-time.Hour)}))

	turns, err := store.History(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "first", turns[0].Content)
	assert.Equal(t, "second", turns[1].Content)
	assert.False(t, turns[1].CreatedAt.Before(turns[0].CreatedAt))
}

func TestAppendTurnRejectsToolKind(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	_, err := store.GetOrCreateSession(ctx, "s1", "")
	require.NoError(t, err)

	err = store.AppendTurn(ctx, &domain.Turn{SessionID: "s1", Kind: domain.TurnKind("tool"), Content: "raw"})
	assert.ErrorIs(t, err, domain.ErrInvalidKind)

	turns, err := store.History(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestAppendTurnUnknownSession(t *testing.T) {
	store := newTestStore(t)
	err := store.AppendTurn(context.Background(), &domain.Turn{SessionID: "ghost", Kind: domain.TurnKindHuman, Content: "hi"})
	assert.Error(t, err)
}

func TestAppendTurnBumpsUpdatedAt(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	created, err := store.GetOrCreateSession(ctx, "s1", "")
	require.NoError(t, err)

	later := created.UpdatedAt.Add(time.Minute)
	require.NoError(t, store.AppendTurn(ctx, &domain.Turn{SessionID: "s1", Kind: domain.TurnKindHuman, Content: "hi", CreatedAt: later}))

	session, err := store.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, session.UpdatedAt.Equal(later), "updated_at = %v, want %v", session.UpdatedAt, later)
}

func TestToolColumnsStayNull(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	_, err := store.GetOrCreateSession(ctx, "s1", "")
	require.NoError(t, err)
	require.NoError(t, store.AppendTurn(ctx, &domain.Turn{SessionID: "s1", Kind: domain.TurnKindAI, Content: "answer"}))

	var nonNull int
	require.NoError(t, store.db.QueryRow(
		`SELECT COUNT(*) FROM messages WHERE tool_calls IS NOT NULL OR tool_call_id IS NOT NULL`).Scan(&nonNull))
	assert.Zero(t, nonNull)
}

func TestSessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		id := fmt.Sprintf("s%d", i)
		_, err := store.GetOrCreateSession(ctx, id, "")
		require.NoError(t, err)
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				assert.NoError(t, store.AppendTurn(ctx, &domain.Turn{SessionID: id, Kind: domain.TurnKindHuman, Content: id}))
			}
		}(id)
	}
	wg.Wait()

	for i := 0; i < 4; i++ {
		id := fmt.Sprintf("s%d", i)
		turns, err := store.History(ctx, id)
		require.NoError(t, err)
		require.Len(t, turns, 5)
		for _, turn := range turns {
			assert.Equal(t, id, turn.Content)
		}
	}
}

func TestDeleteSessionCascades(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	_, err := store.GetOrCreateSession(ctx, "s1", "")
	require.NoError(t, err)
	require.NoError(t, store.AppendTurn(ctx, &domain.Turn{SessionID: "s1", Kind: domain.TurnKindHuman, Content: "hi"}))

	_, err = store.db.Exec(`DELETE FROM sessions WHERE session_id = 's1'`)
	require.NoError(t, err)

	turns, err := store.History(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, turns)
}
