package store

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/researchbot/internal/domain"
)

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("POSTGRES_TEST_URL")
	if url == "" {
		t.Skip("POSTGRES_TEST_URL not set")
	}
	ctx := context.Background()
	store, err := NewPostgresStore(ctx, url)
	require.NoError(t, err)
	defer store.Close()

	id := uuid.New().String()
	missing, err := store.GetSession(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = store.GetOrCreateSession(ctx, id, "")
	require.NoError(t, err)
	_, err = store.GetOrCreateSession(ctx, id, "")
	require.NoError(t, err)

	require.NoError(t, store.AppendTurn(ctx, &domain.Turn{SessionID: id, Kind: domain.TurnKindHuman, Content: "hi"}))
	require.NoError(t, store.AppendTurn(ctx, &domain.Turn{SessionID: id, Kind: domain.TurnKindAI, Content: "hello"}))
	assert.ErrorIs(t, store.AppendTurn(ctx, &domain.Turn{SessionID: id, Kind: "tool", Content: "x"}), domain.ErrInvalidKind)

	turns, err := store.History(ctx, id)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "hi", turns[0].Content)
	assert.Equal(t, "hello", turns[1].Content)
	assert.False(t, turns[1].CreatedAt.Before(turns[0].CreatedAt))
}
