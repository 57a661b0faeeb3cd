package services

import (
	"context"
	"testing"
	"time"

	"github.com/Lllllllleong/flashdeck/internal/gcp"
	"github.com/Lllllllleong/flashdeck/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDeckStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryDeckStore()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.Create(ctx, &models.Deck{DeckID: "old", FileHash: "h1", Status: models.StatusValidating, CreatedAt: base}))
	require.NoError(t, s.Create(ctx, &models.Deck{DeckID: "new", FileHash: "h2", Status: models.StatusValidating, CreatedAt: base.Add(time.Hour)}))
	assert.Error(t, s.Create(ctx, &models.Deck{DeckID: "old"}))

	found, err := s.FindCompletedByHash(ctx, "h1")
	require.NoError(t, err)
	assert.Nil(t, found)

	require.NoError(t, s.Complete(ctx, &models.Deck{DeckID: "old", FileHash: "h1", CreatedAt: base, Cards: []models.Card{{Question: "Q", Answer: "A"}}}))
	found, err = s.FindCompletedByHash(ctx, "h1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, 1, found.CardCount)

	require.NoError(t, s.UpdateStatus(ctx, "new", models.StatusFailed, "boom"))
	got, err := s.Get(ctx, "new")
	require.NoError(t, err)
	assert.Equal(t, "boom", got.ErrorDetails)

	decks, err := s.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, decks, 2)
	assert.Equal(t, "new", decks[0].DeckID)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, gcp.ErrDeckNotFound)
	assert.ErrorIs(t, s.UpdateStatus(ctx, "missing", models.StatusFailed, ""), gcp.ErrDeckNotFound)
}
