package knowledge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingStore struct {
	queries int
	indexed []Document
}

func (s *countingStore) Index(_ context.Context, docs []Document) error {
	s.indexed = append(s.indexed, docs...)
	return nil
}

func (s *countingStore) Query(_ context.Context, text, deckID string, _ int) ([]Match, error) {
	s.queries++
	return []Match{{ID: "1", Content: text, Metadata: Metadata{DeckID: deckID}}}, nil
}

func TestCachedStore_ServesRepeatQueriesFromCache(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{}
	store := &CachedStore{Store: inner, Cache: NewMemoryCache(), TTL: time.Minute}

	first, err := store.Query(ctx, "osmosis", "d1", 4)
	require.NoError(t, err)
	second, err := store.Query(ctx, "osmosis", "d1", 4)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.queries)
}

func TestCachedStore_IndexInvalidatesDeckAndGlobalQueries(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{}
	store := &CachedStore{Store: inner, Cache: NewMemoryCache(), TTL: time.Minute}

	_, _ = store.Query(ctx, "osmosis", "d1", 4)
	_, _ = store.Query(ctx, "osmosis", "d2", 4)
	_, _ = store.Query(ctx, "osmosis", "", 4)
	require.Equal(t, 3, inner.queries)

	require.NoError(t, store.Index(ctx, []Document{{Content: "new", DeckID: "d1"}}))

	_, _ = store.Query(ctx, "osmosis", "d1", 4)
	_, _ = store.Query(ctx, "osmosis", "d2", 4)
	_, _ = store.Query(ctx, "osmosis", "", 4)
	// d1 and the cross-deck query miss, d2 is still cached.
	assert.Equal(t, 5, inner.queries)
	assert.Len(t, inner.indexed, 1)
}

func TestMemoryCache_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryCache()
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Second))
	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	now = now.Add(2 * time.Second)
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}
