package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/Lllllllleong/flashdeck/internal/knowledge"
	"github.com/Lllllllleong/flashdeck/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	matches []knowledge.Match
	err     error
	gotDeck string
	gotK    int
}

func (s *fakeStore) Index(context.Context, []knowledge.Document) error { return nil }

func (s *fakeStore) Query(_ context.Context, _ string, deckID string, k int) ([]knowledge.Match, error) {
	s.gotDeck, s.gotK = deckID, k
	return s.matches, s.err
}

type fakeGenerator struct {
	answer string
	err    error
	prompt string
	calls  int
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string, _ [][]byte) (string, error) {
	g.calls++
	g.prompt = prompt
	return g.answer, g.err
}

func TestChat_AnswersFromRetrievedContext(t *testing.T) {
	store := &fakeStore{matches: []knowledge.Match{
		{Content: "Osmosis moves water.", Score: 0.9, Metadata: knowledge.Metadata{DeckID: "d1", Source: knowledge.SourceTranscription, Sequence: 2}},
		{Content: "Membranes are selective.", Score: 0.5, Metadata: knowledge.Metadata{DeckID: "d1", Source: knowledge.SourceDocument}},
	}}
	gen := &fakeGenerator{answer: "  Water moves across membranes.  "}
	chat := NewChat(store, gen, 0)

	res, err := chat.Process(context.Background(), &models.ChatRequest{Message: " What is osmosis? ", DeckID: "d1"})
	require.NoError(t, err)

	assert.Equal(t, "Water moves across membranes.", res.Answer)
	require.Len(t, res.Sources, 2)
	assert.Equal(t, models.ChatSource{Content: "Osmosis moves water.", Source: knowledge.SourceTranscription, Sequence: 2, Score: 0.9}, res.Sources[0])
	assert.Equal(t, "d1", store.gotDeck)
	assert.Equal(t, knowledge.DefaultTopK, store.gotK)
	assert.True(t, strings.Contains(gen.prompt, "[1] Osmosis moves water.\n\n[2] Membranes are selective."))
	assert.Contains(t, gen.prompt, "QUESTION: What is osmosis?")
}

func TestChat_NoMatchesSkipsModel(t *testing.T) {
	gen := &fakeGenerator{answer: "unused"}
	chat := NewChat(&fakeStore{}, gen, 4)

	res, err := chat.Process(context.Background(), &models.ChatRequest{Message: "anything"})
	require.NoError(t, err)

	assert.Equal(t, NoContextAnswer, res.Answer)
	assert.NotNil(t, res.Sources)
	assert.Zero(t, gen.calls)
}

func TestChat_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := NewChat(&fakeStore{}, &fakeGenerator{}, 4).Process(ctx, &models.ChatRequest{Message: "   "})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = NewChat(nil, &fakeGenerator{}, 4).Process(ctx, &models.ChatRequest{Message: "hi"})
	assert.ErrorIs(t, err, ErrKnowledgeUnavailable)

	storeErr := errors.New("db down")
	_, err = NewChat(&fakeStore{err: storeErr}, &fakeGenerator{}, 4).Process(ctx, &models.ChatRequest{Message: "hi"})
	assert.ErrorIs(t, err, storeErr)

	genErr := errors.New("quota")
	store := &fakeStore{matches: []knowledge.Match{{Content: "x"}}}
	_, err = NewChat(store, &fakeGenerator{err: genErr}, 4).Process(ctx, &models.ChatRequest{Message: "hi"})
	assert.ErrorIs(t, err, genErr)
}
