package pipeline

import (
	"context"
	"testing"

	"github.com/Lllllllleong/flashdeck/internal/knowledge"
	"github.com/Lllllllleong/flashdeck/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func card(q, a string) models.Card { return models.Card{Question: q, Answer: a} }

func questionSet(cards []models.Card) map[string]bool {
	set := make(map[string]bool, len(cards))
	for _, c := range cards {
		set[c.Question] = true
	}
	return set
}

func TestMergeCards_DeduplicatesByTrimmedQuestion(t *testing.T) {
	results := []models.PartialResult{
		{Cards: []models.Card{card("What is osmosis?", "first answer"), card("What is ATP?", "energy")}},
		{Cards: []models.Card{card("  What is osmosis?\n", "second answer")}},
	}

	merged := MergeCards(results)

	require.Len(t, merged, 2)
	assert.Equal(t, card("What is osmosis?", "second answer"), merged[0])
	assert.Equal(t, card("What is ATP?", "energy"), merged[1])
}

func TestMergeCards_DropsBlankQuestions(t *testing.T) {
	merged := MergeCards([]models.PartialResult{{Cards: []models.Card{card("  ", "orphan"), card("Q", "A")}}})
	assert.Equal(t, []models.Card{card("Q", "A")}, merged)
}

func TestMergeCards_PermutationsYieldSameSet(t *testing.T) {
	a := models.PartialResult{Cards: []models.Card{card("Q1", "a"), card("Q2", "a")}}
	b := models.PartialResult{Cards: []models.Card{card("Q2", "b"), card("Q3", "b")}}
	c := models.PartialResult{Cards: []models.Card{card(" Q3 ", "c"), card("Q4", "c")}}
	e := models.PartialResult{}

	want := questionSet(MergeCards([]models.PartialResult{a, b, c, e}))
	permutations := [][]models.PartialResult{
		{a, b, c, e}, {a, c, b, e}, {b, a, e, c}, {b, c, a, e}, {c, e, a, b}, {e, c, b, a},
	}
	for _, p := range permutations {
		assert.Equal(t, want, questionSet(MergeCards(p)))
	}
	assert.Len(t, want, 4)
}

func TestMergeCards_Idempotent(t *testing.T) {
	results := []models.PartialResult{
		{Cards: []models.Card{card("Q1", "a"), card(" Q2", "a")}},
		{Cards: []models.Card{card("Q2 ", "b"), card("Q1", "b")}},
	}
	once := MergeCards(results)
	twice := MergeCards([]models.PartialResult{{Cards: once}})
	assert.Equal(t, once, twice)

	again := MergeCards(append(results, results...))
	assert.Equal(t, questionSet(once), questionSet(again))
}

func TestMergeCards_EmptyIsNonNil(t *testing.T) {
	merged := MergeCards(nil)
	assert.NotNil(t, merged)
	assert.Empty(t, merged)
}

func TestMergeFlowcharts(t *testing.T) {
	results := []models.PartialResult{
		{Flowchart: "graph TD; A-->B"},
		{Flowchart: "flowchart without the marker"},
		{Flowchart: "```mermaid\ngraph TD; A-->B\n```"},
		{Flowchart: ""},
		{Flowchart: "graph LR; X-->Y"},
	}
	assert.ElementsMatch(t, []string{"graph TD; A-->B", "graph LR; X-->Y"}, MergeFlowcharts(results))
}

func TestReduce_IndexesTranscriptionsFirst(t *testing.T) {
	idx := &recordingIndexer{}
	r := &Reducer{Indexer: idx}
	results := []models.PartialResult{
		{Transcription: "page one"},
		{},
		{Transcription: "page three"},
	}

	r.Reduce(context.Background(), "deck-1", models.TextContent("raw text"), results)

	require.Equal(t, 1, idx.callCount())
	assert.Equal(t, []knowledge.Document{
		{Content: "page one", DeckID: "deck-1", Source: knowledge.SourceTranscription, Sequence: 0},
		{Content: "page three", DeckID: "deck-1", Source: knowledge.SourceTranscription, Sequence: 2},
	}, idx.calls[0])
}

func TestReduce_FallsBackToRawText(t *testing.T) {
	idx := &recordingIndexer{}
	r := &Reducer{Indexer: idx}

	r.Reduce(context.Background(), "deck-1", models.TextContent("raw text"), []models.PartialResult{{}})

	require.Equal(t, 1, idx.callCount())
	assert.Equal(t, []knowledge.Document{
		{Content: "raw text", DeckID: "deck-1", Source: knowledge.SourceRawText, Sequence: 0},
	}, idx.calls[0])
}

func TestReduce_SkipsIndexingWithoutKnowledge(t *testing.T) {
	idx := &recordingIndexer{}
	r := &Reducer{Indexer: idx}

	deck := r.Reduce(context.Background(), "deck-1", models.ImageContent(fakeImages(2)), []models.PartialResult{{Cards: []models.Card{card("Q", "A")}}})

	assert.Zero(t, idx.callCount())
	assert.Len(t, deck.Cards, 1)
}

func TestReduce_IndexingFailureIsAbsorbed(t *testing.T) {
	idx := &recordingIndexer{err: errBackendDown}
	r := &Reducer{Indexer: idx}

	deck := r.Reduce(context.Background(), "deck-1", models.TextContent("raw"), []models.PartialResult{{Cards: []models.Card{card("Q", "A")}}})

	assert.Equal(t, "deck-1", deck.DeckID)
	assert.Len(t, deck.Cards, 1)
	assert.Equal(t, 1, idx.callCount())
}
