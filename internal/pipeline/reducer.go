package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Lllllllleong/flashdeck/internal/knowledge"
	"github.com/Lllllllleong/flashdeck/internal/models"
)

// flowchartMarker must appear in a flowchart for it to be considered valid Mermaid.
const flowchartMarker = "graph"

// Reducer merges the partial results of one request into a deck.
type Reducer struct {
	// Indexer, when set, receives transcriptions or the raw source text.
	Indexer Indexer
	Logger  *slog.Logger
}

// Reduce folds results in order, deduplicates cards and flowcharts, and indexes
// the best available knowledge for the deck.
func (r *Reducer) Reduce(ctx context.Context, deckID string, content models.Content, results []models.PartialResult) models.DeckResult {
	logCtx := loggerOr(r.Logger).With("deckId", deckID)

	cards := MergeCards(results)
	flowcharts := MergeFlowcharts(results)
	logCtx.Info("Merged partial results.",
		"resultCount", len(results),
		"cardCount", len(cards),
		"flowchartCount", len(flowcharts),
	)

	r.indexKnowledge(ctx, logCtx, deckID, content, results)

	return models.DeckResult{
		DeckID:     deckID,
		Cards:      cards,
		Flowcharts: flowcharts,
	}
}

// MergeCards deduplicates cards by trimmed question. A later card replaces an
// earlier one with the same question but keeps the earlier card's position.
// Cards without a question are dropped.
func MergeCards(results []models.PartialResult) []models.Card {
	byQuestion := make(map[string]models.Card)
	var order []string
	for _, res := range results {
		for _, c := range res.Cards {
			key := c.Key()
			if key == "" {
				continue
			}
			if _, seen := byQuestion[key]; !seen {
				order = append(order, key)
			}
			c.Question = key
			byQuestion[key] = c
		}
	}

	merged := make([]models.Card, 0, len(order))
	for _, key := range order {
		merged = append(merged, byQuestion[key])
	}
	return merged
}

// MergeFlowcharts keeps the distinct flowcharts that contain the Mermaid graph marker.
func MergeFlowcharts(results []models.PartialResult) []string {
	seen := make(map[string]struct{})
	merged := make([]string, 0)
	for _, res := range results {
		fc := cleanFlowchart(res.Flowchart)
		if fc == "" || !strings.Contains(fc, flowchartMarker) {
			continue
		}
		if _, dup := seen[fc]; dup {
			continue
		}
		seen[fc] = struct{}{}
		merged = append(merged, fc)
	}
	return merged
}

func cleanFlowchart(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```mermaid")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// indexKnowledge prefers model transcriptions over the raw source text.
func (r *Reducer) indexKnowledge(ctx context.Context, logCtx *slog.Logger, deckID string, content models.Content, results []models.PartialResult) {
	docs := transcriptionDocuments(deckID, results)
	source := knowledge.SourceTranscription
	if len(docs) == 0 && content.Mode == models.ModeText && strings.TrimSpace(content.Text) != "" {
		docs = []knowledge.Document{{
			Content:  content.Text,
			DeckID:   deckID,
			Source:   knowledge.SourceRawText,
			Sequence: 0,
		}}
		source = knowledge.SourceRawText
	}
	if len(docs) == 0 {
		logCtx.Info("Nothing to index for deck.")
		return
	}
	if r.Indexer == nil {
		return
	}

	if err := r.Indexer.Index(ctx, docs); err != nil {
		logCtx.Warn("Indexing of deck knowledge failed.", "error", err, "source", source, "documentCount", len(docs))
		return
	}
	logCtx.Info("Indexed deck knowledge.", "source", source, "documentCount", len(docs))
}

func transcriptionDocuments(deckID string, results []models.PartialResult) []knowledge.Document {
	var docs []knowledge.Document
	for i, res := range results {
		if res.Transcription == "" {
			continue
		}
		docs = append(docs, knowledge.Document{
			Content:  res.Transcription,
			DeckID:   deckID,
			Source:   knowledge.SourceTranscription,
			Sequence: i,
		})
	}
	return docs
}
