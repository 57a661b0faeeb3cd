package pipeline

import (
	"context"
	"log/slog"

	"github.com/Lllllllleong/flashdeck/internal/knowledge"
	"github.com/Lllllllleong/flashdeck/internal/models"
)

// Indexer receives documents for the knowledge store. Writes are additive and best-effort.
type Indexer interface {
	Index(ctx context.Context, docs []knowledge.Document) error
}

// Partitioner splits content into independently processable batches.
type Partitioner struct {
	ImageBatchSize int
	ChunkSize      int
	ChunkOverlap   int
	// Indexer, when set, receives every text chunk tagged with the deck ID.
	Indexer Indexer
	Logger  *slog.Logger
}

// Partition returns the ordered batches for content. Empty content yields no batches.
func (p *Partitioner) Partition(ctx context.Context, deckID string, content models.Content) []models.Batch {
	logCtx := loggerOr(p.Logger).With("deckId", deckID, "mode", content.Mode)

	if content.Mode == models.ModeImage {
		groups := GroupImages(content.Images, p.ImageBatchSize)
		batches := make([]models.Batch, 0, len(groups))
		for i, g := range groups {
			batches = append(batches, models.Batch{Index: i, Mode: models.ModeImage, Items: g})
		}
		logCtx.Info("Partitioned page images.", "imageCount", len(content.Images), "batchCount", len(batches))
		return batches
	}

	chunks := SplitText(content.Text, p.ChunkSize, p.ChunkOverlap)
	batches := make([]models.Batch, 0, len(chunks))
	for i, c := range chunks {
		batches = append(batches, models.Batch{Index: i, Mode: models.ModeText, Items: []string{c}})
	}
	logCtx.Info("Partitioned document text.", "chunkCount", len(chunks))

	if len(chunks) > 0 {
		p.indexChunks(ctx, logCtx, deckID, chunks)
	}
	return batches
}

func (p *Partitioner) indexChunks(ctx context.Context, logCtx *slog.Logger, deckID string, chunks []string) {
	if p.Indexer == nil {
		return
	}
	docs := make([]knowledge.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = knowledge.Document{
			Content:  c,
			DeckID:   deckID,
			Source:   knowledge.SourceDocument,
			Sequence: i,
		}
	}
	if err := p.Indexer.Index(ctx, docs); err != nil {
		logCtx.Warn("Indexing of text chunks failed. Continuing without them.", "error", err, "chunkCount", len(chunks))
		return
	}
	logCtx.Info("Indexed text chunks.", "chunkCount", len(chunks))
}

// SplitText cuts text into windows of size code points, each window after the first
// starting with the last overlap code points of the previous one.
func SplitText(text string, size, overlap int) []string {
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = DefaultTextChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(text)
	step := size - overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// GroupImages groups images into consecutive bundles of size; the last may be smaller.
func GroupImages(images []string, size int) [][]string {
	if len(images) == 0 {
		return nil
	}
	if size <= 0 {
		size = DefaultImageBatchSize
	}
	groups := make([][]string, 0, (len(images)+size-1)/size)
	for start := 0; start < len(images); start += size {
		end := min(start+size, len(images))
		groups = append(groups, images[start:end:end])
	}
	return groups
}

func loggerOr(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}
