package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/Lllllllleong/flashdeck/internal/knowledge"
	"github.com/Lllllllleong/flashdeck/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupImages_BatchCounts(t *testing.T) {
	for _, n := range []int{1, 4, 5, 6, 10, 11, 23} {
		images := fakeImages(n)
		groups := GroupImages(images, 5)

		require.Len(t, groups, (n+4)/5, "n=%d", n)
		total := 0
		for i, g := range groups {
			if i < len(groups)-1 {
				assert.Len(t, g, 5, "n=%d batch=%d", n, i)
			}
			assert.NotEmpty(t, g)
			total += len(g)
		}
		assert.Equal(t, n, total)
	}
}

func TestGroupImages_PreservesOrder(t *testing.T) {
	images := fakeImages(7)
	groups := GroupImages(images, 3)

	var flat []string
	for _, g := range groups {
		flat = append(flat, g...)
	}
	assert.Equal(t, images, flat)
}

func TestSplitText_ChunkCountAndOverlap(t *testing.T) {
	const size, overlap = 4000, 200
	for _, l := range []int{1, 3999, 4000, 4001, 7800, 7801, 10000, 38000, 40000} {
		text := strings.Repeat("x", l)
		chunks := SplitText(text, size, overlap)

		want := 1
		if l > size {
			want = (l - overlap + (size - overlap) - 1) / (size - overlap)
		}
		assert.Len(t, chunks, want, "L=%d", l)
	}
}

func TestSplitText_EveryChunkStartsWithPreviousTail(t *testing.T) {
	var sb strings.Builder
	for i := 0; sb.Len() < 12000; i++ {
		sb.WriteString("sentence ")
		sb.WriteString(strings.Repeat(string(rune('a'+i%26)), i%7+1))
		sb.WriteString(". ")
	}
	chunks := SplitText(sb.String(), 4000, 200)
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1])
		tail := string(prev[len(prev)-200:])
		assert.True(t, strings.HasPrefix(chunks[i], tail), "chunk %d", i)
	}
	for _, c := range chunks[:len(chunks)-1] {
		assert.Len(t, []rune(c), 4000)
	}
}

func TestSplitText_CountsCodePoints(t *testing.T) {
	text := strings.Repeat("é", 25)
	chunks := SplitText(text, 10, 2)
	require.Len(t, chunks, 3)
	assert.Equal(t, strings.Repeat("é", 10), chunks[0])
	assert.Equal(t, strings.Repeat("é", 9), chunks[2])
}

func TestSplitText_Empty(t *testing.T) {
	assert.Empty(t, SplitText("", 4000, 200))
}

func TestPartition_ImageModeDoesNotIndex(t *testing.T) {
	idx := &recordingIndexer{}
	p := &Partitioner{ImageBatchSize: 5, ChunkSize: 4000, ChunkOverlap: 200, Indexer: idx}

	batches := p.Partition(context.Background(), "deck-1", models.ImageContent(fakeImages(12)))

	require.Len(t, batches, 3)
	for i, b := range batches {
		assert.Equal(t, i, b.Index)
		assert.Equal(t, models.ModeImage, b.Mode)
	}
	assert.Len(t, batches[2].Items, 2)
	assert.Zero(t, idx.callCount())
}

func TestPartition_TextModeIndexesChunks(t *testing.T) {
	idx := &recordingIndexer{}
	p := &Partitioner{ImageBatchSize: 5, ChunkSize: 10, ChunkOverlap: 2, Indexer: idx}

	batches := p.Partition(context.Background(), "deck-1", models.TextContent(strings.Repeat("abcd ", 6)))

	require.Len(t, batches, 4)
	for _, b := range batches {
		assert.Len(t, b.Items, 1)
		assert.Equal(t, models.ModeText, b.Mode)
	}

	require.Equal(t, 1, idx.callCount())
	docs := idx.calls[0]
	require.Len(t, docs, len(batches))
	for i, d := range docs {
		assert.Equal(t, "deck-1", d.DeckID)
		assert.Equal(t, knowledge.SourceDocument, d.Source)
		assert.Equal(t, i, d.Sequence)
		assert.Equal(t, batches[i].Items[0], d.Content)
	}
}

func TestPartition_IndexingFailureIsAbsorbed(t *testing.T) {
	idx := &recordingIndexer{err: errBackendDown}
	p := &Partitioner{ImageBatchSize: 5, ChunkSize: 10, ChunkOverlap: 0, Indexer: idx}

	batches := p.Partition(context.Background(), "deck-1", models.TextContent("0123456789abcdefghij"))

	assert.Len(t, batches, 2)
	assert.Equal(t, 1, idx.callCount())
}

func TestPartition_EmptyContent(t *testing.T) {
	idx := &recordingIndexer{}
	p := &Partitioner{ImageBatchSize: 5, ChunkSize: 4000, ChunkOverlap: 200, Indexer: idx}

	assert.Empty(t, p.Partition(context.Background(), "d", models.TextContent("")))
	assert.Empty(t, p.Partition(context.Background(), "d", models.ImageContent(nil)))
	assert.Zero(t, idx.callCount())
}
