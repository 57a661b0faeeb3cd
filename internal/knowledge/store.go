// Package knowledge provides the retrieval index that generated decks are grounded in.
// Documents are written additively and scoped by deck ID.
package knowledge

import (
	"context"
	"errors"
)

// Source labels attached to indexed documents.
const (
	SourceDocument      = "document"
	SourceTranscription = "transcription"
	SourceRawText       = "raw-text"
)

// DefaultTopK is the number of matches returned when a query does not specify one.
const DefaultTopK = 4

// ErrNoEmbedding indicates the embedder returned no usable vector for a document.
var ErrNoEmbedding = errors.New("no embedding returned")

// Document is one unit of indexed knowledge.
type Document struct {
	Content  string `json:"content"`
	DeckID   string `json:"deckId"`
	Source   string `json:"source"`
	Sequence int    `json:"sequence"`
}

// Metadata describes where a match came from.
type Metadata struct {
	DeckID   string `json:"deckId"`
	Source   string `json:"source"`
	Sequence int    `json:"sequence"`
}

// Match is a ranked query result.
type Match struct {
	ID       string   `json:"id"`
	Content  string   `json:"content"`
	Score    float32  `json:"score"`
	Metadata Metadata `json:"metadata"`
}

// Store indexes documents and answers similarity queries.
type Store interface {
	// Index adds documents to the store.
	Index(ctx context.Context, docs []Document) error
	// Query returns up to k documents most similar to text. An empty deckID searches all decks.
	Query(ctx context.Context, text, deckID string, k int) ([]Match, error)
}

// Embedder turns texts into vectors, one per input, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
