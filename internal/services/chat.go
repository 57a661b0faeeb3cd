package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Lllllllleong/flashdeck/internal/gcp"
	"github.com/Lllllllleong/flashdeck/internal/knowledge"
	"github.com/Lllllllleong/flashdeck/internal/models"
	"github.com/Lllllllleong/flashdeck/internal/pipeline"
)

var (
	// ErrInvalidRequest marks a request the caller must fix.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrKnowledgeUnavailable is returned when no knowledge store is configured.
	ErrKnowledgeUnavailable = errors.New("knowledge store is not configured")
)

// NoContextAnswer is returned when nothing relevant was indexed for the question.
const NoContextAnswer = "I couldn't find anything about that in your study material."

// ChatFunction answers questions about a deck from its indexed knowledge.
type ChatFunction struct {
	store     knowledge.Store
	generator pipeline.Generator
	topK      int
}

// NewChat creates a chat service. A nil store makes every request fail with ErrKnowledgeUnavailable.
func NewChat(store knowledge.Store, generator pipeline.Generator, topK int) *ChatFunction {
	if topK <= 0 {
		topK = knowledge.DefaultTopK
	}
	return &ChatFunction{store: store, generator: generator, topK: topK}
}

// Process retrieves the closest passages for the message and asks the chat model to answer from them.
func (f *ChatFunction) Process(ctx context.Context, req *models.ChatRequest) (*models.ChatResponse, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, fmt.Errorf("%w: message must not be empty", ErrInvalidRequest)
	}
	if f.store == nil {
		return nil, ErrKnowledgeUnavailable
	}
	logCtx := slog.With("deckId", req.DeckID)

	matches, err := f.store.Query(ctx, message, req.DeckID, f.topK)
	if err != nil {
		logCtx.Error("Knowledge query failed", "error", err)
		return nil, fmt.Errorf("failed to query knowledge store: %w", err)
	}
	sources := make([]models.ChatSource, 0, len(matches))
	for _, m := range matches {
		sources = append(sources, models.ChatSource{
			Content:  m.Content,
			Source:   m.Metadata.Source,
			Sequence: m.Metadata.Sequence,
			Score:    m.Score,
		})
	}
	if len(matches) == 0 {
		logCtx.Info("No knowledge found for question.")
		return &models.ChatResponse{Answer: NoContextAnswer, Sources: sources}, nil
	}

	prompt := fmt.Sprintf(gcp.ChatUserPrompt, formatContext(matches), message)
	answer, err := f.generator.Generate(ctx, prompt, nil)
	if err != nil {
		logCtx.Error("Call to chat model failed", "error", err)
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	logCtx.Info("Answered chat message.", "sourceCount", len(sources))
	return &models.ChatResponse{Answer: strings.TrimSpace(answer), Sources: sources}, nil
}

func formatContext(matches []knowledge.Match) string {
	var sb strings.Builder
	for i, m := range matches {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[%d] %s", i+1, strings.TrimSpace(m.Content))
	}
	return sb.String()
}
