package gcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultEmbeddingModel is used when no embedding model is configured.
const DefaultEmbeddingModel = "text-embedding-004"

// maxEmbedBatch is the largest batch the embedding endpoint accepts.
const maxEmbedBatch = 100

// GeminiClient talks to the Gemini API with an API key. It provides the same
// card and chat models as VertexClient plus text embeddings.
type GeminiClient struct {
	CardModel      *genai.GenerativeModel
	ChatModel      *genai.GenerativeModel
	EmbeddingModel *genai.EmbeddingModel
	baseClient     *genai.Client
}

// NewGeminiClient creates a client for the Gemini API.
func NewGeminiClient(ctx context.Context, apiKey, modelName, embeddingModel string) (*GeminiClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY is empty")
	}
	if modelName == "" {
		modelName = DefaultGenerationModel
	}
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}

	baseClient, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	cardModel := baseClient.GenerativeModel(modelName)
	cardModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(CardSystemPrompt)},
	}
	cardModel.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0),
	}

	chatModel := baseClient.GenerativeModel(modelName)
	chatModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(ChatSystemPrompt)},
	}
	chatModel.GenerationConfig = genai.GenerationConfig{
		Temperature: genai.Ptr[float32](0.2),
	}

	return &GeminiClient{
		CardModel:      cardModel,
		ChatModel:      chatModel,
		EmbeddingModel: baseClient.EmbeddingModel(embeddingModel),
		baseClient:     baseClient,
	}, nil
}

// CardGenerator returns the JSON card model as a pipeline backend.
func (c *GeminiClient) CardGenerator() *GeminiGenerator {
	return &GeminiGenerator{model: c.CardModel}
}

// ChatGenerator returns the free-text chat model.
func (c *GeminiClient) ChatGenerator() *GeminiGenerator {
	return &GeminiGenerator{model: c.ChatModel}
}

// Embed returns one embedding per text, batching requests to the API limit.
func (c *GeminiClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxEmbedBatch {
		end := min(start+maxEmbedBatch, len(texts))
		batch := c.EmbeddingModel.NewBatch()
		for _, t := range texts[start:end] {
			batch.AddContent(genai.Text(t))
		}
		resp, err := c.EmbeddingModel.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("gemini batch embed: %w", err)
		}
		if len(resp.Embeddings) != end-start {
			return nil, fmt.Errorf("gemini batch embed: got %d embeddings for %d texts", len(resp.Embeddings), end-start)
		}
		for _, e := range resp.Embeddings {
			if e == nil {
				out = append(out, nil)
				continue
			}
			out = append(out, e.Values)
		}
	}
	return out, nil
}

func (c *GeminiClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}

// GeminiGenerator sends one prompt plus inline attachments per call.
type GeminiGenerator struct {
	model *genai.GenerativeModel
}

func (g *GeminiGenerator) Generate(ctx context.Context, prompt string, attachments [][]byte) (string, error) {
	parts := make([]genai.Part, 0, len(attachments)+1)
	for _, data := range attachments {
		parts = append(parts, &genai.Blob{MIMEType: http.DetectContentType(data), Data: data})
	}
	parts = append(parts, genai.Text(prompt))

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("gemini generate content: %w", err)
	}
	text := geminiResponseText(resp)
	if text == "" {
		return "", ErrEmptyModelResponse
	}
	return text, nil
}

func geminiResponseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(sb.String())
}
