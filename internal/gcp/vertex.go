package gcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"cloud.google.com/go/vertexai/genai"
)

// --- Card Model Prompts ---
const CardSystemPrompt = "You are an expert educator who turns study material into concise, accurate flashcards. You must output your response as a single valid JSON object."

// --- Chat Model Prompts ---
const ChatSystemPrompt = "You are a helpful study assistant. Answer questions using only the provided context from the student's material. If the context does not contain the answer, say that you could not find it in the material."

// ChatUserPrompt is filled with the retrieved context and the student's question.
const ChatUserPrompt = `Use the following excerpts from the student's study material to answer the question.

CONTEXT:
%s

QUESTION: %s

Answer concisely. Do not use knowledge that is not in the context.`

// DefaultGenerationModel is used when no model name is configured.
const DefaultGenerationModel = "gemini-1.5-pro"

// ErrEmptyModelResponse is returned when the model answers without any text.
var ErrEmptyModelResponse = errors.New("model returned no text")

// VertexClient holds the pre-configured generative models for the app.
type VertexClient struct {
	CardModel  *genai.GenerativeModel
	ChatModel  *genai.GenerativeModel
	baseClient *genai.Client
}

// NewVertexClient creates a new client holding the card and chat models.
func NewVertexClient(ctx context.Context, projectID, region, modelName string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}
	if modelName == "" {
		modelName = DefaultGenerationModel
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	safety := []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
	}

	cardModel := baseClient.GenerativeModel(modelName)
	cardModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(CardSystemPrompt)},
	}
	cardModel.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.0),
	}
	cardModel.SafetySettings = safety

	chatModel := baseClient.GenerativeModel(modelName)
	chatModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(ChatSystemPrompt)},
	}
	chatModel.GenerationConfig = genai.GenerationConfig{
		Temperature: genai.Ptr[float32](0.2),
	}
	chatModel.SafetySettings = safety

	return &VertexClient{
		CardModel:  cardModel,
		ChatModel:  chatModel,
		baseClient: baseClient,
	}, nil
}

// CardGenerator returns the JSON card model as a pipeline backend.
func (c *VertexClient) CardGenerator() *VertexGenerator {
	return &VertexGenerator{model: c.CardModel}
}

// ChatGenerator returns the free-text chat model.
func (c *VertexClient) ChatGenerator() *VertexGenerator {
	return &VertexGenerator{model: c.ChatModel}
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}

// VertexGenerator sends one prompt plus inline attachments per call.
type VertexGenerator struct {
	model *genai.GenerativeModel
}

func (g *VertexGenerator) Generate(ctx context.Context, prompt string, attachments [][]byte) (string, error) {
	parts := make([]genai.Part, 0, len(attachments)+1)
	for _, data := range attachments {
		parts = append(parts, genai.Blob{MIMEType: http.DetectContentType(data), Data: data})
	}
	parts = append(parts, genai.Text(prompt))

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("vertex generate content: %w", err)
	}
	text := vertexResponseText(resp)
	if text == "" {
		return "", ErrEmptyModelResponse
	}
	return text, nil
}

func vertexResponseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return ""
	}

	var contentBuilder strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			contentBuilder.WriteString(string(txt))
		}
	}
	return strings.TrimSpace(contentBuilder.String())
}
