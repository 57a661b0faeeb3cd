package pipeline

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Lllllllleong/flashdeck/internal/models"
)

// ErrMalformedResponse marks a model response that could not be parsed into cards.
var ErrMalformedResponse = errors.New("malformed model response")

// Generator is the generative model backend. Attachments are raw image bytes.
type Generator interface {
	Generate(ctx context.Context, prompt string, attachments [][]byte) (string, error)
}

// Worker turns one batch into a partial result with a single backend call.
type Worker struct {
	Generator Generator
	// Timeout bounds each backend call; zero leaves it to the caller's context.
	Timeout     time.Duration
	MaxAttempts int
	Backoff     time.Duration
	Logger      *slog.Logger
}

// Process generates cards for one batch. Every failure is absorbed: the zero
// PartialResult is returned together with false.
func (w *Worker) Process(ctx context.Context, b models.Batch) (models.PartialResult, bool) {
	logCtx := loggerOr(w.Logger).With("batch", b.Index, "itemCount", len(b.Items))
	if len(b.Items) == 0 {
		logCtx.Warn("Skipping batch with no items.")
		return models.PartialResult{}, false
	}

	start := time.Now()
	res, err := w.generate(ctx, logCtx, b)
	if err != nil {
		logCtx.Error("Batch generation failed. Contributing an empty result.", "error", err, "elapsed", time.Since(start).String())
		return models.PartialResult{}, false
	}
	logCtx.Info("Batch generation complete.",
		"cardCount", len(res.Cards),
		"hasFlowchart", res.Flowchart != "",
		"hasTranscription", res.Transcription != "",
		"elapsed", time.Since(start).String(),
	)
	return res, true
}

func (w *Worker) generate(ctx context.Context, logCtx *slog.Logger, b models.Batch) (models.PartialResult, error) {
	if w.Generator == nil {
		return models.PartialResult{}, errors.New("no generator configured")
	}

	mode := DetectMode(b.Items[0])
	if b.Mode != "" && b.Mode != mode {
		logCtx.Warn("Detected batch mode differs from partition mode.", "detected", mode, "partitioned", b.Mode)
	}

	var (
		prompt      string
		attachments [][]byte
	)
	if mode == models.ModeImage {
		images, err := decodeImages(b.Items)
		if err != nil {
			return models.PartialResult{}, err
		}
		prompt, attachments = ImageBatchPrompt, images
	} else {
		prompt = TextBatchPrompt + strings.Join(b.Items, "\n\n")
	}

	raw, err := w.call(ctx, logCtx, prompt, attachments)
	if err != nil {
		return models.PartialResult{}, err
	}
	return ParseResponse(raw)
}

// call invokes the backend, retrying call errors with exponential backoff.
// Parse failures are not retried.
func (w *Worker) call(ctx context.Context, logCtx *slog.Logger, prompt string, attachments [][]byte) (string, error) {
	maxAttempts := max(w.MaxAttempts, 1)
	backoff := w.Backoff
	if backoff <= 0 {
		backoff = time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		raw, err := w.callOnce(ctx, prompt, attachments)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		if attempt == maxAttempts {
			break
		}
		logCtx.Warn("Generation call failed, will retry.",
			"attempt", attempt,
			"maxAttempts", maxAttempts,
			"backoff", backoff.String(),
			"error", err,
		)
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("generation failed after %d attempt(s): %w", maxAttempts, lastErr)
}

func (w *Worker) callOnce(ctx context.Context, prompt string, attachments [][]byte) (string, error) {
	if w.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.Timeout)
		defer cancel()
	}
	return w.Generator.Generate(ctx, prompt, attachments)
}

// decodeImages decodes base64 payloads, tolerating a data URL prefix.
func decodeImages(items []string) ([][]byte, error) {
	out := make([][]byte, 0, len(items))
	for i, item := range items {
		if idx := strings.Index(item, ";base64,"); strings.HasPrefix(item, "data:") && idx >= 0 {
			item = item[idx+len(";base64,"):]
		}
		data, err := base64.StdEncoding.DecodeString(item)
		if err != nil {
			return nil, fmt.Errorf("image %d is not valid base64: %w", i, err)
		}
		out = append(out, data)
	}
	return out, nil
}

// generationResponse is the JSON shape the card prompts ask for.
type generationResponse struct {
	Cards         []models.Card `json:"cards"`
	Flowchart     string        `json:"flowchart"`
	Transcription string        `json:"transcription"`
}

// ParseResponse extracts a partial result from raw model output. A bare JSON
// array is accepted as a list of cards.
func ParseResponse(raw string) (models.PartialResult, error) {
	cleanJSON := stripCodeFences(raw)
	if cleanJSON == "" {
		return models.PartialResult{}, fmt.Errorf("%w: empty response", ErrMalformedResponse)
	}

	if strings.HasPrefix(cleanJSON, "[") {
		var cards []models.Card
		if err := json.Unmarshal([]byte(cleanJSON), &cards); err != nil {
			return models.PartialResult{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		return models.PartialResult{Cards: cards}, nil
	}

	var resp generationResponse
	if err := json.Unmarshal([]byte(cleanJSON), &resp); err != nil {
		return models.PartialResult{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return models.PartialResult{
		Cards:         resp.Cards,
		Flowchart:     strings.TrimSpace(resp.Flowchart),
		Transcription: strings.TrimSpace(resp.Transcription),
	}, nil
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
