package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Lllllllleong/flashdeck/internal/extract"
)

// GCSEvent is the payload of a storage object-finalized event.
type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}

// ObjectDownloader copies a storage object to a local path.
type ObjectDownloader func(ctx context.Context, bucket, object, destPath string) error

// UploadTriggerFunction generates a deck for every PDF written to the upload bucket.
type UploadTriggerFunction struct {
	generator *DeckGeneratorFunction
	download  ObjectDownloader
}

func NewUploadTrigger(generator *DeckGeneratorFunction, download ObjectDownloader) *UploadTriggerFunction {
	return &UploadTriggerFunction{generator: generator, download: download}
}

// Process downloads the uploaded object and runs the generation flow on it.
func (f *UploadTriggerFunction) Process(ctx context.Context, e GCSEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	if !strings.EqualFold(filepath.Ext(e.Name), ".pdf") {
		logCtx.Info("Ignoring non-PDF object.")
		return nil
	}
	logCtx.Info("Processing new GCS object.")

	tempDir, err := os.MkdirTemp("", "upload-trigger-*")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	sourcePath := filepath.Join(tempDir, "source.pdf")
	if err := f.download(ctx, e.Bucket, e.Name, sourcePath); err != nil {
		logCtx.Error("Failed to download source PDF", "error", err)
		return err
	}
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to read downloaded PDF: %w", err)
	}

	res, err := f.generator.Process(ctx, []extract.File{{Name: filepath.Base(e.Name), Data: data}})
	if err != nil {
		// Logged with context inside the generator.
		return err
	}
	logCtx.Info("Deck generated from upload.", "deckId", res.DeckID, "cardCount", len(res.Cards))
	return nil
}
