package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/Lllllllleong/flashdeck/internal/deck"
	"github.com/Lllllllleong/flashdeck/internal/extract"
	"github.com/Lllllllleong/flashdeck/internal/models"
	"github.com/google/uuid"
)

// DeckRecorder persists deck records and their status transitions.
type DeckRecorder interface {
	Create(ctx context.Context, d *models.Deck) error
	UpdateStatus(ctx context.Context, deckID, status, errDetails string) error
	Complete(ctx context.Context, d *models.Deck) error
	FindCompletedByHash(ctx context.Context, fileHash string) (*models.Deck, error)
	Get(ctx context.Context, deckID string) (*models.Deck, error)
	List(ctx context.Context, limit int) ([]models.Deck, error)
}

// ContentExtractor turns uploads into pipeline content.
type ContentExtractor interface {
	Extract(ctx context.Context, files []extract.File) (models.Content, error)
}

// DeckRunner runs the card pipeline for one deck.
type DeckRunner interface {
	Run(ctx context.Context, deckID string, content models.Content) models.DeckResult
}

// Publisher makes a built deck package downloadable.
type Publisher interface {
	Publish(ctx context.Context, localPath, objectName string) (string, error)
}

// DeckGeneratorFunction holds dependencies for the deck generation flow.
type DeckGeneratorFunction struct {
	recorder  DeckRecorder
	extractor ContentExtractor
	runner    DeckRunner
	builder   deck.Builder
	// publisher is optional. Without it the local package path is returned.
	publisher Publisher
	newID     func() string
}

// NewDeckGenerator wires a generator. publisher may be nil.
func NewDeckGenerator(recorder DeckRecorder, extractor ContentExtractor, runner DeckRunner, builder deck.Builder, publisher Publisher) *DeckGeneratorFunction {
	return &DeckGeneratorFunction{
		recorder:  recorder,
		extractor: extractor,
		runner:    runner,
		builder:   builder,
		publisher: publisher,
		newID:     uuid.NewString,
	}
}

// Process generates a deck from the uploaded files. Only an unusable source
// or an infrastructure failure returns an error; failed batches just yield
// fewer cards.
func (f *DeckGeneratorFunction) Process(ctx context.Context, files []extract.File) (*models.GenerateDeckResponse, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no files uploaded: %w", extract.ErrSourceEmpty)
	}
	deckName := DeckName(files[0].Name)
	fileHash := calculateUploadHash(files)
	logCtx := slog.With("deckName", deckName, "fileHash", fileHash, "fileCount", len(files))
	logCtx.Info("Starting deck generation.")

	existing, err := f.recorder.FindCompletedByHash(ctx, fileHash)
	if err != nil {
		logCtx.Warn("Failed to check for duplicate upload. Generating anyway.", "error", err)
	}
	if existing != nil {
		logCtx.Info("Duplicate upload detected. Returning stored deck.", "existingDeckId", existing.DeckID)
		return responseFromDeck(existing), nil
	}

	record := &models.Deck{
		DeckID:           f.newID(),
		FileHash:         fileHash,
		OriginalFilename: files[0].Name,
		DeckName:         deckName,
		Status:           models.StatusValidating,
		CreatedAt:        time.Now(),
	}
	if err := f.recorder.Create(ctx, record); err != nil {
		logCtx.Error("Failed to create deck record", "error", err)
		return nil, err
	}
	logCtx = logCtx.With("deckId", record.DeckID)

	content, err := f.extractor.Extract(ctx, files)
	if err != nil {
		return nil, f.handleError(ctx, logCtx, record.DeckID, "failed to extract content", err)
	}
	record.Mode = content.Mode
	if content.Mode == models.ModeImage {
		record.PageCount = len(content.Images)
	}

	if err := f.updateStatus(ctx, record.DeckID, models.StatusGenerating, ""); err != nil {
		return nil, f.handleError(ctx, logCtx, record.DeckID, "failed to update status to GENERATING", err)
	}
	result := f.runner.Run(ctx, record.DeckID, content)
	record.Cards = result.Cards
	record.Flowcharts = result.Flowcharts
	record.CardCount = len(result.Cards)
	record.TotalBatches = result.TotalBatches
	record.FailedBatches = result.FailedBatches
	if result.FailedBatches > 0 {
		logCtx.Warn("Some batches failed. Deck is incomplete.", "failedBatches", result.FailedBatches, "totalBatches", result.TotalBatches)
	}

	if err := f.updateStatus(ctx, record.DeckID, models.StatusPackaging, ""); err != nil {
		return nil, f.handleError(ctx, logCtx, record.DeckID, "failed to update status to PACKAGING", err)
	}
	if len(result.Cards) > 0 {
		downloadPath, err := f.packageDeck(ctx, record)
		if err != nil {
			return nil, f.handleError(ctx, logCtx, record.DeckID, "failed to package deck", err)
		}
		record.DownloadPath = downloadPath
	} else {
		logCtx.Warn("No cards generated. Skipping packaging.")
	}

	if err := f.recorder.Complete(ctx, record); err != nil {
		return nil, f.handleError(ctx, logCtx, record.DeckID, "failed to record completed deck", err)
	}
	record.Status = models.StatusCompleted
	logCtx.Info("Deck generation complete.", "cardCount", record.CardCount, "downloadPath", record.DownloadPath)
	return responseFromDeck(record), nil
}

func (f *DeckGeneratorFunction) packageDeck(ctx context.Context, record *models.Deck) (string, error) {
	localPath, err := f.builder.Build(ctx, record.DeckID, record.Cards, record.DeckName)
	if err != nil {
		return "", err
	}
	if f.publisher == nil {
		return localPath, nil
	}
	objectName := fmt.Sprintf("%s/%s", record.DeckID, deck.PackageFileName(record.DeckName))
	return f.publisher.Publish(ctx, localPath, objectName)
}

// handleError records the failure on the deck and returns an error wrapping the original.
func (f *DeckGeneratorFunction) handleError(ctx context.Context, logCtx *slog.Logger, deckID, message string, originalErr error) error {
	fullError := fmt.Sprintf("%s: %v", message, originalErr)
	logCtx.Error(message, "error", originalErr)
	if err := f.updateStatus(ctx, deckID, models.StatusFailed, fullError); err != nil {
		logCtx.Error("CRITICAL: Failed to update deck status to FAILED after a processing error.", "updateError", err)
	}
	return fmt.Errorf("%s: %w", message, originalErr)
}

func (f *DeckGeneratorFunction) updateStatus(ctx context.Context, deckID, status, errDetails string) error {
	return f.recorder.UpdateStatus(ctx, deckID, status, errDetails)
}

// DeckName derives the deck name from an uploaded file name.
func DeckName(filename string) string {
	base := filepath.Base(filename)
	if strings.EqualFold(filepath.Ext(base), ".pdf") {
		base = base[:len(base)-len(".pdf")]
	}
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "FlashDeck"
	}
	return base
}

// calculateUploadHash hashes the file contents in upload order.
func calculateUploadHash(files []extract.File) string {
	hash := sha256.New()
	for _, f := range files {
		sum := sha256.Sum256(f.Data)
		hash.Write(sum[:])
	}
	return hex.EncodeToString(hash.Sum(nil))
}

func responseFromDeck(d *models.Deck) *models.GenerateDeckResponse {
	cards := d.Cards
	if cards == nil {
		cards = []models.Card{}
	}
	flowcharts := d.Flowcharts
	if flowcharts == nil {
		flowcharts = []string{}
	}
	return &models.GenerateDeckResponse{
		Status:        "success",
		DeckID:        d.DeckID,
		DeckName:      d.DeckName,
		Cards:         cards,
		Flowcharts:    flowcharts,
		DownloadPath:  d.DownloadPath,
		TotalBatches:  d.TotalBatches,
		FailedBatches: d.FailedBatches,
	}
}

// IsSourceError reports whether err was caused by an empty or unreadable upload.
func IsSourceError(err error) bool {
	return errors.Is(err, extract.ErrSourceEmpty) || errors.Is(err, extract.ErrInvalidSource)
}
