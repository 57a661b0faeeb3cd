package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/Lllllllleong/flashdeck/internal/models"
	"golang.org/x/sync/errgroup"
)

// Stage is a state of one pipeline run.
type Stage string

const (
	StagePartitioning Stage = "PARTITIONING"
	StageGenerating   Stage = "GENERATING"
	StageReducing     Stage = "REDUCING"
	StageDone         Stage = "DONE"
)

// Orchestrator wires partitioning, concurrent generation and reduction.
type Orchestrator struct {
	Partitioner *Partitioner
	Worker      *Worker
	Reducer     *Reducer
	// MaxConcurrency caps the number of workers running at once. Zero means no cap.
	MaxConcurrency int
	// OnStage, when set, is called on every stage transition.
	OnStage func(Stage)
	Logger  *slog.Logger
}

// New builds an orchestrator from cfg. idx may be nil to disable knowledge indexing.
func New(cfg Config, gen Generator, idx Indexer, logger *slog.Logger) *Orchestrator {
	logger = loggerOr(logger)
	return &Orchestrator{
		Partitioner: &Partitioner{
			ImageBatchSize: cfg.ImageBatchSize,
			ChunkSize:      cfg.TextChunkSize,
			ChunkOverlap:   cfg.TextChunkOverlap,
			Indexer:        idx,
			Logger:         logger,
		},
		Worker: &Worker{
			Generator:   gen,
			Timeout:     cfg.GenerateTimeout,
			MaxAttempts: cfg.GenerateMaxAttempts,
			Backoff:     cfg.RetryBackoff,
			Logger:      logger,
		},
		Reducer: &Reducer{
			Indexer: idx,
			Logger:  logger,
		},
		MaxConcurrency: cfg.MaxConcurrentBatches,
		Logger:         logger,
	}
}

// Run executes one request end to end. It always reaches StageDone: worker
// failures only reduce the number of cards.
func (o *Orchestrator) Run(ctx context.Context, deckID string, content models.Content) models.DeckResult {
	logCtx := loggerOr(o.Logger).With("deckId", deckID)
	start := time.Now()

	o.enter(logCtx, StagePartitioning)
	batches := o.Partitioner.Partition(ctx, deckID, content)

	o.enter(logCtx, StageGenerating, "batchCount", len(batches))
	results, failed := o.generate(ctx, batches)

	o.enter(logCtx, StageReducing, "failedBatches", failed)
	deck := o.Reducer.Reduce(ctx, deckID, content, results)
	deck.TotalBatches = len(batches)
	deck.FailedBatches = failed

	o.enter(logCtx, StageDone,
		"cardCount", len(deck.Cards),
		"flowchartCount", len(deck.Flowcharts),
		"elapsed", time.Since(start).String(),
	)
	return deck
}

// generate fans out one worker per batch and waits for all of them. Each worker
// writes only its own slot, so results keep batch order.
func (o *Orchestrator) generate(ctx context.Context, batches []models.Batch) ([]models.PartialResult, int) {
	results := make([]models.PartialResult, len(batches))
	succeeded := make([]bool, len(batches))

	var eg errgroup.Group
	if o.MaxConcurrency > 0 {
		eg.SetLimit(o.MaxConcurrency)
	}
	for i, b := range batches {
		eg.Go(func() error {
			results[i], succeeded[i] = o.Worker.Process(ctx, b)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		// Workers absorb their own failures and return nil, so this is unreachable today.
		loggerOr(o.Logger).Error("Worker group returned an error", "error", err)
	}

	failed := 0
	for _, ok := range succeeded {
		if !ok {
			failed++
		}
	}
	return results, failed
}

func (o *Orchestrator) enter(logCtx *slog.Logger, s Stage, attrs ...any) {
	logCtx.Info("Pipeline stage started.", append([]any{"stage", s}, attrs...)...)
	if o.OnStage != nil {
		o.OnStage(s)
	}
}
