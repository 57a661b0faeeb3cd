package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/flashdeck/internal/config"
	"github.com/Lllllllleong/flashdeck/internal/deck"
	"github.com/Lllllllleong/flashdeck/internal/extract"
	"github.com/Lllllllleong/flashdeck/internal/gcp"
	"github.com/Lllllllleong/flashdeck/internal/knowledge"
	"github.com/Lllllllleong/flashdeck/internal/pipeline"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

var (
	_ DeckRecorder       = (*gcp.FirestoreDeckStore)(nil)
	_ DeckRecorder       = (*MemoryDeckStore)(nil)
	_ Publisher          = (*gcp.GCSPublisher)(nil)
	_ DeckRunner         = (*pipeline.Orchestrator)(nil)
	_ pipeline.Generator = (*gcp.VertexGenerator)(nil)
	_ pipeline.Generator = (*gcp.GeminiGenerator)(nil)
	_ knowledge.Embedder = (*gcp.GeminiClient)(nil)
)

// App is the fully wired set of services shared by every entry point.
type App struct {
	Config    *config.Config
	Generator *DeckGeneratorFunction
	Chat      *ChatFunction
	Decks     DeckRecorder
	// Knowledge is nil when no embedder is configured.
	Knowledge *knowledge.SQLStore

	storageClient *storage.Client
	closers       []func() error
}

// NewApp builds every client and service described by cfg.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{Config: cfg}
	if err := app.init(ctx); err != nil {
		app.Close()
		return nil, err
	}
	return app, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config
	cardGen, chatGen, gemini, err := a.newGenerators(ctx)
	if err != nil {
		return err
	}

	var (
		indexer pipeline.Indexer
		store   knowledge.Store
	)
	if gemini != nil {
		sqlStore, err := knowledge.OpenSQLStore(ctx, cfg.KnowledgeDBDriver, cfg.KnowledgeDBDSN, gemini)
		if err != nil {
			return fmt.Errorf("failed to open knowledge store: %w", err)
		}
		a.Knowledge = sqlStore
		a.closers = append(a.closers, sqlStore.Close)

		cache, err := a.newCache(ctx)
		if err != nil {
			return err
		}
		cached := &knowledge.CachedStore{Store: sqlStore, Cache: cache, TTL: cfg.QueryCacheTTL}
		indexer, store = cached, cached
	} else {
		slog.Warn("GEMINI_API_KEY is not set. Knowledge indexing and chat are disabled.")
	}

	decks, err := a.newDeckRecorder(ctx)
	if err != nil {
		return err
	}
	a.Decks = decks

	var publisher Publisher
	if cfg.DeckBucket != "" {
		client, err := a.StorageClient(ctx)
		if err != nil {
			return err
		}
		publisher = gcp.NewGCSPublisher(client, cfg.DeckBucket)
	}

	orchestrator := pipeline.New(cfg.Pipeline, cardGen, indexer, slog.Default())
	a.Generator = NewDeckGenerator(
		decks,
		extract.NewExtractor(cfg.RenderDPI, slog.Default()),
		orchestrator,
		deck.NewAnkiBuilder(cfg.DeckOutputDir, slog.Default()),
		publisher,
	)
	a.Chat = NewChat(store, chatGen, knowledge.DefaultTopK)

	slog.Info("FlashDeck services initialized.",
		"backend", cfg.GenerationBackend,
		"knowledgeEnabled", a.Knowledge != nil,
		"firestoreCollection", cfg.FirestoreCollection,
		"deckBucket", cfg.DeckBucket,
	)
	return nil
}

func (a *App) newGenerators(ctx context.Context) (card, chat pipeline.Generator, gemini *gcp.GeminiClient, err error) {
	cfg := a.Config
	if cfg.KnowledgeEnabled() || cfg.GenerationBackend == config.BackendGemini {
		gemini, err = gcp.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GenerationModel, cfg.EmbeddingModel)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		a.closers = append(a.closers, gemini.Close)
	}

	if cfg.GenerationBackend == config.BackendGemini {
		return gemini.CardGenerator(), gemini.ChatGenerator(), gemini, nil
	}

	vertex, err := gcp.NewVertexClient(ctx, cfg.ProjectID, cfg.VertexAIRegion, cfg.GenerationModel)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create vertex client: %w", err)
	}
	a.closers = append(a.closers, vertex.Close)
	return vertex.CardGenerator(), vertex.ChatGenerator(), gemini, nil
}

func (a *App) newCache(ctx context.Context) (knowledge.Cache, error) {
	if a.Config.RedisAddr == "" {
		return knowledge.NewMemoryCache(), nil
	}
	cache, err := knowledge.NewRedisCache(ctx, knowledge.RedisConfig{Addr: a.Config.RedisAddr})
	if err != nil {
		return nil, fmt.Errorf("failed to create redis cache: %w", err)
	}
	a.closers = append(a.closers, cache.Close)
	return cache, nil
}

func (a *App) newDeckRecorder(ctx context.Context) (DeckRecorder, error) {
	if a.Config.FirestoreCollection == "" {
		return NewMemoryDeckStore(), nil
	}
	client, err := gcp.NewFirestoreClient(ctx, a.Config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	a.closers = append(a.closers, client.Close)
	return gcp.NewFirestoreDeckStore(client, a.Config.FirestoreCollection), nil
}

// StorageClient returns the shared GCS client, creating it on first use.
func (a *App) StorageClient(ctx context.Context) (*storage.Client, error) {
	if a.storageClient != nil {
		return a.storageClient, nil
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	a.storageClient = client
	a.closers = append(a.closers, client.Close)
	return client, nil
}

// NewUploadTrigger wires the upload trigger onto the app's generator.
func (a *App) NewUploadTrigger(ctx context.Context) (*UploadTriggerFunction, error) {
	client, err := a.StorageClient(ctx)
	if err != nil {
		return nil, err
	}
	download := func(ctx context.Context, bucket, object, destPath string) error {
		return gcp.StreamGCSObject(ctx, client, bucket, object, destPath)
	}
	return NewUploadTrigger(a.Generator, download), nil
}

// Health checks the knowledge store, the only dependency with a cheap ping.
func (a *App) Health(ctx context.Context) error {
	if a.Knowledge == nil {
		return nil
	}
	return a.Knowledge.Ping(ctx)
}

// Close releases every client in reverse creation order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// NewFromEnv loads configuration and builds the app.
func NewFromEnv(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return NewApp(ctx, cfg)
}
