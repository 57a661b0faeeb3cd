// Package config loads the FlashDeck runtime configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Lllllllleong/flashdeck/internal/gcp"
	"github.com/Lllllllleong/flashdeck/internal/pipeline"
	"github.com/joho/godotenv"
)

// Generation backends.
const (
	BackendVertex = "vertex"
	BackendGemini = "gemini"
)

// Config holds every setting shared by the functions, the CLI and the local server.
type Config struct {
	GenerationBackend string
	ProjectID         string
	VertexAIRegion    string
	GeminiAPIKey      string
	GenerationModel   string
	EmbeddingModel    string

	Pipeline pipeline.Config

	KnowledgeDBDriver string
	KnowledgeDBDSN    string
	RedisAddr         string
	QueryCacheTTL     time.Duration

	FirestoreCollection string
	DeckBucket          string
	DeckOutputDir       string
	RenderDPI           int

	Port string
}

// Load reads a .env file when present, then the environment, and validates the result.
func Load() (*Config, error) {
	// A missing .env is normal in deployed functions.
	_ = godotenv.Load()

	cfg := &Config{
		GenerationBackend:   strings.ToLower(gcp.GetEnv("GENERATION_BACKEND", BackendVertex)),
		ProjectID:           gcp.GetEnv("PROJECT_ID", ""),
		VertexAIRegion:      gcp.GetEnv("VERTEX_AI_REGION", "us-central1"),
		GeminiAPIKey:        gcp.GetEnv("GEMINI_API_KEY", ""),
		GenerationModel:     gcp.GetEnv("GENERATION_MODEL", gcp.DefaultGenerationModel),
		EmbeddingModel:      gcp.GetEnv("EMBEDDING_MODEL", gcp.DefaultEmbeddingModel),
		KnowledgeDBDriver:   gcp.GetEnv("KNOWLEDGE_DB_DRIVER", "sqlite3"),
		KnowledgeDBDSN:      gcp.GetEnv("KNOWLEDGE_DB_DSN", "file:flashdeck_knowledge.db"),
		RedisAddr:           gcp.GetEnv("REDIS_ADDR", ""),
		FirestoreCollection: gcp.GetEnv("FIRESTORE_COLLECTION", ""),
		DeckBucket:          gcp.GetEnv("DECK_BUCKET", ""),
		DeckOutputDir:       gcp.GetEnv("DECK_OUTPUT_DIR", os.TempDir()),
		Port:                gcp.GetEnv("PORT", "8080"),
	}

	p := pipeline.DefaultConfig()
	var errs []error
	readInt := func(key string, dst *int) {
		v, err := gcp.GetEnvInt(key, *dst)
		errs = append(errs, err)
		*dst = v
	}
	readDuration := func(key string, dst *time.Duration) {
		v, err := gcp.GetEnvDuration(key, *dst)
		errs = append(errs, err)
		*dst = v
	}
	readInt("IMAGE_BATCH_SIZE", &p.ImageBatchSize)
	readInt("TEXT_CHUNK_SIZE", &p.TextChunkSize)
	readInt("TEXT_CHUNK_OVERLAP", &p.TextChunkOverlap)
	readInt("MAX_CONCURRENT_BATCHES", &p.MaxConcurrentBatches)
	readInt("GENERATE_MAX_ATTEMPTS", &p.GenerateMaxAttempts)
	readDuration("GENERATE_TIMEOUT", &p.GenerateTimeout)
	cfg.Pipeline = p

	cfg.QueryCacheTTL = 10 * time.Minute
	readDuration("QUERY_CACHE_TTL", &cfg.QueryCacheTTL)
	cfg.RenderDPI = 150
	readInt("RENDER_DPI", &cfg.RenderDPI)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings that have no safe default.
func (c *Config) Validate() error {
	switch c.GenerationBackend {
	case BackendVertex:
		if c.ProjectID == "" {
			return fmt.Errorf("PROJECT_ID must be set for the %s backend", BackendVertex)
		}
	case BackendGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY must be set for the %s backend", BackendGemini)
		}
	default:
		return fmt.Errorf("GENERATION_BACKEND must be %q or %q, got %q", BackendVertex, BackendGemini, c.GenerationBackend)
	}
	if c.FirestoreCollection != "" && c.ProjectID == "" {
		return fmt.Errorf("PROJECT_ID must be set when FIRESTORE_COLLECTION is set")
	}
	switch c.KnowledgeDBDriver {
	case "sqlite3", "pgx":
	default:
		return fmt.Errorf("KNOWLEDGE_DB_DRIVER must be sqlite3 or pgx, got %q", c.KnowledgeDBDriver)
	}
	if c.RenderDPI <= 0 {
		return fmt.Errorf("RENDER_DPI must be positive, got %d", c.RenderDPI)
	}
	return c.Pipeline.Validate()
}

// KnowledgeEnabled reports whether embeddings, and therefore indexing and chat, are available.
func (c *Config) KnowledgeEnabled() bool {
	return c.GeminiAPIKey != ""
}
