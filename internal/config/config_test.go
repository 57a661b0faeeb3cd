package config

import (
	"testing"
	"time"

	"github.com/Lllllllleong/flashdeck/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PROJECT_ID", "demo-project")
	t.Setenv("GENERATION_BACKEND", "vertex")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendVertex, cfg.GenerationBackend)
	assert.Equal(t, pipeline.DefaultImageBatchSize, cfg.Pipeline.ImageBatchSize)
	assert.Equal(t, pipeline.DefaultTextChunkSize, cfg.Pipeline.TextChunkSize)
	assert.Equal(t, pipeline.DefaultTextChunkOverlap, cfg.Pipeline.TextChunkOverlap)
	assert.Equal(t, 10*time.Minute, cfg.QueryCacheTTL)
	assert.Equal(t, 150, cfg.RenderDPI)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("GENERATION_BACKEND", "GEMINI")
	t.Setenv("GEMINI_API_KEY", "key")
	t.Setenv("IMAGE_BATCH_SIZE", "3")
	t.Setenv("MAX_CONCURRENT_BATCHES", "0")
	t.Setenv("GENERATE_TIMEOUT", "30s")
	t.Setenv("KNOWLEDGE_DB_DRIVER", "pgx")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, BackendGemini, cfg.GenerationBackend)
	assert.Equal(t, 3, cfg.Pipeline.ImageBatchSize)
	assert.Zero(t, cfg.Pipeline.MaxConcurrentBatches)
	assert.Equal(t, 30*time.Second, cfg.Pipeline.GenerateTimeout)
	assert.Equal(t, "pgx", cfg.KnowledgeDBDriver)
	assert.True(t, cfg.KnowledgeEnabled())
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"vertex without project", map[string]string{"GENERATION_BACKEND": "vertex", "PROJECT_ID": ""}},
		{"gemini without key", map[string]string{"GENERATION_BACKEND": "gemini", "GEMINI_API_KEY": ""}},
		{"unknown backend", map[string]string{"GENERATION_BACKEND": "openai"}},
		{"bad integer", map[string]string{"GENERATION_BACKEND": "gemini", "GEMINI_API_KEY": "k", "IMAGE_BATCH_SIZE": "five"}},
		{"overlap too large", map[string]string{"GENERATION_BACKEND": "gemini", "GEMINI_API_KEY": "k", "TEXT_CHUNK_SIZE": "100", "TEXT_CHUNK_OVERLAP": "100"}},
		{"unknown driver", map[string]string{"GENERATION_BACKEND": "gemini", "GEMINI_API_KEY": "k", "KNOWLEDGE_DB_DRIVER": "mysql"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
