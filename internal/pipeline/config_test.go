package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero image batch", func(c *Config) { c.ImageBatchSize = 0 }},
		{"zero chunk size", func(c *Config) { c.TextChunkSize = 0 }},
		{"overlap equals window", func(c *Config) { c.TextChunkOverlap = c.TextChunkSize }},
		{"negative overlap", func(c *Config) { c.TextChunkOverlap = -1 }},
		{"negative concurrency", func(c *Config) { c.MaxConcurrentBatches = -1 }},
		{"no attempts", func(c *Config) { c.GenerateMaxAttempts = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
