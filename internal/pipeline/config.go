package pipeline

import (
	"fmt"
	"time"
)

// Defaults for the partitioning and generation stages.
const (
	DefaultImageBatchSize       = 5
	DefaultTextChunkSize        = 4000
	DefaultTextChunkOverlap     = 200
	DefaultMaxConcurrentBatches = 10
	DefaultGenerateTimeout      = 2 * time.Minute
	DefaultGenerateMaxAttempts  = 1
)

// Config holds tuning for one pipeline instance.
type Config struct {
	ImageBatchSize   int
	TextChunkSize    int
	TextChunkOverlap int
	// MaxConcurrentBatches caps worker fan-out. Zero means one goroutine per batch with no cap.
	MaxConcurrentBatches int
	// GenerateTimeout bounds each backend call. Zero means no deadline beyond the caller's context.
	GenerateTimeout     time.Duration
	GenerateMaxAttempts int
	RetryBackoff        time.Duration
}

// DefaultConfig returns the standard pipeline configuration.
func DefaultConfig() Config {
	return Config{
		ImageBatchSize:       DefaultImageBatchSize,
		TextChunkSize:        DefaultTextChunkSize,
		TextChunkOverlap:     DefaultTextChunkOverlap,
		MaxConcurrentBatches: DefaultMaxConcurrentBatches,
		GenerateTimeout:      DefaultGenerateTimeout,
		GenerateMaxAttempts:  DefaultGenerateMaxAttempts,
		RetryBackoff:         time.Second,
	}
}

// Validate rejects configurations the partitioner cannot honor.
func (c Config) Validate() error {
	if c.ImageBatchSize <= 0 {
		return fmt.Errorf("image batch size must be positive, got %d", c.ImageBatchSize)
	}
	if c.TextChunkSize <= 0 {
		return fmt.Errorf("text chunk size must be positive, got %d", c.TextChunkSize)
	}
	if c.TextChunkOverlap < 0 || c.TextChunkOverlap >= c.TextChunkSize {
		return fmt.Errorf("text chunk overlap must be in [0, %d), got %d", c.TextChunkSize, c.TextChunkOverlap)
	}
	if c.MaxConcurrentBatches < 0 {
		return fmt.Errorf("max concurrent batches must not be negative, got %d", c.MaxConcurrentBatches)
	}
	if c.GenerateMaxAttempts < 1 {
		return fmt.Errorf("generate max attempts must be at least 1, got %d", c.GenerateMaxAttempts)
	}
	return nil
}
