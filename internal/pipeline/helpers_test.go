package pipeline

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"sync"

	"github.com/Lllllllleong/flashdeck/internal/knowledge"
)

type generatorFunc func(ctx context.Context, prompt string, attachments [][]byte) (string, error)

func (f generatorFunc) Generate(ctx context.Context, prompt string, attachments [][]byte) (string, error) {
	return f(ctx, prompt, attachments)
}

type recordingIndexer struct {
	mu    sync.Mutex
	calls [][]knowledge.Document
	err   error
}

func (r *recordingIndexer) Index(_ context.Context, docs []knowledge.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, docs)
	return r.err
}

func (r *recordingIndexer) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

var errBackendDown = errors.New("backend unavailable")

// fakeImages returns n distinct base64 payloads long enough to be detected as images.
func fakeImages(n int) []string {
	images := make([]string, n)
	for i := range images {
		images[i] = base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{byte(i + 1)}, 120))
	}
	return images
}
