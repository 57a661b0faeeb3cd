package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Lllllllleong/flashdeck/internal/gcp"
	"github.com/Lllllllleong/flashdeck/internal/models"
)

// MemoryDeckStore is a DeckRecorder for local runs without Firestore.
type MemoryDeckStore struct {
	mu    sync.Mutex
	decks map[string]models.Deck
}

func NewMemoryDeckStore() *MemoryDeckStore {
	return &MemoryDeckStore{decks: make(map[string]models.Deck)}
}

func (s *MemoryDeckStore) Create(_ context.Context, d *models.Deck) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.decks[d.DeckID]; exists {
		return fmt.Errorf("deck %s already exists", d.DeckID)
	}
	s.decks[d.DeckID] = *d
	return nil
}

func (s *MemoryDeckStore) UpdateStatus(_ context.Context, deckID, status, errDetails string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.decks[deckID]
	if !ok {
		return fmt.Errorf("%s: %w", deckID, gcp.ErrDeckNotFound)
	}
	d.Status = status
	if errDetails != "" {
		d.ErrorDetails = errDetails
	}
	s.decks[deckID] = d
	return nil
}

func (s *MemoryDeckStore) Complete(_ context.Context, d *models.Deck) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.decks[d.DeckID]; !ok {
		return fmt.Errorf("%s: %w", d.DeckID, gcp.ErrDeckNotFound)
	}
	completed := *d
	completed.Status = models.StatusCompleted
	completed.CardCount = len(d.Cards)
	s.decks[d.DeckID] = completed
	return nil
}

func (s *MemoryDeckStore) FindCompletedByHash(_ context.Context, fileHash string) (*models.Deck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.decks {
		if d.FileHash == fileHash && d.Status == models.StatusCompleted {
			return &d, nil
		}
	}
	return nil, nil
}

func (s *MemoryDeckStore) Get(_ context.Context, deckID string) (*models.Deck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.decks[deckID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", deckID, gcp.ErrDeckNotFound)
	}
	return &d, nil
}

// List returns up to limit decks, newest first.
func (s *MemoryDeckStore) List(_ context.Context, limit int) ([]models.Deck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	decks := make([]models.Deck, 0, len(s.decks))
	for _, d := range s.decks {
		decks = append(decks, d)
	}
	sort.Slice(decks, func(i, j int) bool {
		return decks[i].CreatedAt.After(decks[j].CreatedAt)
	})
	if limit > 0 && len(decks) > limit {
		decks = decks[:limit]
	}
	return decks, nil
}
