package gcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/Lllllllleong/flashdeck/internal/models"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrDeckNotFound is returned when no deck record exists for an ID.
var ErrDeckNotFound = errors.New("deck not found")

// NewFirestoreClient creates and returns a new Firestore client for the given project ID.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}

	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	return client, nil
}

// FirestoreDeckStore keeps one document per deck, keyed by deck ID.
type FirestoreDeckStore struct {
	client     *firestore.Client
	collection string
}

func NewFirestoreDeckStore(client *firestore.Client, collection string) *FirestoreDeckStore {
	return &FirestoreDeckStore{client: client, collection: collection}
}

func (s *FirestoreDeckStore) ref(deckID string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(deckID)
}

// Create writes the initial record. It fails if the deck ID is already taken.
func (s *FirestoreDeckStore) Create(ctx context.Context, deck *models.Deck) error {
	if deck.CreatedAt.IsZero() {
		deck.CreatedAt = time.Now()
	}
	if _, err := s.ref(deck.DeckID).Create(ctx, deck); err != nil {
		return fmt.Errorf("failed to create deck record: %w", err)
	}
	return nil
}

// UpdateStatus sets the status and, when non-empty, the error details.
func (s *FirestoreDeckStore) UpdateStatus(ctx context.Context, deckID, status, errDetails string) error {
	updates := []firestore.Update{
		{Path: "status", Value: status},
	}
	if errDetails != "" {
		updates = append(updates, firestore.Update{Path: "errorDetails", Value: errDetails})
	}
	if _, err := s.ref(deckID).Update(ctx, updates); err != nil {
		return fmt.Errorf("failed to update deck status to %s: %w", status, err)
	}
	return nil
}

// Complete records the generated deck and marks it COMPLETED.
func (s *FirestoreDeckStore) Complete(ctx context.Context, deck *models.Deck) error {
	updates := []firestore.Update{
		{Path: "status", Value: models.StatusCompleted},
		{Path: "deckName", Value: deck.DeckName},
		{Path: "mode", Value: string(deck.Mode)},
		{Path: "pageCount", Value: deck.PageCount},
		{Path: "cardCount", Value: len(deck.Cards)},
		{Path: "totalBatches", Value: deck.TotalBatches},
		{Path: "failedBatches", Value: deck.FailedBatches},
		{Path: "downloadPath", Value: deck.DownloadPath},
		{Path: "cards", Value: deck.Cards},
		{Path: "flowcharts", Value: deck.Flowcharts},
	}
	if _, err := s.ref(deck.DeckID).Update(ctx, updates); err != nil {
		return fmt.Errorf("failed to record completed deck: %w", err)
	}
	return nil
}

// FindCompletedByHash returns a completed deck generated from identical input, or nil.
func (s *FirestoreDeckStore) FindCompletedByHash(ctx context.Context, fileHash string) (*models.Deck, error) {
	docs, err := s.client.Collection(s.collection).
		Where("fileHash", "==", fileHash).
		Where("status", "==", models.StatusCompleted).
		Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query for duplicates: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return decodeDeck(docs[0])
}

// Get returns the deck record for deckID.
func (s *FirestoreDeckStore) Get(ctx context.Context, deckID string) (*models.Deck, error) {
	snap, err := s.ref(deckID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, fmt.Errorf("%s: %w", deckID, ErrDeckNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read deck record: %w", err)
	}
	return decodeDeck(snap)
}

// List returns up to limit decks, newest first.
func (s *FirestoreDeckStore) List(ctx context.Context, limit int) ([]models.Deck, error) {
	iter := s.client.Collection(s.collection).OrderBy("createdAt", firestore.Desc).Limit(limit).Documents(ctx)
	defer iter.Stop()

	decks := make([]models.Deck, 0)
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list decks: %w", err)
		}
		deck, err := decodeDeck(snap)
		if err != nil {
			return nil, err
		}
		decks = append(decks, *deck)
	}
	return decks, nil
}

func decodeDeck(snap *firestore.DocumentSnapshot) (*models.Deck, error) {
	var deck models.Deck
	if err := snap.DataTo(&deck); err != nil {
		return nil, fmt.Errorf("failed to decode deck %s: %w", snap.Ref.ID, err)
	}
	deck.DeckID = snap.Ref.ID
	return &deck, nil
}
