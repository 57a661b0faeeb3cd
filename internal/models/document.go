package models

import "time"

// Deck status values stored on the deck record.
const (
	StatusValidating = "VALIDATING"
	StatusGenerating = "GENERATING"
	StatusPackaging  = "PACKAGING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// Deck represents the main record for a deck generation job in Firestore.
// It tracks the overall status and metadata of the request, and the final result once complete.
type Deck struct {
	DeckID           string    `firestore:"deckId,omitempty" json:"deckId"`
	FileHash         string    `firestore:"fileHash,omitempty" json:"fileHash"`
	OriginalFilename string    `firestore:"originalFilename,omitempty" json:"originalFilename"`
	DeckName         string    `firestore:"deckName,omitempty" json:"deckName"`
	Status           string    `firestore:"status,omitempty" json:"status"`
	ErrorDetails     string    `firestore:"errorDetails,omitempty" json:"errorDetails,omitempty"`
	Mode             Mode      `firestore:"mode,omitempty" json:"mode,omitempty"`
	PageCount        int       `firestore:"pageCount,omitempty" json:"pageCount,omitempty"`
	CardCount        int       `firestore:"cardCount,omitempty" json:"cardCount"`
	TotalBatches     int       `firestore:"totalBatches,omitempty" json:"totalBatches"`
	FailedBatches    int       `firestore:"failedBatches,omitempty" json:"failedBatches"`
	DownloadPath     string    `firestore:"downloadPath,omitempty" json:"downloadPath,omitempty"`
	Cards            []Card    `firestore:"cards,omitempty" json:"-"`
	Flowcharts       []string  `firestore:"flowcharts,omitempty" json:"-"`
	CreatedAt        time.Time `firestore:"createdAt,omitempty" json:"createdAt"`
}
