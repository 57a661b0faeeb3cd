package models

// These structs define the JSON payloads for HTTP requests and responses
// between the web client and the deck functions.

// GenerateDeckResponse is the output of the deck-generator function.
type GenerateDeckResponse struct {
	Status        string   `json:"status"`
	DeckID        string   `json:"deck_id"`
	DeckName      string   `json:"deck_name"`
	Cards         []Card   `json:"cards"`
	Flowcharts    []string `json:"flowcharts"`
	DownloadPath  string   `json:"download_path"`
	TotalBatches  int      `json:"total_batches"`
	FailedBatches int      `json:"failed_batches"`
}

// ChatRequest is the input for the deck-chat function.
type ChatRequest struct {
	Message string `json:"message"`
	DeckID  string `json:"deck_id"`
}

// ChatSource is one retrieved passage used to answer a chat message.
type ChatSource struct {
	Content  string  `json:"content"`
	Source   string  `json:"source"`
	Sequence int     `json:"sequence"`
	Score    float32 `json:"score"`
}

// ChatResponse is the output of the deck-chat function.
type ChatResponse struct {
	Answer  string       `json:"answer"`
	Sources []ChatSource `json:"sources"`
}

// ListDecksResponse is the output of the deck listing endpoint.
type ListDecksResponse struct {
	Decks []Deck `json:"decks"`
}
