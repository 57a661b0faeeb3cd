package models

import (
	"encoding/json"
	"strings"
)

// Card is a single question/answer study card.
// Two cards with the same trimmed question are the same logical card.
type Card struct {
	Question string `json:"q" firestore:"q"`
	Answer   string `json:"a" firestore:"a"`
	Topic    string `json:"topic,omitempty" firestore:"topic,omitempty"`
}

// Key returns the deduplication identity of the card.
func (c Card) Key() string {
	return strings.TrimSpace(c.Question)
}

// Models are inconsistent about key names, so every alias seen in practice is accepted here.
var (
	questionKeys = []string{"q", "Q", "question", "Question", "front", "Front"}
	answerKeys   = []string{"a", "A", "answer", "Answer", "back", "Back"}
	topicKeys    = []string{"topic", "Topic", "category", "Category"}
)

// UnmarshalJSON normalizes the card shapes returned by the model into a Card.
// Non-string values for a field are ignored.
func (c *Card) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c.Question = firstString(raw, questionKeys)
	c.Answer = firstString(raw, answerKeys)
	c.Topic = firstString(raw, topicKeys)
	return nil
}

func firstString(raw map[string]json.RawMessage, keys []string) string {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil && s != "" {
			return s
		}
	}
	return ""
}

// PartialResult is the isolated output of one generation worker.
// A failed worker returns the zero value.
type PartialResult struct {
	Cards         []Card `json:"cards"`
	Flowchart     string `json:"flowchart,omitempty"`
	Transcription string `json:"transcription,omitempty"`
}

// IsEmpty reports whether the result carries nothing.
func (p PartialResult) IsEmpty() bool {
	return len(p.Cards) == 0 && p.Flowchart == "" && p.Transcription == ""
}

// DeckResult is the merged output of one generation request.
type DeckResult struct {
	DeckID        string   `json:"deckId" firestore:"-"`
	Cards         []Card   `json:"cards" firestore:"cards"`
	Flowcharts    []string `json:"flowcharts" firestore:"flowcharts"`
	TotalBatches  int      `json:"totalBatches" firestore:"totalBatches"`
	FailedBatches int      `json:"failedBatches" firestore:"failedBatches"`
}
