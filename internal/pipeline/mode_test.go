package pipeline

import (
	"strings"
	"testing"

	"github.com/Lllllllleong/flashdeck/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestDetectMode(t *testing.T) {
	tests := []struct {
		name string
		item string
		want models.Mode
	}{
		{"empty", "", models.ModeText},
		{"short token", "abc", models.ModeText},
		{"exactly threshold", strings.Repeat("A", 100), models.ModeText},
		{"base64 payload", fakeImages(1)[0], models.ModeImage},
		{"prose", "Osmosis is the movement of water " + strings.Repeat("across membranes ", 10), models.ModeText},
		{"whitespace after sniff window", strings.Repeat("A", 100) + " tail", models.ModeImage},
		{"newline inside sniff window", strings.Repeat("A", 50) + "\n" + strings.Repeat("A", 100), models.ModeText},
		{"multi-byte prose", strings.Repeat("细", 50) + " " + strings.Repeat("胞", 60), models.ModeText},
		{"multi-byte at threshold", strings.Repeat("é", 100), models.ModeText},
		{"multi-byte space after sniff window", strings.Repeat("é", 100) + " tail", models.ModeImage},
		// Known misclassification: long URLs look like payloads.
		{"long url", "https://example.com/" + strings.Repeat("path/", 30), models.ModeImage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectMode(tt.item))
		})
	}
}
