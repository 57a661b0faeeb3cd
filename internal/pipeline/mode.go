package pipeline

import (
	"unicode"
	"unicode/utf8"

	"github.com/Lllllllleong/flashdeck/internal/models"
)

// imageSniffLength is both the minimum length of an image payload and the
// prefix that must be free of whitespace, counted in characters.
const imageSniffLength = 100

// DetectMode classifies a single item as an image payload or natural-language text.
// Base64 payloads are long and contain no whitespace; text almost always does.
// A long token without early whitespace (a URL, a hash) is misclassified as an image.
func DetectMode(item string) models.Mode {
	if utf8.RuneCountInString(item) <= imageSniffLength {
		return models.ModeText
	}
	n := 0
	for _, r := range item {
		if n == imageSniffLength {
			break
		}
		if unicode.IsSpace(r) {
			return models.ModeText
		}
		n++
	}
	return models.ModeImage
}
