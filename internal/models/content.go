package models

// Mode is the modality of a unit of content.
type Mode string

const (
	ModeText  Mode = "text"
	ModeImage Mode = "image"
)

// Content is the extracted form of an uploaded document: either one text blob
// or an ordered list of base64-encoded page images, selected by Mode.
type Content struct {
	Mode   Mode
	Text   string
	Images []string
}

// TextContent wraps a document text.
func TextContent(text string) Content {
	return Content{Mode: ModeText, Text: text}
}

// ImageContent wraps an ordered list of base64-encoded page images.
func ImageContent(images []string) Content {
	return Content{Mode: ModeImage, Images: images}
}

// IsEmpty reports whether there is nothing to partition.
func (c Content) IsEmpty() bool {
	if c.Mode == ModeImage {
		return len(c.Images) == 0
	}
	return c.Text == ""
}

// Batch is one unit of partitioned content handed to exactly one worker.
// Items are all images, or a single text chunk.
type Batch struct {
	Index int
	Mode  Mode
	Items []string
}
