package extract

import (
	"context"
	"encoding/base64"
	"errors"
	"image"
	"strings"
	"testing"

	"github.com/Lllllllleong/flashdeck/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDocument struct {
	pages    []string
	rendered int
}

func (d *fakeDocument) NumPage() int                  { return len(d.pages) }
func (d *fakeDocument) Text(page int) (string, error) { return d.pages[page], nil }
func (d *fakeDocument) Close() error                  { return nil }

func (d *fakeDocument) ImageDPI(int, float64) (*image.RGBA, error) {
	d.rendered++
	return image.NewRGBA(image.Rect(0, 0, 4, 4)), nil
}

// newFakeExtractor serves each file's Data, split on "|", as its page texts.
func newFakeExtractor(t *testing.T) (*Extractor, map[string]*fakeDocument) {
	t.Helper()
	docs := make(map[string]*fakeDocument)
	e := NewExtractor(72, nil)
	e.prepare = func(inPath, outPath string) (int, error) {
		if err := copyFile(inPath, outPath); err != nil {
			return 0, err
		}
		data, err := readFile(outPath)
		return strings.Count(data, "|") + 1, err
	}
	e.open = func(path string) (document, error) {
		data, err := readFile(path)
		if err != nil {
			return nil, err
		}
		if data == "corrupt" {
			return nil, errors.New("not a PDF")
		}
		d := &fakeDocument{pages: strings.Split(data, "|")}
		docs[data] = d
		return d, nil
	}
	return e, docs
}

var digitalPage = strings.Repeat("Osmosis is the diffusion of water. ", 3)

func TestIsScanned(t *testing.T) {
	assert.True(t, IsScanned(nil))
	assert.True(t, IsScanned([]string{"", "  \n", "page 3"}))
	assert.False(t, IsScanned([]string{digitalPage}))
	// Only the first three pages are sampled.
	assert.True(t, IsScanned([]string{"", "", "", digitalPage}))
	assert.False(t, IsScanned([]string{strings.Repeat("a", 20), strings.Repeat("b", 20), strings.Repeat("c", 10)}))
	// Interior whitespace counts; only the ends of the sample are trimmed.
	assert.False(t, IsScanned([]string{strings.Repeat("a", 10) + strings.Repeat(" ", 40) + "b"}))
	assert.True(t, IsScanned([]string{strings.Repeat(" ", 60) + "abc" + strings.Repeat("\n", 60)}))
	assert.False(t, IsScanned([]string{strings.Repeat("é", 50)}))
	assert.True(t, IsScanned([]string{strings.Repeat("é", 49)}))
}

func TestJoinText(t *testing.T) {
	assert.Equal(t, "p1\np2\nq1", JoinText([][]string{{"p1", "p2"}, {"q1"}}))
	assert.Equal(t, "", JoinText(nil))
}

func TestExtract_DigitalFilesProduceText(t *testing.T) {
	e, docs := newFakeExtractor(t)

	content, err := e.Extract(context.Background(), []File{
		{Name: "a.pdf", Data: []byte(digitalPage + "|second page")},
		{Name: "b.pdf", Data: []byte(digitalPage)},
	})

	require.NoError(t, err)
	assert.Equal(t, models.ModeText, content.Mode)
	assert.Equal(t, digitalPage+"\nsecond page\n"+digitalPage, content.Text)
	for _, d := range docs {
		assert.Zero(t, d.rendered)
	}
}

func TestExtract_AnyScannedFileRendersEveryPage(t *testing.T) {
	e, _ := newFakeExtractor(t)

	content, err := e.Extract(context.Background(), []File{
		{Name: "digital.pdf", Data: []byte(digitalPage + "|two|three")},
		{Name: "scan.pdf", Data: []byte("|")},
	})

	require.NoError(t, err)
	assert.Equal(t, models.ModeImage, content.Mode)
	require.Len(t, content.Images, 5)
	for _, img := range content.Images {
		data, err := base64.StdEncoding.DecodeString(img)
		require.NoError(t, err)
		// JPEG start-of-image marker.
		assert.Equal(t, []byte{0xFF, 0xD8}, data[:2])
	}
}

func TestExtract_Errors(t *testing.T) {
	e, _ := newFakeExtractor(t)

	_, err := e.Extract(context.Background(), nil)
	assert.ErrorIs(t, err, ErrSourceEmpty)

	_, err = e.Extract(context.Background(), []File{{Name: "bad.pdf", Data: []byte("corrupt")}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidSource)
	assert.NotErrorIs(t, err, ErrSourceEmpty)
	assert.ErrorContains(t, err, "bad.pdf")

	e.prepare = func(string, string) (int, error) { return 0, errors.New("xref table broken") }
	_, err = e.Extract(context.Background(), []File{{Name: "broken.pdf", Data: []byte("x")}})
	assert.ErrorIs(t, err, ErrInvalidSource)
	assert.ErrorContains(t, err, "xref table broken")
}

func TestExtract_CancelledWhileRendering(t *testing.T) {
	e, _ := newFakeExtractor(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Extract(ctx, []File{{Name: "scan.pdf", Data: []byte("||")}})
	assert.ErrorIs(t, err, context.Canceled)
}
