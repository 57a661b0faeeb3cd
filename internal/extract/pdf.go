// Package extract turns uploaded PDFs into pipeline content: the document text,
// or rendered page images when any upload is a scan.
package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/Lllllllleong/flashdeck/internal/models"
	"github.com/gen2brain/go-fitz"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var (
	// ErrSourceEmpty is returned when the uploads contain nothing to generate cards from.
	ErrSourceEmpty = errors.New("no usable content in source")
	// ErrInvalidSource is returned when an upload cannot be read as a PDF.
	ErrInvalidSource = errors.New("upload is not a readable PDF")
)

const (
	// scanSamplePages is how many leading pages are sampled for a text layer.
	scanSamplePages = 3
	// scanMinChars is the least trimmed sample length, in characters, for a file to count as digital.
	scanMinChars = 50

	DefaultDPI         = 150
	defaultJPEGQuality = 85
)

// File is one uploaded document.
type File struct {
	Name string
	Data []byte
}

// document is the subset of a rendered PDF the extractor reads.
type document interface {
	NumPage() int
	Text(page int) (string, error)
	ImageDPI(page int, dpi float64) (*image.RGBA, error)
	Close() error
}

// Extractor produces Content from PDF uploads.
type Extractor struct {
	DPI         int
	JPEGQuality int
	Logger      *slog.Logger

	// prepare validates and optimizes a PDF on disk, returning the page count.
	prepare func(inPath, outPath string) (int, error)
	open    func(path string) (document, error)
}

// NewExtractor returns an extractor that renders scanned pages at dpi.
func NewExtractor(dpi int, logger *slog.Logger) *Extractor {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		DPI:         dpi,
		JPEGQuality: defaultJPEGQuality,
		Logger:      logger,
		prepare:     preparePDF,
		open:        openFitz,
	}
}

type openedFile struct {
	name  string
	doc   document
	texts []string
}

// Extract reads every file. If all of them carry a text layer the result is
// text content, files and pages joined by newlines. Otherwise every page of
// every file is rendered and the result is image content.
func (e *Extractor) Extract(ctx context.Context, files []File) (models.Content, error) {
	if len(files) == 0 {
		return models.Content{}, fmt.Errorf("no files uploaded: %w", ErrSourceEmpty)
	}

	tempDir, err := os.MkdirTemp("", "flashdeck-extract-*")
	if err != nil {
		return models.Content{}, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	opened := make([]openedFile, 0, len(files))
	defer func() {
		for _, f := range opened {
			f.doc.Close()
		}
	}()

	scanned := false
	for i, f := range files {
		logCtx := e.Logger.With("filename", f.Name)
		of, err := e.openFile(tempDir, i, f)
		if err != nil {
			logCtx.Error("Failed to open upload", "error", err)
			return models.Content{}, err
		}
		opened = append(opened, of)
		if IsScanned(of.texts) {
			logCtx.Info("Upload has no usable text layer. Pages will be rendered.", "pageCount", len(of.texts))
			scanned = true
		}
	}

	if scanned {
		images, err := e.renderAll(ctx, opened)
		if err != nil {
			return models.Content{}, err
		}
		if len(images) == 0 {
			return models.Content{}, ErrSourceEmpty
		}
		return models.ImageContent(images), nil
	}

	pages := make([][]string, len(opened))
	for i, f := range opened {
		pages[i] = f.texts
	}
	text := JoinText(pages)
	if strings.TrimSpace(text) == "" {
		return models.Content{}, ErrSourceEmpty
	}
	return models.TextContent(text), nil
}

func (e *Extractor) openFile(tempDir string, i int, f File) (openedFile, error) {
	sourcePath := filepath.Join(tempDir, fmt.Sprintf("source_%03d.pdf", i))
	if err := os.WriteFile(sourcePath, f.Data, 0o600); err != nil {
		return openedFile{}, fmt.Errorf("failed to write %s to temp file: %w", f.Name, err)
	}
	optimizedPath := filepath.Join(tempDir, fmt.Sprintf("optimized_%03d.pdf", i))
	pageCount, err := e.prepare(sourcePath, optimizedPath)
	if err != nil {
		return openedFile{}, fmt.Errorf("failed to validate/optimize PDF %s: %w: %w", f.Name, ErrInvalidSource, err)
	}

	doc, err := e.open(optimizedPath)
	if err != nil {
		return openedFile{}, fmt.Errorf("failed to open PDF %s: %w: %w", f.Name, ErrInvalidSource, err)
	}
	if n := doc.NumPage(); n != pageCount {
		e.Logger.Warn("Page count mismatch between validator and renderer", "filename", f.Name, "validated", pageCount, "rendered", n)
	}

	texts := make([]string, doc.NumPage())
	for p := range texts {
		t, err := doc.Text(p)
		if err != nil {
			doc.Close()
			return openedFile{}, fmt.Errorf("failed to read text of %s page %d: %w: %w", f.Name, p+1, ErrInvalidSource, err)
		}
		texts[p] = t
	}
	return openedFile{name: f.Name, doc: doc, texts: texts}, nil
}

func (e *Extractor) renderAll(ctx context.Context, opened []openedFile) ([]string, error) {
	var images []string
	for _, f := range opened {
		for p := 0; p < f.doc.NumPage(); p++ {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
			img, err := f.doc.ImageDPI(p, float64(e.DPI))
			if err != nil {
				return nil, fmt.Errorf("failed to render %s page %d: %w", f.name, p+1, err)
			}
			var buf bytes.Buffer
			if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: e.JPEGQuality}); err != nil {
				return nil, fmt.Errorf("failed to encode %s page %d as JPEG: %w", f.name, p+1, err)
			}
			images = append(images, base64.StdEncoding.EncodeToString(buf.Bytes()))
		}
	}
	e.Logger.Info("Rendered page images.", "imageCount", len(images), "dpi", e.DPI)
	return images, nil
}

// IsScanned reports whether the leading pages, concatenated and trimmed, hold
// fewer than scanMinChars characters.
func IsScanned(pageTexts []string) bool {
	sample := strings.Join(pageTexts[:min(scanSamplePages, len(pageTexts))], "")
	return utf8.RuneCountInString(strings.TrimSpace(sample)) < scanMinChars
}

// JoinText joins pages with newlines within a file and between files.
func JoinText(files [][]string) string {
	joined := make([]string, len(files))
	for i, pages := range files {
		joined[i] = strings.Join(pages, "\n")
	}
	return strings.Join(joined, "\n")
}

func preparePDF(inPath, outPath string) (int, error) {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	if err := api.OptimizeFile(inPath, outPath, cfg); err != nil {
		return 0, err
	}
	return api.PageCountFile(outPath)
}

func openFitz(path string) (document, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, err
	}
	return doc, nil
}
