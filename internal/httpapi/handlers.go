// Package httpapi exposes the deck services over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Lllllllleong/flashdeck/internal/extract"
	"github.com/Lllllllleong/flashdeck/internal/models"
	"github.com/Lllllllleong/flashdeck/internal/services"
)

const (
	maxUploadBytes   = 32 << 20
	defaultListLimit = 20
	maxListLimit     = 100
)

// DeckGenerator runs the full generation flow for uploaded files.
type DeckGenerator interface {
	Process(ctx context.Context, files []extract.File) (*models.GenerateDeckResponse, error)
}

// ChatService answers questions about indexed study material.
type ChatService interface {
	Process(ctx context.Context, req *models.ChatRequest) (*models.ChatResponse, error)
}

// DeckLister lists recent deck records.
type DeckLister interface {
	List(ctx context.Context, limit int) ([]models.Deck, error)
}

// Handler serves the deck endpoints.
type Handler struct {
	generator DeckGenerator
	chat      ChatService
	decks     DeckLister
	health    func(ctx context.Context) error
}

// NewHandler creates a handler. health may be nil.
func NewHandler(generator DeckGenerator, chat ChatService, decks DeckLister, health func(ctx context.Context) error) *Handler {
	return &Handler{generator: generator, chat: chat, decks: decks, health: health}
}

// NewAppHandler wires a handler onto a fully built app.
func NewAppHandler(app *services.App) *Handler {
	return NewHandler(app.Generator, app.Chat, app.Decks, app.Health)
}

// Generate handles POST /generate with one or more PDFs in the "files" form field.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		slog.Warn("Could not parse multipart form", "error", err)
		writeError(w, http.StatusBadRequest, "could not parse upload")
		return
	}
	files, err := readUploads(r)
	if err != nil {
		slog.Warn("Could not read uploaded files", "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.generator.Process(r.Context(), files)
	if err != nil {
		// Logged with context inside the generator.
		if services.IsSourceError(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "deck generation failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func readUploads(r *http.Request) ([]extract.File, error) {
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		return nil, errors.New("no files uploaded")
	}
	files := make([]extract.File, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", fh.Filename, err)
		}
		files = append(files, extract.File{Name: fh.Filename, Data: data})
	}
	return files, nil
}

// Chat handles POST /chat.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Could not decode request body", "error", err)
		writeError(w, http.StatusBadRequest, "could not parse JSON")
		return
	}

	res, err := h.chat.Process(r.Context(), &req)
	switch {
	case errors.Is(err, services.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrKnowledgeUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, "chat failed")
	default:
		writeJSON(w, http.StatusOK, res)
	}
}

// ListDecks handles GET /decks?limit=N.
func (h *Handler) ListDecks(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}

	decks, err := h.decks.List(r.Context(), limit)
	if err != nil {
		slog.Error("Failed to list decks", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list decks")
		return
	}
	if decks == nil {
		decks = []models.Deck{}
	}
	writeJSON(w, http.StatusOK, models.ListDecksResponse{Decks: decks})
}

// Healthz reports whether the knowledge store is reachable.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			slog.Warn("Health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
