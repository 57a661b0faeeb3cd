package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/flashdeck/internal/httpapi"
	"github.com/Lllllllleong/flashdeck/internal/services"
)

var (
	handler *httpapi.Handler
	once    sync.Once
	initErr error
)

func init() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.HTTP("HandleChat", handleChat)
}

func main() {}

func handleChat(w http.ResponseWriter, r *http.Request) {
	once.Do(func() {
		var app *services.App
		app, initErr = services.NewFromEnv(context.Background())
		if initErr == nil {
			handler = httpapi.NewAppHandler(app)
		}
	})
	if initErr != nil {
		slog.Error("Critical: Chat initialization failed", "error", initErr)
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}

	httpapi.CORS([]string{"*"})(http.HandlerFunc(handler.Chat)).ServeHTTP(w, r)
}
