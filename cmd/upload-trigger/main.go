package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/flashdeck/internal/services"
	cloudevents "github.com/cloudevents/sdk-go/v2"
)

var (
	triggerInstance *services.UploadTriggerFunction
	once            sync.Once
	initErr         error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Register the CloudEvent function. The framework will handle routing the event here.
	functions.CloudEvent("GenerateFromUpload", generateFromUpload)
}

// main is required by the Go Functions Framework.
func main() {}

// generateFromUpload runs deck generation for a PDF finalized in the upload bucket.
func generateFromUpload(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		ctx := context.Background()
		app, err := services.NewFromEnv(ctx)
		if err != nil {
			initErr = err
			return
		}
		triggerInstance, initErr = app.NewUploadTrigger(ctx)
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var gcsEvent services.GCSEvent
	if err := json.Unmarshal(e.Data(), &gcsEvent); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	// Returning the error marks the invocation as failed.
	return triggerInstance.Process(ctx, gcsEvent)
}
