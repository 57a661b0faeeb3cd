package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Lllllllleong/flashdeck/internal/httpapi"
	"github.com/Lllllllleong/flashdeck/internal/services"
	"github.com/spf13/cobra"
)

var (
	servePort    string
	serveTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the deck API as a local HTTP server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "port to listen on (defaults to PORT)")
	serveCmd.Flags().DurationVar(&serveTimeout, "request-timeout", 10*time.Minute, "per-request timeout, 0 for none")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return withApp(ctx, func(app *services.App) error {
		port := servePort
		if port == "" {
			port = app.Config.Port
		}
		srv := &http.Server{
			Addr:              ":" + port,
			Handler:           httpapi.NewRouter(httpapi.NewAppHandler(app), serveTimeout),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			slog.Info("Starting FlashDeck server.", "addr", srv.Addr)
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server failed: %w", err)
			}
			return nil
		case <-ctx.Done():
		}

		slog.Info("Shutting down FlashDeck server.")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
