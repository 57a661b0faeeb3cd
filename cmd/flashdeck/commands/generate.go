package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Lllllllleong/flashdeck/internal/extract"
	"github.com/Lllllllleong/flashdeck/internal/services"
	"github.com/spf13/cobra"
)

var generateOutput string

var generateCmd = &cobra.Command{
	Use:   "generate <file.pdf> [more.pdf...]",
	Short: "Generate a flashcard deck from one or more PDFs",
	Long: `Generate extracts the uploaded PDFs, runs card generation and writes the deck
result as JSON. The Anki package is written to DECK_OUTPUT_DIR or uploaded to DECK_BUCKET.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&generateOutput, "output", "o", "", "write the JSON result to this file instead of stdout")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	files := make([]extract.File, 0, len(args))
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		files = append(files, extract.File{Name: filepath.Base(path), Data: data})
	}

	ctx := cmd.Context()
	return withApp(ctx, func(app *services.App) error {
		res, err := app.Generator.Process(ctx, files)
		if err != nil {
			return err
		}
		w, closeOut, err := outputWriter(cmd, generateOutput)
		if err != nil {
			return err
		}
		if err := printJSON(w, res); err != nil {
			closeOut()
			return err
		}
		return closeOut()
	})
}

