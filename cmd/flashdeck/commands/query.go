package commands

import (
	"fmt"

	"github.com/Lllllllleong/flashdeck/internal/models"
	"github.com/Lllllllleong/flashdeck/internal/services"
	"github.com/spf13/cobra"
)

var (
	queryDeckID   string
	queryQuestion string
	queryJSON     bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Ask a question about indexed study material",
	Long:  "Query answers a question from the knowledge indexed while generating decks. Requires GEMINI_API_KEY.",
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().StringVarP(&queryDeckID, "deck", "d", "", "restrict retrieval to this deck ID")
	queryCmd.Flags().StringVarP(&queryQuestion, "question", "q", "", "question to ask (required)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "print the full response as JSON")
	queryCmd.MarkFlagRequired("question")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	return withApp(ctx, func(app *services.App) error {
		res, err := app.Chat.Process(ctx, &models.ChatRequest{Message: queryQuestion, DeckID: queryDeckID})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if queryJSON {
			return printJSON(out, res)
		}
		fmt.Fprintln(out, res.Answer)
		if len(res.Sources) > 0 {
			fmt.Fprintln(out, "\nSources:")
			for i, s := range res.Sources {
				fmt.Fprintf(out, "  [%d] %s #%d (score %.3f)\n", i+1, s.Source, s.Sequence, s.Score)
			}
		}
		return nil
	})
}
