package commands

import (
	"github.com/Lllllllleong/flashdeck/internal/models"
	"github.com/Lllllllleong/flashdeck/internal/services"
	"github.com/spf13/cobra"
)

var decksLimit int

var decksCmd = &cobra.Command{
	Use:   "decks",
	Short: "List recently generated decks",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withApp(ctx, func(app *services.App) error {
			decks, err := app.Decks.List(ctx, decksLimit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), models.ListDecksResponse{Decks: decks})
		})
	},
}

func init() {
	decksCmd.Flags().IntVarP(&decksLimit, "limit", "n", 20, "maximum number of decks to list")
	rootCmd.AddCommand(decksCmd)
}
