package commands

import (
	"context"
	"realitease/internal/failures"
	"realitease/internal/store"
	"realitease/internal/wwhl"

	"github.com/spf13/cobra"
)

var (
	wwhlSeasons *int
	wwhlShowID  *string
)

func init() {
	wwhlSeasons = wwhlCmd.Flags().Int("seasons", 0, "Check seasons 1 through this one (default from config, 22).")
	wwhlShowID = wwhlCmd.Flags().String("show-id", "", "The TMDb id of the show (default from config, 22980).")
	rootCmd.AddCommand(wwhlCmd)
}

var wwhlCmd = &cobra.Command{
	Use:   "wwhl [--seasons <n>] [--show-id <tmdb id>]",
	Short: "Appends the missing Watch What Happens Live episodes and their guests to WWHLinfo.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		if *wwhlSeasons > 0 {
			cfg.WWHL.Seasons = *wwhlSeasons
		}
		if *wwhlShowID != "" {
			cfg.WWHL.ShowID = *wwhlShowID
		}

		sheet := openSpreadsheet(cmd.Context(), cfg)
		fetcher := wwhl.NewFetcher(sheet, newTMDb(cfg), tel, timeAPI)
		runJob(cmd, cfg, "wwhl", func(ctx context.Context, failed *failures.Log) (store.Counts, error) {
			return fetcher.Run(ctx, wwhl.Options{
				ShowID:      cfg.WWHL.ShowID,
				Seasons:     cfg.WWHL.Seasons,
				AppendChunk: cfg.WWHL.AppendChunk,
				AppendPause: cfg.WWHL.AppendPause(),
			}, failed)
		})
	},
}
