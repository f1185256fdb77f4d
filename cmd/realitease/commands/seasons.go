package commands

import (
	"context"
	"realitease/internal/failures"
	"realitease/internal/scrapers/imdb"
	"realitease/internal/seasons"
	"realitease/internal/store"
	"realitease/internal/worker"

	"github.com/spf13/cobra"
)

var (
	seasonsWorkers   *int
	seasonsBatchSize *int
	seasonsLimit     *int
	seasonsHeadful   *bool
)

func init() {
	seasonsWorkers = seasonsCmd.Flags().Int("workers", 0, "The amount of browsers run in parallel (default from config, 8).")
	seasonsBatchSize = seasonsCmd.Flags().Int("batch-size", 0, "The amount of row updates per sheet write (default from config, 50).")
	seasonsLimit = seasonsCmd.Flags().Int("limit", 0, "Process at most this many rows, 0 means all of them.")
	seasonsHeadful = seasonsCmd.Flags().Bool("headful", false, "Show the browser windows.")
	rootCmd.AddCommand(seasonsCmd)
}

var seasonsCmd = &cobra.Command{
	Use:   "seasons [--workers <n>] [--limit <n>]",
	Short: "Fills TotalEpisodes and Seasons of CastInfo from the IMDb full credits pages.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		if *seasonsWorkers > 0 {
			cfg.Seasons.Workers = *seasonsWorkers
		}
		if *seasonsBatchSize > 0 {
			cfg.Seasons.BatchSize = *seasonsBatchSize
		}
		if *seasonsHeadful {
			cfg.Seasons.Headful = true
		}

		sheet := openSpreadsheet(cmd.Context(), cfg)
		cron := newCron()
		defer cron.Stop()

		newPage := func(ctx context.Context, workerID int) (imdb.Page, error) {
			return imdb.NewBrowser(imdb.BrowserOptions{
				WorkerID:        workerID,
				Headful:         cfg.Seasons.Headful,
				ExecPath:        cfg.Seasons.ChromePath,
				PageLoadTimeout: cfg.Seasons.PageLoadTimeout(),
				ModalTimeout:    cfg.Seasons.ModalTimeout(),
			}, tel, timeAPI)
		}
		job := seasons.NewJob(sheet, newPage, tel, timeAPI, cron)

		runJob(cmd, cfg, "seasons", func(ctx context.Context, failed *failures.Log) (store.Counts, error) {
			return job.Run(ctx, seasons.Options{
				BatchSize:     cfg.Seasons.BatchSize,
				FlushInterval: cfg.Seasons.FlushInterval(),
				Limit:         *seasonsLimit,
				Pool: worker.Options{
					Workers:       cfg.Seasons.Workers,
					MemberTimeout: cfg.Seasons.MemberTimeout(),
				},
			}, failed)
		})
	},
}
