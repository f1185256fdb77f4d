package commands

import (
	"context"
	"realitease/internal/castbuild"
	"realitease/internal/failures"
	"realitease/internal/store"

	"github.com/spf13/cobra"
)

var (
	castInfoStartRow   *int
	castInfoLimit      *int
	castInfoOverwrite  *bool
	castInfoAppendOnly *bool
	castInfoFillCounts *bool
)

func init() {
	castInfoStartRow = castInfoBuildCmd.Flags().Int("start-row", 2, "The first ShowInfo row to build.")
	castInfoLimit = castInfoBuildCmd.Flags().Int("limit", 0, "Build at most this many shows, 0 means all of them.")
	castInfoOverwrite = castInfoBuildCmd.Flags().Bool("overwrite", false, "Replace the Seasons of existing rows when TMDb disagrees.")
	castInfoAppendOnly = castInfoBuildCmd.Flags().Bool("append-only", false, "Only append new cast members, leave existing rows alone.")
	castInfoFillCounts = castInfoBuildCmd.Flags().Bool("fill-counts", false, "Write TotalEpisodes and Seasons from TMDb on appended rows.")
	castInfoBuildCmd.MarkFlagsMutuallyExclusive("overwrite", "append-only")
	rootCmd.AddCommand(castInfoBuildCmd)
}

var castInfoBuildCmd = &cobra.Command{
	Use:   "castinfo-build [--start-row <n>] [--limit <n>] [--overwrite | --append-only]",
	Short: "Builds CastInfo from the TMDb aggregate credits of every ShowInfo show.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		sheet := openSpreadsheet(cmd.Context(), cfg)
		cron := newCron()
		defer cron.Stop()

		builder := castbuild.NewBuilder(sheet, newTMDb(cfg), tel, timeAPI, cron)
		runJob(cmd, cfg, "castinfo-build", func(ctx context.Context, failed *failures.Log) (store.Counts, error) {
			return builder.Run(ctx, castbuild.Options{
				StartRow:   *castInfoStartRow,
				Limit:      *castInfoLimit,
				Overwrite:  *castInfoOverwrite,
				AppendOnly: *castInfoAppendOnly,
				FillCounts: *castInfoFillCounts,
				BatchSize:  cfg.Seasons.BatchSize,
				ShowDelay:  cfg.RequestDelay(),
			}, failed)
		})
	},
}
