package commands

import (
	"realitease/internal/scrapers/tmdb"
	"realitease/internal/sheets"

	"github.com/spf13/cobra"
)

var tmdbBioFlags passFlags

func init() {
	tmdbBioFlags = addPassFlags(tmdbBioCmd, 0.5)
	rootCmd.AddCommand(tmdbBioCmd)
}

var tmdbBioCmd = &cobra.Command{
	Use:   "tmdb-bio [--start-row <n>] [--limit <n>] [--reverse] [--rate-delay <seconds>]",
	Short: "Fills RealiteaseInfo bio columns from TMDb person details.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		skip := func(row sheets.RealiteaseRow) bool {
			return row.CastTMDbID == "" && row.CastIMDbID == ""
		}
		runPass(cmd, cfg, "tmdb-bio", tmdbBioFlags.options(cfg.Bio.BatchSize, skip), tmdb.NewSource(newTMDb(cfg)))
	},
}
