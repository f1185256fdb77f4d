package commands

import (
	"realitease/internal/sheets"
	"strings"

	"github.com/spf13/cobra"
)

var fandomFlags passFlags

func init() {
	fandomFlags = addPassFlags(fandomCmd, 0.5)
	rootCmd.AddCommand(fandomCmd)
}

var fandomCmd = &cobra.Command{
	Use:   "fandom [--start-row <n>] [--limit <n>] [--reverse] [--rate-delay <seconds>]",
	Short: "Fills RealiteaseInfo bio columns from the fandom wikis of each cast member's shows.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		cache, closeCache := openCache(cfg)
		defer closeCache()

		skip := func(row sheets.RealiteaseRow) bool {
			return strings.TrimSpace(row.ShowNames) == ""
		}
		runPass(cmd, cfg, "fandom", fandomFlags.options(cfg.Bio.FandomBatchSize, skip), newFandom(cfg, cache))
	},
}
