package commands

import (
	"context"
	"fmt"
	"realitease/internal/castbuild"
	"realitease/internal/failures"
	"realitease/internal/store"
	"realitease/lib/serviceutil"

	"github.com/spf13/cobra"
)

var realiteaseBuildYes *bool

func init() {
	realiteaseBuildYes = realiteaseBuildCmd.Flags().Bool("yes", false, "Replace RealiteaseInfo without asking.")
	rootCmd.AddCommand(realiteaseBuildCmd)
}

var realiteaseBuildCmd = &cobra.Command{
	Use:   "realitease-build --yes",
	Short: "Rebuilds RealiteaseInfo with one row per cast member of ViableCast.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		sheet := openSpreadsheet(cmd.Context(), cfg)
		aggregator := castbuild.NewAggregator(sheet, tel, timeAPI)

		rows, err := aggregator.Plan(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to read ViableCast", err)
		}
		fmt.Printf("RealiteaseInfo will be replaced with %d cast members.\n", len(rows))
		if !*realiteaseBuildYes {
			fmt.Println("Nothing written, run again with --yes to replace the sheet.")
			return
		}

		runJob(cmd, cfg, "realitease-build", func(ctx context.Context, failed *failures.Log) (store.Counts, error) {
			return aggregator.Run(ctx, rows)
		})
	},
}
