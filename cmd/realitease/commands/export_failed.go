package commands

import (
	"fmt"
	"path/filepath"
	"realitease/internal/failures"
	"realitease/lib/serviceutil"
	"strings"

	"github.com/spf13/cobra"
)

var exportFailedOut *string

func init() {
	exportFailedOut = exportFailedCmd.Flags().StringP("out", "o", "", "The workbook written (default: the log name with .xlsx).")
	rootCmd.AddCommand(exportFailedCmd)
}

var exportFailedCmd = &cobra.Command{
	Use:   "export-failed <failed_members.json> [-o <out.xlsx>]",
	Short: "Converts a failed members log into an xlsx workbook.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		entries, err := failures.Load(args[0])
		if err != nil {
			serviceutil.Fatal("failed to read failed members log", err)
		}
		out := *exportFailedOut
		if out == "" {
			out = strings.TrimSuffix(args[0], filepath.Ext(args[0])) + ".xlsx"
		}
		if err := failures.ExportXLSX(entries, out); err != nil {
			serviceutil.Fatal("failed to write workbook", err)
		}
		fmt.Printf("Exported %d failures to %s\n", len(entries), out)
	},
}
