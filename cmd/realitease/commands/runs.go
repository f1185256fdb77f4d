package commands

import (
	"fmt"
	"realitease/lib/serviceutil"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	runsJob      *string
	runsLimit    *int
	runsFailures *string
)

func init() {
	runsJob = runsCmd.Flags().String("job", "", "Only list runs of this job.")
	runsLimit = runsCmd.Flags().Int("limit", 20, "The amount of runs listed.")
	runsFailures = runsCmd.Flags().String("failures", "", "List the failures recorded for this run id instead.")
	rootCmd.AddCommand(runsCmd)
}

var runsCmd = &cobra.Command{
	Use:   "runs [--job <name>] [--limit <n>] [--failures <run id>]",
	Short: "Lists past runs and their failures.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		history, closeStore, err := openStore(cfg)
		if err != nil {
			serviceutil.Fatal("failed to open run history", err)
		}
		defer closeStore()

		if *runsFailures != "" {
			entries, err := history.Failures(cmd.Context(), *runsFailures)
			if err != nil {
				serviceutil.Fatal("failed to read failures", err)
			}
			t := newTable()
			t.AppendHeader(table.Row{"Row", "Cast", "Show", "Reason", "Worker", "At"})
			for _, e := range entries {
				row := "-"
				if e.Row > 0 {
					row = fmt.Sprint(e.Row)
				}
				t.AppendRow(table.Row{row, e.Name, e.Show, e.Reason, e.Worker, formatTime(e.At)})
			}
			t.AppendFooter(table.Row{"", "", "", fmt.Sprintf("%d failures", len(entries))})
			t.Render()
			return
		}

		list, err := history.Runs(cmd.Context(), *runsJob, *runsLimit)
		if err != nil {
			serviceutil.Fatal("failed to read runs", err)
		}
		t := newTable()
		t.AppendHeader(table.Row{"Run", "Job", "Started", "Finished", "Status", "Processed", "Updated", "Skipped", "Failed"})
		for _, r := range list {
			t.AppendRow(table.Row{
				r.ID,
				r.Job,
				formatTime(r.StartedAt),
				formatTime(r.FinishedAt),
				strings.ToUpper(r.Status),
				r.Processed,
				r.Updated,
				r.Skipped,
				r.Failed,
			})
		}
		t.Render()
	},
}
