package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"realitease/internal/components/chrono"
	"realitease/internal/components/telemetry"
	libtelemetry "realitease/lib/telemetry"

	"github.com/spf13/cobra"
)

var (
	configPath *string
	dbPath     *string
	verbose    *bool
	debug      *bool
)

// set up by the root command before any subcommand runs
var (
	tel      telemetry.API = telemetry.SlogAPI{}
	timeAPI  chrono.TimeAPI = chrono.NewStandardTime()
	otelSink libtelemetry.Telemetry
)

var rootCmd = &cobra.Command{
	Use:   "realitease",
	Short: "realitease fills the Realitease2025Data workbook with reality TV cast data.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		libtelemetry.InitSlog(*verbose || *debug)

		sink, err := libtelemetry.SetupFromEnv(cmd.Context(), "realitease")
		if err != nil {
			slog.Warn("telemetry setup failed, continuing without exporters", "err", err.Error())
		}
		otelSink = sink
		if sink.MeterProvider != nil {
			libtelemetry.InstrumentPerfStats(cmd.Context())
			api, err := telemetry.NewSlogAPI(sink.MeterProvider.Meter("realitease"))
			if err != nil {
				slog.Warn("report metrics unavailable", "err", err.Error())
			} else {
				tel = api
			}
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if err := otelSink.Shutdown(context.WithoutCancel(cmd.Context())); err != nil {
			slog.Warn("telemetry shutdown", "err", err.Error())
		}
	},
}

func init() {
	configPath = rootCmd.PersistentFlags().String("config", "realitease.json5", "The config file to read.")
	dbPath = rootCmd.PersistentFlags().String("db", "", "The run history database (path or libsql:// url), overrides the config.")
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug messages.")
	debug = rootCmd.PersistentFlags().Bool("debug", false, "Dump HTTP messages to .dev/resty and fetched articles to debug_html.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
