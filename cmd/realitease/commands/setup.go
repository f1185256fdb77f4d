package commands

import (
	"context"
	"log/slog"
	"os"
	"realitease/internal/components/chrono"
	"realitease/internal/config"
	"realitease/internal/runs"
	"realitease/internal/scrapers/tmdb"
	"realitease/internal/sheets"
	"realitease/internal/store"
	"realitease/internal/webcache"
	"realitease/lib/dbutil"
	"realitease/lib/serviceutil"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	_ "modernc.org/sqlite"
)

const restyDumpDir = ".dev/resty"

func loadConfig() config.Config {
	cfg, err := config.Load(*configPath)
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	if *dbPath != "" {
		cfg.Database = *dbPath
	}
	return cfg
}

func debugDir() string {
	if *debug {
		return restyDumpDir
	}
	return ""
}

func openSpreadsheet(ctx context.Context, cfg config.Config) *sheets.Spreadsheet {
	credentials, err := cfg.ResolveCredentials()
	if err != nil {
		serviceutil.Fatal("failed to find google credentials", err)
	}
	sheet, err := sheets.Open(ctx, sheets.OpenOptions{
		CredentialsFile: credentials,
		SpreadsheetID:   cfg.SpreadsheetID,
		SpreadsheetName: cfg.SpreadsheetName,
	})
	if err != nil {
		serviceutil.Fatal("failed to open spreadsheet", err)
	}
	slog.Info("opened spreadsheet", "title", sheet.Title, "id", sheet.ID)
	return sheet
}

func newTMDb(cfg config.Config) *tmdb.Client {
	client, err := tmdb.NewClient(tmdb.Options{
		Bearer:       cfg.TMDb.Bearer,
		APIKey:       cfg.TMDb.APIKey,
		RequestDelay: cfg.RequestDelay(),
		DebugDir:     debugDir(),
	}, tel)
	if err != nil {
		serviceutil.Fatal("failed to create tmdb client", err)
	}
	return client
}

// openCache opens the page cache, runs go on without one when it cannot be opened.
func openCache(cfg config.Config) (*webcache.Cache, func()) {
	if cfg.Bio.CacheDir == "" {
		return nil, func() {}
	}
	db, err := webcache.Open(cfg.Bio.CacheDir)
	if err != nil {
		slog.Warn("page cache unavailable", "dir", cfg.Bio.CacheDir, "err", err.Error())
		return nil, func() {}
	}
	return webcache.New(db, cfg.Bio.CacheTTL(), timeAPI), func() { db.Close() }
}

func openStore(cfg config.Config) (store.Store, func(), error) {
	db, err := dbutil.OpenAndMigrate(cfg.Database, cfg.DatabaseAuthToken, store.Schema)
	if err != nil {
		return store.Store{}, nil, err
	}
	return store.New(db, timeAPI), func() { db.Close() }, nil
}

func newCron() chrono.StandardCron {
	return chrono.NewStandardCron(tel)
}

// runJob runs a job through the run bookkeeping and exits with status 1 when it failed.
func runJob(cmd *cobra.Command, cfg config.Config, name string, job runs.Job) {
	runner := runs.Runner{
		Notify:       runs.SMTPNotifier(cfg.Notify),
		FailedLogDir: cfg.FailedLogDir,
		Time:         timeAPI,
		Tel:          tel,
	}
	history, closeStore, err := openStore(cfg)
	if err != nil {
		slog.Warn("run history unavailable", "db", cfg.Database, "err", err.Error())
	} else {
		defer closeStore()
		runner.History = history
	}

	summary, err := runner.Run(cmd.Context(), name, job)
	attrs := []any{
		"run", summary.RunID,
		"status", summary.Status,
		"processed", summary.Processed,
		"updated", summary.Updated,
		"skipped", summary.Skipped,
		"failed", summary.Failed,
		"took", summary.Finished.Sub(summary.Started).Round(time.Second),
	}
	if summary.FailedLog != "" {
		attrs = append(attrs, "failed_log", summary.FailedLog)
	}
	slog.Info(name+" finished", attrs...)
	if err != nil && summary.Status == store.StatusFailed {
		serviceutil.Fatal(name+" failed", err)
	}
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
