package commands

import (
	"context"
	"realitease/internal/bio"
	"realitease/internal/config"
	"realitease/internal/enrich"
	"realitease/internal/failures"
	"realitease/internal/scrapers/famousbirthdays"
	"realitease/internal/scrapers/fandom"
	"realitease/internal/scrapers/google"
	"realitease/internal/scrapers/imdb"
	"realitease/internal/scrapers/tmdb"
	"realitease/internal/scrapers/wikidata"
	"realitease/internal/scrapers/wikipedia"
	"realitease/internal/sheets"
	"realitease/internal/store"
	"realitease/internal/webcache"
	"realitease/lib/serviceutil"
	"time"

	"github.com/spf13/cobra"
)

// passFlags are the RealiteaseInfo window flags shared by the bio passes.
type passFlags struct {
	startRow  *int
	limit     *int
	reverse   *bool
	rateDelay *float64
	batchSize *int
}

func addPassFlags(cmd *cobra.Command, defaultDelay float64) passFlags {
	flags := cmd.Flags()
	return passFlags{
		startRow:  flags.Int("start-row", 2, "The first RealiteaseInfo row to process (the last row with --reverse)."),
		limit:     flags.Int("limit", 0, "Look at most at this many rows, 0 means all of them."),
		reverse:   flags.Bool("reverse", false, "Walk from the start row up towards row 2."),
		rateDelay: flags.Float64("rate-delay", defaultDelay, "Seconds to wait between two rows."),
		batchSize: flags.Int("batch-size", 0, "The amount of row updates per sheet write."),
	}
}

func (f passFlags) options(defaultBatch int, skip func(sheets.RealiteaseRow) bool) enrich.PassOptions {
	batch := *f.batchSize
	if batch <= 0 {
		batch = defaultBatch
	}
	return enrich.PassOptions{
		RealiteaseOptions: sheets.RealiteaseOptions{
			StartRow: *f.startRow,
			Limit:    *f.limit,
			Reverse:  *f.reverse,
		},
		Skip:      skip,
		BatchSize: batch,
		Delay:     time.Duration(*f.rateDelay * float64(time.Second)),
	}
}

// runPass runs a bio pass with the given sources over RealiteaseInfo.
func runPass(cmd *cobra.Command, cfg config.Config, name string, opts enrich.PassOptions, sources ...bio.Source) {
	sheet := openSpreadsheet(cmd.Context(), cfg)
	cron := newCron()
	defer cron.Stop()

	pass := enrich.NewPass(sheet, enrich.NewCascade(tel, sources...), tel, timeAPI, cron)
	runJob(cmd, cfg, name, func(ctx context.Context, failed *failures.Log) (store.Counts, error) {
		return pass.Run(ctx, opts, failed)
	})
}

func newFandom(cfg config.Config, cache *webcache.Cache) *fandom.Source {
	table, err := fandom.LoadWikiTable(cfg.Bio.WikiTable)
	if err != nil {
		serviceutil.Fatal("failed to read fandom wiki table", err)
	}
	opts := fandom.Options{
		Table:        table,
		RequestDelay: cfg.RequestDelay(),
		DebugDir:     debugDir(),
	}
	if *debug {
		opts.DebugHTMLDir = "debug_html"
	}
	source, err := fandom.NewSource(opts, cache, tel)
	if err != nil {
		serviceutil.Fatal("failed to create fandom source", err)
	}
	return source
}

// bioSources builds the full cascade, most reliable source first. TMDb is left out when
// no TMDb credentials are configured.
func bioSources(cfg config.Config, cache *webcache.Cache) []bio.Source {
	delay := cfg.RequestDelay()
	must := func(source bio.Source, err error) bio.Source {
		if err != nil {
			serviceutil.Fatal("failed to create bio source", err)
		}
		return source
	}

	sources := []bio.Source{
		must(imdb.NewPersonSource(imdb.PersonOptions{RequestDelay: delay, DebugDir: debugDir()}, cache, tel)),
		must(wikidata.NewSource(wikidata.Options{RequestDelay: delay, DebugDir: debugDir()}, cache, tel)),
	}
	if cfg.TMDb.Bearer != "" || cfg.TMDb.APIKey != "" {
		sources = append(sources, tmdb.NewSource(newTMDb(cfg)))
	}
	sources = append(sources,
		newFandom(cfg, cache),
		must(famousbirthdays.NewSource(famousbirthdays.Options{RequestDelay: delay, DebugDir: debugDir()}, cache, tel)),
		must(wikipedia.NewSource(wikipedia.Options{RequestDelay: delay, DebugDir: debugDir()}, cache, tel)),
		must(google.NewSource(google.Options{RequestDelay: delay, DebugDir: debugDir()}, cache, tel)),
	)
	return sources
}

var bioFlags passFlags

func init() {
	bioFlags = addPassFlags(bioCmd, 0.5)
	rootCmd.AddCommand(bioCmd)
}

var bioCmd = &cobra.Command{
	Use:   "bio [--start-row <n>] [--limit <n>] [--reverse] [--rate-delay <seconds>]",
	Short: "Fills Gender, Birthday and Zodiac of RealiteaseInfo from every bio source.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		cache, closeCache := openCache(cfg)
		defer closeCache()

		sources := bioSources(cfg, cache)
		runPass(cmd, cfg, "bio", bioFlags.options(cfg.Bio.BatchSize, nil), sources...)
	},
}
