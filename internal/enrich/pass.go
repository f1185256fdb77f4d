package enrich

import (
	"context"
	"fmt"
	"realitease/internal/bio"
	"realitease/internal/components/chrono"
	"realitease/internal/components/telemetry"
	"realitease/internal/failures"
	"realitease/internal/scrapers"
	"realitease/internal/sheets"
	"realitease/internal/store"
	"realitease/lib/textutil"
	"strings"
	"time"
)

const (
	report_pass_load  = "pass.load"
	report_pass_write = "pass.write"
	report_pass_flush = "pass.flush"
)

const reasonNoBioData = "No bio data found"

type PassOptions struct {
	sheets.RealiteaseOptions
	// Skip excludes rows the pass has no way to look up, they are counted as skipped.
	Skip func(sheets.RealiteaseRow) bool

	BatchSize     int
	FlushInterval time.Duration
	// Delay is the pause between two rows.
	Delay time.Duration
}

// Pass runs a cascade over the RealiteaseInfo rows that are missing bio data.
type Pass struct {
	values  sheets.Values
	cascade Cascade
	tel     telemetry.API
	time    chrono.TimeAPI
	cron    chrono.CronAPI
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewPass(
	values sheets.Values,
	cascade Cascade,
	tel telemetry.API,
	timeAPI chrono.TimeAPI,
	cron chrono.CronAPI,
) Pass {
	return Pass{
		values:  values,
		cascade: cascade,
		tel:     telemetry.NewScopedAPI("enrich", tel),
		time:    timeAPI,
		cron:    cron,
		sleep:   scrapers.Sleep,
	}
}

// Cells returns the writes for the bio columns of row that are empty and that record
// can fill. The zodiac follows the birthday already in the sheet when there is one.
func Cells(row sheets.RealiteaseRow, record bio.Record) []sheets.Cell {
	var cells []sheets.Cell
	if row.Gender == "" && record.Gender != bio.GenderUnknown {
		cells = append(cells, sheets.Cell{Column: sheets.RealiteaseGender, Value: string(record.Gender)})
	}
	birthday := bio.ParseDate(row.Birthday)
	if row.Birthday == "" && record.Birthday != "" {
		birthday = record.Birthday
		cells = append(cells, sheets.Cell{Column: sheets.RealiteaseBirthday, Value: birthday})
	}
	if row.Zodiac == "" {
		if sign := bio.Zodiac(birthday); sign != "" {
			cells = append(cells, sheets.Cell{Column: sheets.RealiteaseZodiac, Value: sign})
		}
	}
	return cells
}

// needsLookup reports whether anything besides the zodiac is missing.
func needsLookup(row sheets.RealiteaseRow) bool {
	return row.Gender == "" || row.Birthday == ""
}

func person(row sheets.RealiteaseRow) bio.Person {
	return bio.Person{
		Name:   row.CastName,
		IMDbID: row.CastIMDbID,
		TMDbID: row.CastTMDbID,
		Shows:  textutil.SplitList(row.ShowNames),
	}
}

func (p Pass) Run(ctx context.Context, opts PassOptions, failed *failures.Log) (store.Counts, error) {
	values, err := p.values.Get(ctx, sheets.SheetRealiteaseInfo)
	if err != nil {
		p.tel.ReportBroken(report_pass_load, err)
		return store.Counts{}, fmt.Errorf("load %s: %w", sheets.SheetRealiteaseInfo, err)
	}
	rows, loaded := sheets.LoadRealiteaseInfo(values, opts.RealiteaseOptions)
	counts := store.Counts{Skipped: loaded.SkippedFilled + loaded.SkippedInvalid}
	p.tel.ReportDebug(fmt.Sprintf(
		"%d rows to process with %s (%d scanned, %d already filled)",
		len(rows), strings.Join(p.cascade.Sources(), ", "), loaded.Total, loaded.SkippedFilled,
	))

	writer := sheets.NewBatchWriter(p.values, sheets.WriterOptions{
		BatchSize:     opts.BatchSize,
		FlushInterval: opts.FlushInterval,
		OnFailed: func(u sheets.Update, reason string) {
			failed.Add(failures.Entry{Row: u.Row, Name: u.Label, Reason: "Sheet write failed: " + reason})
		},
	}, p.tel, p.time)
	stopFlush, err := writer.Start(ctx, p.cron)
	if err != nil {
		return counts, err
	}

	looked := 0
	for _, row := range rows {
		if ctx.Err() != nil {
			break
		}
		if opts.Skip != nil && opts.Skip(row) {
			counts.Skipped++
			continue
		}

		var record bio.Record
		if needsLookup(row) {
			if looked > 0 && p.sleep(ctx, opts.Delay) != nil {
				break
			}
			looked++
			record, err = p.cascade.Lookup(ctx, person(row))
			if err != nil {
				break
			}
		}
		counts.Processed++

		cells := Cells(row, record)
		if len(cells) == 0 {
			counts.Failed++
			failed.Add(failures.Entry{
				Row:        row.Row,
				Name:       row.CastName,
				CastIMDbID: row.CastIMDbID,
				Show:       row.ShowNames,
				Reason:     reasonNoBioData,
			})
			continue
		}
		if record.GenderSource != "" || record.BirthdaySource != "" {
			p.tel.ReportDebug(fmt.Sprintf(
				"row %d %s: gender from %q, birthday from %q",
				row.Row, row.CastName, record.GenderSource, record.BirthdaySource,
			))
		}

		err := writer.Add(ctx, sheets.Update{
			Sheet: sheets.SheetRealiteaseInfo,
			Row:   row.Row,
			Cells: cells,
			Label: row.CastName,
		})
		if err != nil && ctx.Err() == nil {
			p.tel.ReportBroken(report_pass_write, err, row.CastName)
		}
		counts.Updated++
	}
	stopFlush()

	if err := writer.Close(context.WithoutCancel(ctx)); err != nil {
		p.tel.ReportBroken(report_pass_flush, err)
		return counts, fmt.Errorf("final flush: %w", err)
	}
	ws := writer.Stats()
	counts.Updated -= ws.Failed
	counts.Failed += ws.Failed
	return counts, nil
}
