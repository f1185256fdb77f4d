package castbuild

import (
	"context"
	"fmt"
	"realitease/internal/components/chrono"
	"realitease/internal/components/telemetry"
	"realitease/internal/sheets"
	"realitease/internal/store"
	"slices"
	"strconv"
	"strings"
)

const report_aggregate_write = "aggregate.write"

// AggregateViableCast merges the ViableCast rows of each cast name into one RealiteaseInfo
// row in first-appearance order. Ids are the first non-empty ones, show lists keep their
// order without duplicates and the bio columns are left empty.
func AggregateViableCast(rows []sheets.ViableCastRow) []sheets.RealiteaseRow {
	type person struct {
		row       sheets.RealiteaseRow
		shows     []string
		showIMDbs []string
		showTMDbs []string
	}
	add := func(list []string, v string) []string {
		if v == "" || slices.Contains(list, v) {
			return list
		}
		return append(list, v)
	}

	var order []string
	byName := map[string]*person{}
	for _, r := range rows {
		p, ok := byName[r.CastName]
		if !ok {
			p = &person{row: sheets.RealiteaseRow{CastName: r.CastName}}
			byName[r.CastName] = p
			order = append(order, r.CastName)
		}
		if p.row.CastIMDbID == "" {
			p.row.CastIMDbID = r.CastIMDbID
		}
		if p.row.CastTMDbID == "" {
			p.row.CastTMDbID = r.CastTMDbID
		}
		p.shows = add(p.shows, r.ShowName)
		p.showIMDbs = add(p.showIMDbs, r.ShowIMDbID)
		p.showTMDbs = add(p.showTMDbs, r.ShowTMDbID)
	}

	out := make([]sheets.RealiteaseRow, 0, len(order))
	for i, name := range order {
		p := byName[name]
		p.row.Row = i + 2
		p.row.ShowNames = strings.Join(p.shows, ", ")
		p.row.ShowIMDbIDs = strings.Join(p.showIMDbs, ", ")
		p.row.ShowTMDbIDs = strings.Join(p.showTMDbs, ", ")
		p.row.ShowCount = strconv.Itoa(len(p.shows))
		out = append(out, p.row)
	}
	return out
}

// Aggregator rebuilds RealiteaseInfo from ViableCast.
type Aggregator struct {
	values sheets.Values
	tel    telemetry.API
	time   chrono.TimeAPI
}

func NewAggregator(values sheets.Values, tel telemetry.API, timeAPI chrono.TimeAPI) Aggregator {
	return Aggregator{
		values: values,
		tel:    telemetry.NewScopedAPI("castbuild", tel),
		time:   timeAPI,
	}
}

// Plan returns the rows RealiteaseInfo would hold after Run.
func (a Aggregator) Plan(ctx context.Context) ([]sheets.RealiteaseRow, error) {
	values, err := a.values.Get(ctx, sheets.SheetViableCast)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", sheets.SheetViableCast, err)
	}
	return AggregateViableCast(sheets.LoadViableCast(values)), nil
}

// Run clears RealiteaseInfo and writes the header followed by rows.
func (a Aggregator) Run(ctx context.Context, rows []sheets.RealiteaseRow) (store.Counts, error) {
	data := make([][]any, len(rows))
	for i, r := range rows {
		data[i] = r.Values()
	}
	writer := sheets.NewBatchWriter(a.values, sheets.WriterOptions{}, a.tel, a.time)
	if err := writer.Replace(ctx, sheets.SheetRealiteaseInfo, sheets.RealiteaseHeader, data); err != nil {
		a.tel.ReportBroken(report_aggregate_write, err)
		return store.Counts{Processed: len(rows), Failed: len(rows)}, err
	}
	a.tel.ReportDebug(fmt.Sprintf("wrote %d rows to %s", len(rows), sheets.SheetRealiteaseInfo))
	return store.Counts{Processed: len(rows), Updated: len(rows)}, nil
}
