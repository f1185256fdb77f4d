package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SlogAPI implements API using the log/slog package. When built with NewSlogAPI, broken and
// warning reports are also counted and ReportCount values recorded as gauges on the meter.
//
// The zero value only logs.
type SlogAPI struct {
	reports metric.Int64Counter
	counts  metric.Int64Gauge
}

// NewSlogAPI creates a SlogAPI that also exports its reports through meter.
func NewSlogAPI(meter metric.Meter) (SlogAPI, error) {
	reports, err := meter.Int64Counter(
		"reports",
		metric.WithDescription("Broken and warning reports by id."),
	)
	if err != nil {
		return SlogAPI{}, err
	}
	counts, err := meter.Int64Gauge(
		"counts",
		metric.WithDescription("The last value passed to ReportCount by id."),
	)
	if err != nil {
		return SlogAPI{}, err
	}
	return SlogAPI{reports: reports, counts: counts}, nil
}

// reportAttrs turns report params into slog attributes. The first error is logged as "err",
// further errors as "err.<n>". slog.Attr params are kept as is, every other param ends up in
// "value" (or "values" when there is more than one).
func reportAttrs(id string, params []any) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(params)+2)
	if id != "" {
		attrs = append(attrs, slog.String("id", id))
	}

	errCount := 0
	var values []any
	for _, p := range params {
		switch v := p.(type) {
		case error:
			key := "err"
			if errCount > 0 {
				key = fmt.Sprintf("err.%d", errCount)
			}
			errCount++
			attrs = append(attrs, slog.String(key, v.Error()))
		case slog.Attr:
			attrs = append(attrs, v)
		case fmt.Stringer:
			values = append(values, v.String())
		default:
			values = append(values, v)
		}
	}

	switch len(values) {
	case 0:
	case 1:
		attrs = append(attrs, slog.Any("value", values[0]))
	default:
		attrs = append(attrs, slog.Any("values", values))
	}
	return attrs
}

func (s SlogAPI) count(kind, id string) {
	if s.reports == nil {
		return
	}
	s.reports.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("id", id),
	))
}

func (s SlogAPI) ReportBroken(id string, params ...any) {
	s.count("broken", id)
	slog.LogAttrs(context.Background(), slog.LevelError, "broken component", reportAttrs(id, params)...)
}

func (s SlogAPI) ReportWarning(id string, params ...any) {
	s.count("warning", id)
	slog.LogAttrs(context.Background(), slog.LevelWarn, "warning", reportAttrs(id, params)...)
}

func (s SlogAPI) ReportDebug(message string, params ...any) {
	slog.LogAttrs(context.Background(), slog.LevelDebug, message, reportAttrs("", params)...)
}

func (s SlogAPI) ReportCount(id string, count int64) {
	if s.counts != nil {
		s.counts.Record(context.Background(), count, metric.WithAttributes(attribute.String("id", id)))
	}
	slog.Info("count", "id", id, "n", count)
}
