package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func attrStrings(params []any) []string {
	out := make([]string, 0, len(params))
	for _, p := range params {
		if attr, ok := p.(slog.Attr); ok {
			out = append(out, attr.String())
			continue
		}
		out = append(out, fmt.Sprint(p))
	}
	return out
}

func TestReportAttrs(t *testing.T) {
	testCases := []struct {
		name     string
		id       string
		params   []any
		expected []string
	}{
		{
			name:     "nothing",
			expected: []string{},
		},
		{
			name:     "error and value",
			id:       "client.person",
			params:   []any{errors.New("boom"), "nm0000001"},
			expected: []string{"id=client.person", "err=boom", "value=nm0000001"},
		},
		{
			name:     "several errors",
			id:       "pool.member",
			params:   []any{errors.New("first"), errors.New("second")},
			expected: []string{"id=pool.member", "err=first", "err.1=second"},
		},
		{
			name:     "attrs are kept, values are grouped",
			params:   []any{slog.String("host", "www.imdb.com"), "Vanderpump Rules", 3, 2 * time.Second},
			expected: []string{"host=www.imdb.com", "values=[Vanderpump Rules 3 2s]"},
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			var got []string
			for _, attr := range reportAttrs(test.id, test.params) {
				got = append(got, attr.String())
			}
			if got == nil {
				got = []string{}
			}
			if diff := cmp.Diff(test.expected, got); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func captureLogs(t *testing.T) *bytes.Buffer {
	buf := &bytes.Buffer{}
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })
	return buf
}

func TestSlogAPILogs(t *testing.T) {
	buf := captureLogs(t)

	api := NewScopedAPI("tmdb", SlogAPI{})
	api.ReportBroken("client.person", errors.New("status 500"), "nm0000001")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "ERROR", line["level"])
	require.Equal(t, "broken component", line["msg"])
	require.Equal(t, "tmdb: client.person", line["id"])
	require.Equal(t, "status 500", line["err"])
	require.Equal(t, "nm0000001", line["value"])
}

func TestSlogAPIMetrics(t *testing.T) {
	captureLogs(t)

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	api, err := NewSlogAPI(provider.Meter("test"))
	require.NoError(t, err)

	api.ReportBroken("sheets: writer.flush", errors.New("quota"))
	api.ReportWarning("seasons: member-missing")
	api.ReportWarning("seasons: member-missing")
	api.ReportCount("worker: processed", 7)
	api.ReportCount("worker: processed", 12)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	reports := map[string]int64{}
	var lastCount int64
	for _, m := range rm.ScopeMetrics[0].Metrics {
		switch data := m.Data.(type) {
		case metricdata.Sum[int64]:
			for _, point := range data.DataPoints {
				kind, _ := point.Attributes.Value("kind")
				reports[kind.AsString()] += point.Value
			}
		case metricdata.Gauge[int64]:
			require.Len(t, data.DataPoints, 1)
			lastCount = data.DataPoints[0].Value
		}
	}
	require.Equal(t, map[string]int64{"broken": 1, "warning": 2}, reports)
	require.Equal(t, int64(12), lastCount)
}

func TestScopedAPI(t *testing.T) {
	rec := &Recorder{}
	api := NewScopedAPI("castbuild", NewScopedAPI("builder", rec))
	api.ReportWarning("row.no-imdb", 14)
	api.ReportCount("rows", 3)

	warnings := rec.Reports("warning")
	require.Len(t, warnings, 1)
	require.Equal(t, "builder: castbuild: row.no-imdb", warnings[0].ID)
	require.Equal(t, []any{14}, warnings[0].Params)

	counts := rec.Reports("count")
	require.Len(t, counts, 1)
	require.Equal(t, "builder: castbuild: rows", counts[0].ID)
	require.Len(t, rec.Reports(""), 2)
}

func TestInstrumentResty(t *testing.T) {
	throttled := 2
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if throttled > 0 {
			throttled--
			w.Header().Set("Retry-After", "10")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	rec := &Recorder{}
	client := resty.New().SetBaseURL(server.URL)
	InstrumentResty(client, rec)

	for i := 0; i < 3; i++ {
		_, err := client.R().Get("/name/nm0000001/")
		require.NoError(t, err)
	}

	warnings := rec.Reports("warning")
	require.Len(t, warnings, 2)
	require.Equal(t, report_http_throttled, warnings[1].ID)
	require.Contains(t, attrStrings(warnings[1].Params), "status=429")
	require.Contains(t, attrStrings(warnings[1].Params), "retry_after=10")
	require.Contains(t, attrStrings(warnings[1].Params), "streak=2")
	require.Empty(t, rec.Reports("broken"))

	server.Close()
	_, err := client.R().Get("/name/nm0000001/")
	require.Error(t, err)

	broken := rec.Reports("broken")
	require.Len(t, broken, 1)
	require.Equal(t, report_http_round_trip, broken[0].ID)
}
