package telemetry

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/process"
	"go.opentelemetry.io/otel"
)

var meter = otel.Meter("realitease.perf_stats")
var cpuGauge, _ = meter.Float64Gauge("cpu_usage")
var memoryGauge, _ = meter.Int64Gauge("allocated_mb")
var goroutineGauge, _ = meter.Int64Gauge("goroutine_count")
var childProcessGauge, _ = meter.Int64Gauge("child_processes")
var childMemoryGauge, _ = meter.Int64Gauge("child_rss_mb")

// maxChildDepth bounds the walk over the process tree, Chrome nests renderers two deep.
const maxChildDepth = 4

// ChildStats sums the processes started by this process (the seasons job's Chrome
// instances and their renderers).
type ChildStats struct {
	Count int
	RSSMB int64
}

func childStats(ctx context.Context, p *process.Process, depth int) ChildStats {
	var stats ChildStats
	if depth > maxChildDepth {
		return stats
	}
	children, err := p.ChildrenWithContext(ctx)
	if err != nil {
		// process.ErrorNoChildren for leaves
		return stats
	}
	for _, child := range children {
		stats.Count++
		if mem, err := child.MemoryInfoWithContext(ctx); err == nil {
			stats.RSSMB += int64(mem.RSS / 1_000_000)
		}
		nested := childStats(ctx, child, depth+1)
		stats.Count += nested.Count
		stats.RSSMB += nested.RSSMB
	}
	return stats
}

// ReadChildStats returns the process tree below the current process.
func ReadChildStats(ctx context.Context) (ChildStats, error) {
	self, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return ChildStats{}, err
	}
	return childStats(ctx, self, 1), nil
}

// InstrumentPerfStats periodically records process cpu, memory, goroutine and child
// process gauges.
func InstrumentPerfStats(ctx context.Context) {
	go func() {
		var memStats runtime.MemStats
		ticker := time.NewTicker(time.Second * 30)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				runtime.ReadMemStats(&memStats)

				cpuUsage, err := cpu.PercentWithContext(ctx, time.Second*5, false)
				if err == nil && len(cpuUsage) > 0 {
					cpuGauge.Record(ctx, cpuUsage[0])
				} else {
					slog.Debug("failed to read cpu usage", "err", err)
				}

				memoryGauge.Record(ctx, int64(memStats.Alloc/1_000_000))
				goroutineGauge.Record(ctx, int64(runtime.NumGoroutine()))

				children, err := ReadChildStats(ctx)
				if err != nil {
					slog.Debug("failed to read child processes", "err", err)
					continue
				}
				childProcessGauge.Record(ctx, int64(children.Count))
				childMemoryGauge.Record(ctx, children.RSSMB)
			case <-ctx.Done():
				return
			}
		}
	}()
}
