package chrono

import (
	"fmt"
	"log/slog"
	"realitease/internal/components/telemetry"

	"github.com/robfig/cron/v3"
)

// CronAPI runs callbacks on a schedule. Jobs use it for periodic sheet flushes and worker
// heartbeats so tests can drive those by hand.
type CronAPI interface {
	// Cron registers callback to run on spec ("@every 30s", "*/5 * * * *"), the returned
	// function unregisters it.
	Cron(spec string, callback func()) (cancel func(), err error)
}

// StandardCron runs callbacks with robfig/cron. A callback that is still running when its
// next tick comes is skipped, a callback that panics is reported as broken and the
// scheduler keeps going.
type StandardCron struct {
	cron *cron.Cron
}

// NewStandardCron creates a StandardCron and starts its scheduler.
func NewStandardCron(tel telemetry.API) StandardCron {
	logger := cronLogger{tel: telemetry.NewScopedAPI("cron", tel)}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(
			cron.Recover(logger),
			cron.SkipIfStillRunning(logger),
		),
	)
	c.Start()
	return StandardCron{cron: c}
}

func (s StandardCron) Cron(spec string, callback func()) (func(), error) {
	id, err := s.cron.AddFunc(spec, callback)
	if err != nil {
		return nil, fmt.Errorf("schedule %q: %w", spec, err)
	}
	return func() { s.cron.Remove(id) }, nil
}

// Stop stops the scheduler and waits for running callbacks to return.
func (s StandardCron) Stop() {
	<-s.cron.Stop().Done()
}

// cronLogger adapts telemetry.API to cron.Logger.
type cronLogger struct {
	tel telemetry.API
}

func cronAttrs(keysAndValues []any) []any {
	attrs := make([]any, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		attrs = append(attrs, slog.Any(fmt.Sprint(keysAndValues[i]), keysAndValues[i+1]))
	}
	return attrs
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.tel.ReportDebug(msg, cronAttrs(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	params := append([]any{err, slog.String("msg", msg)}, cronAttrs(keysAndValues)...)
	l.tel.ReportBroken("scheduler", params...)
}
