package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"realitease/lib/configutil"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
)

// Telemetry holds the otel providers installed by Setup. A provider is nil when its
// signal is not configured, the global otel provider then stays no-op.
type Telemetry struct {
	TracerProvider *trace.TracerProvider
	MeterProvider  *metric.MeterProvider
}

func (t Telemetry) Shutdown(ctx context.Context) error {
	var errlist []error
	if t.TracerProvider != nil {
		errlist = append(errlist, t.TracerProvider.Shutdown(ctx))
	}
	if t.MeterProvider != nil {
		errlist = append(errlist, t.MeterProvider.Shutdown(ctx))
	}
	return errors.Join(errlist...)
}

// SetupFromEnv searches up the filesystem from the cwd to find a file called
// telemetry.json5, once found it will then use it as a config to setup telemetry.
func SetupFromEnv(ctx context.Context, serviceName string) (Telemetry, error) {
	config, err := configutil.ReadRecursively[Config]("telemetry.json5")
	if errors.Is(err, os.ErrNotExist) {
		slog.Debug("no telemetry.json5 found, otel exporters disabled")
		return Telemetry{}, nil
	}
	if err != nil {
		return Telemetry{}, err
	}
	return Setup(ctx, serviceName, config)
}

// Setup installs the providers configured in config as the global otel providers.
func Setup(ctx context.Context, serviceName string, config Config) (Telemetry, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*15)
	defer cancel()

	r, err := newResource(serviceName, config.Attributes)
	if err != nil {
		return Telemetry{}, err
	}

	var out Telemetry
	out.TracerProvider, err = newTraceProvider(ctx, r, config)
	if err != nil {
		return Telemetry{}, fmt.Errorf("traces: %w", err)
	}
	if out.TracerProvider != nil {
		otel.SetTracerProvider(out.TracerProvider)
	}

	out.MeterProvider, err = newMetricProvider(ctx, r, config)
	if err != nil {
		return out, fmt.Errorf("metrics: %w", err)
	}
	if out.MeterProvider != nil {
		otel.SetMeterProvider(out.MeterProvider)
	}
	return out, nil
}
