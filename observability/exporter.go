package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// installMeterProvider publishes the provider globally and hands back
// its shutdown, which also flushes the final batch. The upstream
// exporter catalog: https://opentelemetry.io/docs/languages/go/exporters/
func installMeterProvider(reader metric.Reader) func(ctx context.Context) error {
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	otel.SetMeterProvider(mp)
	return mp.Shutdown
}

// NewConsoleMetricsExporter dumps every registered meter to stdout on
// the given cadence. Meant for dev runs and tests.
func NewConsoleMetricsExporter(interval, timeout time.Duration, opts ...stdoutmetric.Option) (func(ctx context.Context) error, error) {
	exporter, err := stdoutmetric.New(opts...)
	if err != nil {
		return nil, err
	}
	reader := metric.NewPeriodicReader(
		exporter,
		metric.WithInterval(interval),
		metric.WithTimeout(timeout),
	)
	return installMeterProvider(reader), nil
}

// NewPrometheusMetricsExporter registers the meters for HTTP pull, the
// production path.
func NewPrometheusMetricsExporter(opts ...prometheus.Option) (func(ctx context.Context) error, error) {
	exporter, err := prometheus.New(opts...)
	if err != nil {
		return nil, err
	}
	return installMeterProvider(exporter), nil
}
