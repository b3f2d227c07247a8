package observability

import (
	"context"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/samber/lo"
	"github.com/shirou/gopsutil/v3/process"
	otelruntime "go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

var once sync.Once

type appStats struct {
	ctx              context.Context
	shutdownCallback func(ctx context.Context) error

	// Instrument handles stay referenced here so the observable
	// callbacks keep firing for the lifetime of the app.
	goroutines      metric.Int64ObservableUpDownCounter
	processes       metric.Int64ObservableUpDownCounter
	residentMemSize metric.Int64ObservableGauge
	cpuPercent      metric.Float64ObservableGauge
}

func (as *appStats) waitForShutdown() {
	if as == nil || as.shutdownCallback == nil {
		return
	}
	go func() {
		<-as.ctx.Done()
		_ = as.shutdownCallback(context.Background())
	}()
}

// InitAppStats registers the application-wide observable meters once,
// then starts the otel runtime instrumentation. The meters publish
// through the globally installed meter provider, so one of the
// exporters has to be set up first. When ctx is canceled and the
// installed provider is an otel SDK one, it is shut down.
func InitAppStats(ctx context.Context, name string) {
	once.Do(func() {
		if ctx == nil {
			ctx = context.Background()
		}
		if len(strings.TrimSpace(name)) == 0 {
			name = "default"
		}
		name = "xtree/app/" + name
		meter := otel.Meter(
			name,
			metric.WithInstrumentationVersion(otelruntime.Version()),
		)
		self := lo.Must[*process.Process](process.NewProcess(int32(os.Getpid())))
		stats := &appStats{
			ctx: ctx,
			goroutines: lo.Must[metric.Int64ObservableUpDownCounter](meter.Int64ObservableUpDownCounter(
				"app.core.goroutines",
				metric.WithDescription(`The application goroutines' info.`),
				metric.WithInt64Callback(func(ctx context.Context, ob metric.Int64Observer) error {
					gNum := runtime.NumGoroutine()
					ob.Observe(int64(gNum))
					return nil
				}),
			)),
			processes: lo.Must[metric.Int64ObservableUpDownCounter](meter.Int64ObservableUpDownCounter(
				"app.core.processes",
				metric.WithDescription(`The application processes' info.`),
				metric.WithInt64Callback(func(ctx context.Context, ob metric.Int64Observer) error {
					procs := runtime.GOMAXPROCS(0)
					ob.Observe(int64(procs))
					return nil
				}),
			)),
			residentMemSize: lo.Must[metric.Int64ObservableGauge](meter.Int64ObservableGauge(
				"app.core.rss.bytes",
				metric.WithDescription(`The application resident set size in bytes.`),
				metric.WithInt64Callback(func(ctx context.Context, ob metric.Int64Observer) error {
					memInfo, err := self.MemoryInfoWithContext(ctx)
					if err != nil {
						return err
					}
					ob.Observe(int64(memInfo.RSS))
					return nil
				}),
			)),
			cpuPercent: lo.Must[metric.Float64ObservableGauge](meter.Float64ObservableGauge(
				"app.core.cpu.percent",
				metric.WithDescription(`The application CPU usage percent.`),
				metric.WithFloat64Callback(func(ctx context.Context, ob metric.Float64Observer) error {
					percent, err := self.CPUPercentWithContext(ctx)
					if err != nil {
						return err
					}
					ob.Observe(percent)
					return nil
				}),
			)),
		}
		if mp, ok := otel.GetMeterProvider().(*sdkmetric.MeterProvider); ok {
			stats.shutdownCallback = mp.Shutdown
		}
		_ = otelruntime.Start()
		stats.waitForShutdown()
	})
}
