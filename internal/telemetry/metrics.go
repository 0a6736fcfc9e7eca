package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName  = "github.com/wolfeidau/flepack"
	tracerName = "github.com/wolfeidau/flepack"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Registry metrics
	PluginsBuiltTotal metric.Int64Counter

	// Notification metrics
	NotificationsSentTotal metric.Int64Counter

	// Bundler metrics
	BuildsTotal        metric.Int64Counter
	BuildErrorsTotal   metric.Int64Counter
	BuildWarningsTotal metric.Int64Counter
	BuildDuration      metric.Float64Histogram
	OutputFilesTotal   metric.Int64Counter
	OutputBytesTotal   metric.Int64Counter
	PagesRenderedTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments. Instruments are
// created against the global provider, which forwards to whatever provider
// InitTelemetry installs later.
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.PluginsBuiltTotal, _ = meter.Int64Counter(
		"flepack.plugins.built.total",
		metric.WithDescription("Total number of plugin descriptors built"),
		metric.WithUnit("{plugin}"),
	)

	m.NotificationsSentTotal, _ = meter.Int64Counter(
		"flepack.notifications.sent.total",
		metric.WithDescription("Total number of build error notifications sent"),
		metric.WithUnit("{notification}"),
	)

	m.BuildsTotal, _ = meter.Int64Counter(
		"flepack.builds.total",
		metric.WithDescription("Total number of bundler runs"),
		metric.WithUnit("{build}"),
	)

	m.BuildErrorsTotal, _ = meter.Int64Counter(
		"flepack.builds.errors.total",
		metric.WithDescription("Total number of errors reported by the bundler"),
		metric.WithUnit("{error}"),
	)

	m.BuildWarningsTotal, _ = meter.Int64Counter(
		"flepack.builds.warnings.total",
		metric.WithDescription("Total number of warnings reported by the bundler"),
		metric.WithUnit("{warning}"),
	)

	m.BuildDuration, _ = meter.Float64Histogram(
		"flepack.builds.duration",
		metric.WithDescription("Duration of bundler runs"),
		metric.WithUnit("ms"),
	)

	m.OutputFilesTotal, _ = meter.Int64Counter(
		"flepack.output.files.total",
		metric.WithDescription("Total number of files written"),
		metric.WithUnit("{file}"),
	)

	m.OutputBytesTotal, _ = meter.Int64Counter(
		"flepack.output.bytes.total",
		metric.WithDescription("Total number of bytes written"),
		metric.WithUnit("By"),
	)

	m.PagesRenderedTotal, _ = meter.Int64Counter(
		"flepack.pages.rendered.total",
		metric.WithDescription("Total number of HTML pages generated"),
		metric.WithUnit("{page}"),
	)

	return m
}
