package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/docsign"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Session metrics
	LoginTotal         metric.Int64Counter
	RefreshTotal       metric.Int64Counter
	RefreshErrorsTotal metric.Int64Counter

	// Interceptor metrics
	RetriesTotal        metric.Int64Counter
	RefreshWaitersTotal metric.Int64Counter

	// Signing metrics
	SignTotal       metric.Int64Counter
	SignErrorsTotal metric.Int64Counter
	SignDuration    metric.Float64Histogram

	// Realtime metrics
	RealtimeReconnectsTotal metric.Int64Counter
	RealtimeEventsTotal     metric.Int64Counter
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

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.LoginTotal, _ = meter.Int64Counter(
		"docsign.auth.login.total",
		metric.WithDescription("Total number of login attempts"),
		metric.WithUnit("{login}"),
	)

	m.RefreshTotal, _ = meter.Int64Counter(
		"docsign.auth.refresh.total",
		metric.WithDescription("Total number of access token refresh calls"),
		metric.WithUnit("{refresh}"),
	)

	m.RefreshErrorsTotal, _ = meter.Int64Counter(
		"docsign.auth.refresh.errors.total",
		metric.WithDescription("Total number of failed access token refreshes"),
		metric.WithUnit("{error}"),
	)

	m.RetriesTotal, _ = meter.Int64Counter(
		"docsign.auth.retries.total",
		metric.WithDescription("Total number of requests re-issued after a 401"),
		metric.WithUnit("{request}"),
	)

	m.RefreshWaitersTotal, _ = meter.Int64Counter(
		"docsign.auth.refresh.waiters.total",
		metric.WithDescription("Total number of requests that joined an in-flight refresh"),
		metric.WithUnit("{request}"),
	)

	m.SignTotal, _ = meter.Int64Counter(
		"docsign.sign.total",
		metric.WithDescription("Total number of signature submissions"),
		metric.WithUnit("{signature}"),
	)

	m.SignErrorsTotal, _ = meter.Int64Counter(
		"docsign.sign.errors.total",
		metric.WithDescription("Total number of failed signature submissions"),
		metric.WithUnit("{error}"),
	)

	m.SignDuration, _ = meter.Float64Histogram(
		"docsign.sign.duration",
		metric.WithDescription("Duration of signature submissions"),
		metric.WithUnit("ms"),
	)

	m.RealtimeReconnectsTotal, _ = meter.Int64Counter(
		"docsign.realtime.reconnects.total",
		metric.WithDescription("Total number of realtime channel reconnect attempts"),
		metric.WithUnit("{attempt}"),
	)

	m.RealtimeEventsTotal, _ = meter.Int64Counter(
		"docsign.realtime.events.total",
		metric.WithDescription("Total number of realtime events received"),
		metric.WithUnit("{event}"),
	)

	return m
}
