package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	urlobserver "github.com/vango-dev/urlobserver"
)

// MetricsConfig configures the Prometheus metrics middleware.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "urlobserver").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for navigation duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics middleware.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "urlobserver",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

type metrics struct {
	navigationsTotal   *prometheus.CounterVec
	navigationDuration *prometheus.HistogramVec
	historyOps         *prometheus.CounterVec
	activeConnections  prometheus.Gauge
	archivedEntries    prometheus.Counter
}

// globalMetrics is created by the first call to Prometheus. Every observer
// shares it, so a process registers the collectors once.
var (
	globalMetrics   *metrics
	globalMetricsMu sync.Mutex
)

func initMetrics(config MetricsConfig) *metrics {
	factory := promauto.With(config.Registry)

	return &metrics{
		navigationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "navigations_total",
			Help:        "Total navigation attempts by status and outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"status", "outcome"}),

		navigationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "navigation_duration_seconds",
			Help:        "Navigation processing duration in seconds, before-route handlers included",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"status"}),

		historyOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "history_ops_total",
			Help:        "Total history mutations by operation (push, replace)",
			ConstLabels: config.ConstLabels,
		}, []string{"op"}),

		activeConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "active_connections",
			Help:        "Number of open WebSocket connections",
			ConstLabels: config.ConstLabels,
		}),

		archivedEntries: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "archived_entries_total",
			Help:        "Total audit entries handed to the archive on disconnect",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// Prometheus creates middleware that collects navigation metrics.
//
// Metrics collected:
//   - urlobserver_navigations_total: counter by status and outcome
//   - urlobserver_navigation_duration_seconds: histogram by status
//   - urlobserver_history_ops_total: counter by op for committed navigations
//   - urlobserver_active_connections: gauge (RecordConnectionOpen/Close)
//   - urlobserver_archived_entries_total: counter (RecordConnectionClose)
//
// Options only take effect on the first call; later calls share the
// collectors created then.
func Prometheus(opts ...MetricsOption) urlobserver.Middleware {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	globalMetricsMu.Lock()
	if globalMetrics == nil {
		globalMetrics = initMetrics(config)
	}
	m := globalMetrics
	globalMetricsMu.Unlock()

	return urlobserver.MiddlewareFunc(func(ctx context.Context, nav *urlobserver.Navigation, next func(context.Context) error) error {
		status := nav.Status.String()
		start := time.Now()

		err := next(ctx)

		m.navigationDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())

		outcome := nav.Outcome
		if outcome == "" {
			outcome = urlobserver.OutcomeFailed
		}
		m.navigationsTotal.WithLabelValues(status, string(outcome)).Inc()

		if outcome == urlobserver.OutcomeCommitted {
			op := "push"
			if nav.Replace {
				op = "replace"
			}
			m.historyOps.WithLabelValues(op).Inc()
		}
		return err
	})
}

// RecordConnectionOpen records a new WebSocket connection.
func RecordConnectionOpen() {
	if m := current(); m != nil {
		m.activeConnections.Inc()
	}
}

// RecordConnectionClose records a closed connection and the size of the
// audit trail it left behind.
func RecordConnectionClose(entries int) {
	if m := current(); m != nil {
		m.activeConnections.Dec()
		m.archivedEntries.Add(float64(entries))
	}
}

func current() *metrics {
	globalMetricsMu.Lock()
	defer globalMetricsMu.Unlock()
	return globalMetrics
}
