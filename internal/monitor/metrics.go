package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "pricewatch"
	metricsSubsystem = "monitor"
)

// Metrics holds the scheduler's Prometheus collectors.
type Metrics struct {
	CyclesTotal        *prometheus.CounterVec
	CycleDuration      prometheus.Histogram
	ProductsProcessed  *prometheus.CounterVec
	MarginEvents       *prometheus.CounterVec
	ChannelUpdates     *prometheus.CounterVec
	FetchFailureAlerts prometheus.Counter
}

// NewMetrics registers the collectors on reg, or on the default registerer
// when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		CyclesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "cycles_total",
			Help:      "Monitoring cycles by result",
		}, []string{"result"}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of a monitoring cycle",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		ProductsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "products_processed_total",
			Help:      "Products processed by outcome",
		}, []string{"outcome"}),
		MarginEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "margin_events_total",
			Help:      "Margin events recorded by kind",
		}, []string{"kind"}),
		ChannelUpdates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "channel_updates_total",
			Help:      "Channel update calls by channel and result",
		}, []string{"channel", "result"}),
		FetchFailureAlerts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "fetch_failure_alerts_total",
			Help:      "Alerts raised for products reaching the failure threshold",
		}),
	}
}
