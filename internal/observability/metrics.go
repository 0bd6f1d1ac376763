package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// refresh pipeline.
type Metrics struct {
	RefreshesTotal  prometheus.Counter
	RefreshErrors   prometheus.Counter
	RefreshDuration prometheus.Histogram
	PipelineRunning prometheus.Gauge

	// Dataset metrics, updated after each successful refresh.
	SamplesFetched   prometheus.Counter
	DatasetSamples   prometheus.Gauge
	StationsTracked  prometheus.Gauge
	GlobalUpperBound prometheus.Gauge
	CompositePoints  prometheus.Gauge

	// Kafka publishing metrics.
	PublishesTotal prometheus.Counter
	PublishErrors  prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.RefreshesTotal,
		m.RefreshErrors,
		m.RefreshDuration,
		m.PipelineRunning,
		m.SamplesFetched,
		m.DatasetSamples,
		m.StationsTracked,
		m.GlobalUpperBound,
		m.CompositePoints,
		m.PublishesTotal,
		m.PublishErrors,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RefreshesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wastewater",
			Name:      "refreshes_total",
			Help:      "Total successful dataset refresh cycles.",
		}),
		RefreshErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wastewater",
			Name:      "refresh_errors_total",
			Help:      "Total failed dataset refresh cycles.",
		}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wastewater",
			Name:      "refresh_duration_seconds",
			Help:      "Duration of a complete fetch-merge-aggregate cycle.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wastewater",
			Name:      "pipeline_running",
			Help:      "1 when the refresh loop is active, 0 when shut down.",
		}),
		SamplesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wastewater",
			Name:      "samples_fetched_total",
			Help:      "Total raw samples fetched from the health-monitoring API.",
		}),
		DatasetSamples: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wastewater",
			Name:      "dataset_samples",
			Help:      "Raw samples currently in the persisted dataset.",
		}),
		StationsTracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wastewater",
			Name:      "stations_tracked",
			Help:      "Distinct stations present in the dataset.",
		}),
		GlobalUpperBound: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wastewater",
			Name:      "global_upper_bound",
			Help:      "Shared chart axis maximum across all station series.",
		}),
		CompositePoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "wastewater",
			Name:      "composite_points",
			Help:      "Points in the population-weighted composite series.",
		}),
		PublishesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wastewater",
			Name:      "publishes_total",
			Help:      "Total composite series publications to Kafka.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wastewater",
			Name:      "publish_errors_total",
			Help:      "Total failed composite series publications.",
		}),
	}
}
