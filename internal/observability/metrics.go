package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// resolution pipeline.
type Metrics struct {
	// Streaming pipeline.
	MessagesConsumed prometheus.Counter
	MessagesProduced prometheus.Counter
	TransformErrors  prometheus.Counter
	PipelineRunning  prometheus.Gauge
	BatchSize        prometheus.Histogram
	BatchDuration    prometheus.Histogram

	// Resolution tiers.
	Resolutions        *prometheus.CounterVec // labels: source, status
	CacheLookups       *prometheus.CounterVec // labels: result={hit,miss}
	SynonymHits        prometheus.Counter
	SingleflightShared prometheus.Counter

	// External provider.
	GeocodeRequests *prometheus.CounterVec // labels: outcome={success,no_result,timeout,error}
	GeocodeDuration prometheus.Histogram

	// Failure ledger.
	RetriesSkipped prometheus.Counter
	Escalations    prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus
// registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.MessagesConsumed,
		m.MessagesProduced,
		m.TransformErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchDuration,
		m.Resolutions,
		m.CacheLookups,
		m.SynonymHits,
		m.SingleflightShared,
		m.GeocodeRequests,
		m.GeocodeDuration,
		m.RetriesSkipped,
		m.Escalations,
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
		MessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "addr_resolver",
			Name:      "messages_consumed_total",
			Help:      "Total stop records read from the source topic.",
		}),
		MessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "addr_resolver",
			Name:      "messages_produced_total",
			Help:      "Total resolved stops written to the sink topic.",
		}),
		TransformErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "addr_resolver",
			Name:      "transform_errors_total",
			Help:      "Total stop records skipped due to unparseable payloads.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "addr_resolver",
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "addr_resolver",
			Name:      "batch_size",
			Help:      "Number of messages per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "addr_resolver",
			Name:      "batch_processing_duration_seconds",
			Help:      "Wall time per extract-resolve-publish cycle.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		Resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "addr_resolver",
			Name:      "resolutions_total",
			Help:      "Resolution outcomes by source tier and status.",
		}, []string{"source", "status"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "addr_resolver",
			Name:      "cache_lookups_total",
			Help:      "Geo cache lookups by result.",
		}, []string{"result"}),
		SynonymHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "addr_resolver",
			Name:      "synonym_hits_total",
			Help:      "Resolutions answered by the synonym store.",
		}),
		SingleflightShared: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "addr_resolver",
			Name:      "singleflight_shared_total",
			Help:      "Concurrent resolutions that piggybacked on an in-flight provider call.",
		}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "addr_resolver",
			Name:      "geocode_requests_total",
			Help:      "External geocoder calls by outcome.",
		}, []string{"outcome"}),
		GeocodeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "addr_resolver",
			Name:      "geocode_request_duration_seconds",
			Help:      "External geocoder request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}),
		RetriesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "addr_resolver",
			Name:      "retries_skipped_total",
			Help:      "Resolutions skipped because the key is still backing off.",
		}),
		Escalations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "addr_resolver",
			Name:      "escalations_total",
			Help:      "Keys escalated to the manual review queue.",
		}),
	}
}
