package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// extraction pipeline. Exposition is the caller's concern; this module is a
// library and serves no /metrics endpoint itself.
type Metrics struct {
	FeaturesSelected  prometheus.Counter
	DuplicatesDropped prometheus.Counter
	GeometriesDecoded prometheus.Counter
	DecodeFailures    prometheus.Counter
	FeaturesExported  prometheus.Counter
	PipelineRunning   prometheus.Gauge

	// StageDuration observes wall time per pipeline stage,
	// labelled stage={extract,normalize,render,export}.
	StageDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		FeaturesSelected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reef_etl",
			Name:      "features_selected_total",
			Help:      "Total feature rows materialized from the source dataset.",
		}),
		DuplicatesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reef_etl",
			Name:      "duplicates_dropped_total",
			Help:      "Total exact-duplicate rows removed during selection.",
		}),
		GeometriesDecoded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reef_etl",
			Name:      "geometries_decoded_total",
			Help:      "Total WKB payloads decoded into structured geometry.",
		}),
		DecodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reef_etl",
			Name:      "geometry_decode_failures_total",
			Help:      "Total malformed or absent WKB payloads encountered.",
		}),
		FeaturesExported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reef_etl",
			Name:      "features_exported_total",
			Help:      "Total features written to shapefile output.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "reef_etl",
			Name:      "pipeline_running",
			Help:      "1 while a pipeline run is active, 0 otherwise.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "reef_etl",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),
	}

	prometheus.MustRegister(
		m.FeaturesSelected,
		m.DuplicatesDropped,
		m.GeometriesDecoded,
		m.DecodeFailures,
		m.FeaturesExported,
		m.PipelineRunning,
		m.StageDuration,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		FeaturesSelected:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "reef_etl", Name: "features_selected_total"}),
		DuplicatesDropped: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "reef_etl", Name: "duplicates_dropped_total"}),
		GeometriesDecoded: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "reef_etl", Name: "geometries_decoded_total"}),
		DecodeFailures:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "reef_etl", Name: "geometry_decode_failures_total"}),
		FeaturesExported:  prometheus.NewCounter(prometheus.CounterOpts{Namespace: "reef_etl", Name: "features_exported_total"}),
		PipelineRunning:   prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "reef_etl", Name: "pipeline_running"}),
		StageDuration:     prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "reef_etl", Name: "stage_duration_seconds"}, []string{"stage"}),
	}
}
