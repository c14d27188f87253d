// Package observability holds the Prometheus metrics of a pipeline run. A
// batch run has no scrape endpoint, so metrics are flushed to a node_exporter
// textfile at the end.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/YuminosukeSato/firehazard/pkg/errors"
)

const namespace = "firehazard"

// Metrics holds the counters, histograms and gauges of one pipeline run.
type Metrics struct {
	ValidPixels prometheus.Gauge

	LayersLoaded  *prometheus.CounterVec   // labels: catalog
	Samples       *prometheus.GaugeVec     // labels: split={train,test}
	UnmappedCells *prometheus.CounterVec   // labels: code
	StageDuration *prometheus.HistogramVec // labels: stage
	ModelScore    *prometheus.GaugeVec     // labels: metric={auc_train,auc_test,mse,accuracy}
	HazardCells   *prometheus.GaugeVec     // labels: scenario, class

	registry *prometheus.Registry
}

func newMetrics() *Metrics {
	return &Metrics{
		LayersLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "layers_loaded_total",
			Help:      "Raster layers read into catalogs.",
		}, []string{"catalog"}),
		ValidPixels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "valid_pixels",
			Help:      "Cells inside the validity mask.",
		}),
		Samples: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "samples",
			Help:      "Rows of the balanced sample by split.",
		}, []string{"split"}),
		UnmappedCells: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unmapped_cells_total",
			Help:      "Land cover cells whose code has no fuel class.",
		}, []string{"code"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
		}, []string{"stage"}),
		ModelScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_score",
			Help:      "Evaluation scores of the susceptibility model.",
		}, []string{"metric"}),
		HazardCells: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hazard_cells",
			Help:      "Cells per hazard class and scenario.",
		}, []string{"scenario", "class"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.LayersLoaded,
		m.ValidPixels,
		m.Samples,
		m.UnmappedCells,
		m.StageDuration,
		m.ModelScore,
		m.HazardCells,
	}
}

// NewMetrics creates the metrics and registers them with reg. A nil reg
// uses a fresh registry, which WriteTextfile then gathers from.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := newMetrics()
	m.registry = reg
	reg.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics on a private registry.
func NewMetricsForTesting() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

// Registry returns the registry the metrics are registered with.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// WriteTextfile writes all metrics in the text exposition format to path.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return errors.Wrapf(err, "write metrics textfile %s", path)
	}
	return nil
}
