package metrics

import (
	"net/http"

	"airexport/internal/etl"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "airexport"

// Collector records export metrics on its own registry. It implements
// etl.Recorder.
//
// Metrics:
//   - airexport_rows_fetched_total{table}
//   - airexport_rows_exported_total{kind}
//   - airexport_dangling_references_total{kind}
//   - airexport_runs_total{kind,status}
//   - airexport_run_duration_seconds{kind}
//   - airexport_upload_failures_total{kind}
type Collector struct {
	registry *prometheus.Registry

	rowsFetched    *prometheus.CounterVec
	rowsExported   *prometheus.CounterVec
	dangling       *prometheus.CounterVec
	runs           *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
	uploadFailures *prometheus.CounterVec
}

// NewCollector creates a collector. A nil registry gets a fresh one.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	c := &Collector{
		registry: registry,
		rowsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_fetched_total",
			Help:      "Rows fetched from the source, by table.",
		}, []string{"table"}),
		rowsExported: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_exported_total",
			Help:      "Rows written to export files, by kind.",
		}, []string{"kind"}),
		dangling: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dangling_references_total",
			Help:      "Linked record ids with no matching referenced row.",
		}, []string{"kind"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Finished export runs, by kind and status.",
		}, []string{"kind", "status"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of export runs.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"kind"}),
		uploadFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_failures_total",
			Help:      "Archive uploads that failed after a successful write.",
		}, []string{"kind"}),
	}
	registry.MustRegister(c.rowsFetched, c.rowsExported, c.dangling, c.runs, c.runDuration, c.uploadFailures)
	return c
}

// TableFetched implements etl.Recorder.
func (c *Collector) TableFetched(table string, rows int) {
	c.rowsFetched.WithLabelValues(table).Add(float64(rows))
}

// ExportFinished implements etl.Recorder.
func (c *Collector) ExportFinished(r *etl.ExportResult) {
	c.runs.WithLabelValues(r.Kind, r.Status).Inc()
	c.runDuration.WithLabelValues(r.Kind).Observe(r.Duration.Seconds())
	c.dangling.WithLabelValues(r.Kind).Add(float64(r.DanglingRefs))
	if r.Status == etl.StatusSuccess {
		c.rowsExported.WithLabelValues(r.Kind).Add(float64(r.RowsWritten))
	}
	if r.UploadError != "" {
		c.uploadFailures.WithLabelValues(r.Kind).Inc()
	}
}

// Registry returns the registry metrics are registered on.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns an HTTP handler serving the registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
