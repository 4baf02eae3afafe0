package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports ingestion counters. A nil *Metrics records nothing.
type Metrics struct {
	rows     *prometheus.CounterVec
	runs     *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewMetrics creates the ingestion collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lims",
			Subsystem: "ingest",
			Name:      "rows_total",
			Help:      "Rows processed by ingestion, by outcome.",
		}, []string{"outcome"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lims",
			Subsystem: "ingest",
			Name:      "runs_total",
			Help:      "Ingestion runs, by result.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lims",
			Subsystem: "ingest",
			Name:      "run_duration_seconds",
			Help:      "Wall time of completed ingestion runs.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.rows, m.runs, m.duration)
	}
	return m
}

// Run results.
const (
	runCompleted  = "completed"
	runStructural = "structural_error"
	runFailed     = "failed"
)

func (m *Metrics) observeRun(result string, res *Result) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(result).Inc()
	if res == nil {
		return
	}
	m.rows.WithLabelValues("accepted").Add(float64(res.AcceptedCount))
	m.rows.WithLabelValues("rejected").Add(float64(res.RejectedCount))
	m.rows.WithLabelValues("skipped_test").Add(float64(res.SkippedTestRows))
	if !res.FinishedAt.IsZero() {
		m.duration.Observe(res.FinishedAt.Sub(res.StartedAt).Seconds())
	}
}
