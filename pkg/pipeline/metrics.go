package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline's Prometheus collectors.
type Metrics struct {
	runsTotal    *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	lastSuccess  *prometheus.GaugeVec
	sourceStatus *prometheus.GaugeVec
}

// NewMetrics registers the collectors on registerer (the default registerer
// when nil).
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	f := promauto.With(registerer)
	return &Metrics{
		runsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "covid_pipeline_runs_total",
			Help: "Unit runs by unit and final status",
		}, []string{"unit", "status"}),
		runDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "covid_pipeline_run_duration_seconds",
			Help:    "Wall-clock duration of unit runs",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12), // 0.5s to ~17m
		}, []string{"unit"}),
		lastSuccess: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "covid_pipeline_last_success_timestamp_seconds",
			Help: "Unix time of the last successful run per unit",
		}, []string{"unit"}),
		sourceStatus: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "covid_pipeline_source_http_status",
			Help: "HTTP status of the last availability check per metric (0 on network error)",
		}, []string{"metric"}),
	}
}

func (m *Metrics) observeRun(r RunRecord) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues(r.Unit, r.Status).Inc()
	if r.Status == StatusSkipped {
		return
	}
	m.runDuration.WithLabelValues(r.Unit).Observe(r.Elapsed.Seconds())
	if r.Status == StatusSuccess {
		m.lastSuccess.WithLabelValues(r.Unit).Set(float64(r.FinishedAt.Unix()))
	}
}

func (m *Metrics) observeCheck(metric string, status int) {
	if m == nil {
		return
	}
	m.sourceStatus.WithLabelValues(metric).Set(float64(status))
}
