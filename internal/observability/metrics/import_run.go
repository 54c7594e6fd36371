package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ImportRunMetrics describes one workbook import run on a private registry
// so a pusher sends only the job's own series.
type ImportRunMetrics struct {
	registry    *prometheus.Registry
	rows        *prometheus.GaugeVec
	duration    prometheus.Gauge
	lastSuccess prometheus.Gauge
}

func NewImportRunMetrics(cfg Config) *ImportRunMetrics {
	constLabels := serviceLabels(cfg)

	rows := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name:        "importduty_import_run_rows",
		Help:        "Rows handled by the last import run by outcome.",
		ConstLabels: constLabels,
	}, []string{"outcome"})
	duration := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "importduty_import_run_duration_seconds",
		Help:        "Wall time of the last import run.",
		ConstLabels: constLabels,
	})
	lastSuccess := prometheus.NewGauge(prometheus.GaugeOpts{
		Name:        "importduty_import_run_last_success_timestamp_seconds",
		Help:        "Unix time of the last import run that finished without a fatal error.",
		ConstLabels: constLabels,
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(rows, duration, lastSuccess)

	return &ImportRunMetrics{
		registry:    registry,
		rows:        rows,
		duration:    duration,
		lastSuccess: lastSuccess,
	}
}

// Observe records the outcome of a run. A non-nil err leaves the last
// success timestamp untouched.
func (m *ImportRunMetrics) Observe(imported, failed int, elapsed time.Duration, finishedAt time.Time, err error) {
	if m == nil {
		return
	}
	m.rows.WithLabelValues(OutcomeSuccess).Set(float64(imported))
	m.rows.WithLabelValues(OutcomeFailed).Set(float64(failed))
	m.duration.Set(elapsed.Seconds())
	if err == nil {
		m.lastSuccess.Set(float64(finishedAt.Unix()))
	}
}

func (m *ImportRunMetrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}
