package metrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	OutcomeSuccess = "success"
	OutcomeInvalid = "invalid"
	OutcomeFailed  = "failed"
)

const (
	BatchReasonDeadlineExceeded     = "deadline_exceeded"
	BatchReasonDBLockTimeout        = "db_lock_timeout"
	BatchReasonSerializationFailure = "serialization_failure"
	BatchReasonUniqueViolation      = "unique_violation"
	BatchReasonDB                   = "db"
	BatchReasonUnknown              = "unknown"
)

// CalculationMetrics captures calculator and bulk re-rate health signals.
type CalculationMetrics struct {
	calculations  *prometheus.CounterVec
	entries       *prometheus.CounterVec
	batchDuration *prometheus.HistogramVec
	batchRows     *prometheus.CounterVec
	batchErrors   *prometheus.CounterVec
}

var (
	calculationMetricsOnce sync.Once
	calculationMetrics     *CalculationMetrics
)

// Calculation returns the singleton calculation metrics registry.
func Calculation() *CalculationMetrics {
	return CalculationWithConfig(Config{})
}

// CalculationWithConfig returns the singleton registry using config labels.
func CalculationWithConfig(cfg Config) *CalculationMetrics {
	calculationMetricsOnce.Do(func() {
		calculationMetrics = newCalculationMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return calculationMetrics
}

func newCalculationMetrics(registerer prometheus.Registerer, cfg Config) *CalculationMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	constLabels := serviceLabels(cfg)

	calculations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "importduty_tax_calculations_total",
		Help:        "Tax calculator invocations by outcome.",
		ConstLabels: constLabels,
	}, []string{"outcome"})
	entries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "importduty_tax_breakdowns_total",
		Help:        "Breakdowns produced per price basis.",
		ConstLabels: constLabels,
	}, []string{"price_basis"})
	batchDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "importduty_bulk_rerate_duration_seconds",
		Help:        "Bulk exchange-rate recalculation latency.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		ConstLabels: constLabels,
	}, []string{"trigger"})
	batchRows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "importduty_bulk_rerate_rows_total",
		Help:        "Vehicles recalculated by bulk exchange-rate updates.",
		ConstLabels: constLabels,
	}, []string{"trigger"})
	batchErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "importduty_bulk_rerate_errors_total",
		Help:        "Bulk exchange-rate update failures by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"trigger", "reason"})

	registerer.MustRegister(calculations, entries, batchDuration, batchRows, batchErrors)

	return &CalculationMetrics{
		calculations:  calculations,
		entries:       entries,
		batchDuration: batchDuration,
		batchRows:     batchRows,
		batchErrors:   batchErrors,
	}
}

// ObserveCalculation records one calculator call and the bases it produced.
func (m *CalculationMetrics) ObserveCalculation(outcome string, bases []string) {
	if m == nil {
		return
	}
	m.calculations.WithLabelValues(outcome).Inc()
	for _, basis := range bases {
		m.entries.WithLabelValues(basis).Inc()
	}
}

// ObserveBatch records a finished bulk recalculation.
func (m *CalculationMetrics) ObserveBatch(trigger string, rows int, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.batchDuration.WithLabelValues(trigger).Observe(duration.Seconds())
	if rows > 0 {
		m.batchRows.WithLabelValues(trigger).Add(float64(rows))
	}
	if err != nil {
		m.batchErrors.WithLabelValues(trigger, ClassifyBatchReason(err)).Inc()
	}
}

// ClassifyBatchReason maps bulk update errors to low-cardinality reasons.
func ClassifyBatchReason(err error) string {
	switch {
	case err == nil:
		return BatchReasonUnknown
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return BatchReasonDeadlineExceeded
	case hasPGCode(err, "55P03"):
		return BatchReasonDBLockTimeout
	case hasPGCode(err, "40001"):
		return BatchReasonSerializationFailure
	case errors.Is(err, gorm.ErrDuplicatedKey), hasPGCode(err, "23505"):
		return BatchReasonUniqueViolation
	case isDBError(err):
		return BatchReasonDB
	default:
		return BatchReasonUnknown
	}
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

func isDBError(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	if errors.Is(err, gorm.ErrInvalidDB) ||
		errors.Is(err, gorm.ErrInvalidTransaction) ||
		errors.Is(err, gorm.ErrInvalidData) ||
		errors.Is(err, gorm.ErrMissingWhereClause) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr)
}
