package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("operation", "create"),
		attribute.String("vehicle_id", "456"),
		attribute.String("price_basis", "yellowBook"),
	)
	require.Len(t, attrs, 2)
	assert.Equal(t, attribute.Key("operation"), attrs[0].Key)
	assert.Equal(t, attribute.Key("price_basis"), attrs[1].Key)
}

func TestClassifyBatchReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: BatchReasonDeadlineExceeded},
		{name: "canceled_wrapped", err: fmt.Errorf("rerate: %w", context.Canceled), want: BatchReasonDeadlineExceeded},
		{name: "lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: BatchReasonDBLockTimeout},
		{name: "serialization", err: &pgconn.PgError{Code: "40001"}, want: BatchReasonSerializationFailure},
		{name: "unique", err: gorm.ErrDuplicatedKey, want: BatchReasonUniqueViolation},
		{name: "other_pg", err: &pgconn.PgError{Code: "XX000"}, want: BatchReasonDB},
		{name: "plain", err: errors.New("boom"), want: BatchReasonUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyBatchReason(tc.err))
		})
	}
}

func TestCalculationMetricsCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newCalculationMetrics(reg, Config{ServiceName: "test", Environment: "test"})

	m.ObserveCalculation(OutcomeSuccess, []string{"yellowBook", "webValue"})
	m.ObserveCalculation(OutcomeInvalid, nil)
	m.ObserveBatch("manual", 3, 20*time.Millisecond, nil)
	m.ObserveBatch("manual", 0, time.Millisecond, context.DeadlineExceeded)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.calculations.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.calculations.WithLabelValues(OutcomeInvalid)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.entries.WithLabelValues("webValue")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.batchRows.WithLabelValues("manual")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.batchErrors.WithLabelValues("manual", BatchReasonDeadlineExceeded)))
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	m, err := newHTTPMetrics(reg, Config{})
	require.NoError(t, err)

	r := gin.New()
	r.Use(GinMiddleware(m))
	r.GET("/api/vehicles/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/vehicles/1", nil))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.requests.WithLabelValues("GET", "/api/vehicles/:id", "404")))

	again, err := newHTTPMetrics(reg, Config{})
	require.NoError(t, err)
	assert.Same(t, m.requests, again.requests)
}
