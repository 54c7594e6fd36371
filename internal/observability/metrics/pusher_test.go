package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang/snappy"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/prometheus/prometheus/prompb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewPusherDisabled(t *testing.T) {
	assert.Nil(t, NewPusher(PushConfig{}, zap.NewNop()))
	assert.Nil(t, NewPusher(PushConfig{Exporter: ExporterPushgateway}, zap.NewNop()))
	assert.Nil(t, NewPusher(PushConfig{Exporter: ExporterRemoteWrite, Endpoint: "not a url"}, zap.NewNop()))
	assert.Nil(t, NewPusher(PushConfig{Exporter: "statsd", Endpoint: "http://localhost"}, zap.NewNop()))
}

func TestImportRunMetricsObserve(t *testing.T) {
	m := NewImportRunMetrics(Config{ServiceName: "test", Environment: "test"})
	finished := time.Unix(1700000000, 0)

	m.Observe(5, 2, 3*time.Second, finished, nil)
	assert.Equal(t, 5.0, testutil.ToFloat64(m.rows.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.rows.WithLabelValues(OutcomeFailed)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.duration))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(m.lastSuccess))

	m.Observe(0, 0, time.Second, finished.Add(time.Hour), assert.AnError)
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(m.lastSuccess))
}

func TestRemoteWritePusherSendsSnappyProtobuf(t *testing.T) {
	var got prompb.WriteRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "snappy", r.Header.Get("Content-Encoding"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		decoded, err := snappy.Decode(nil, body)
		require.NoError(t, err)
		require.NoError(t, got.Unmarshal(decoded))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	m := NewImportRunMetrics(Config{ServiceName: "test", Environment: "test"})
	m.Observe(4, 1, time.Second, time.Unix(1700000000, 0), nil)

	pusher := NewPusher(PushConfig{Exporter: ExporterRemoteWrite, Endpoint: srv.URL, AuthToken: "secret"}, zap.NewNop())
	require.NotNil(t, pusher)
	require.NoError(t, pusher.Push(context.Background(), m.Registry()))

	names := map[string]int{}
	for _, series := range got.Timeseries {
		for _, label := range series.Labels {
			if label.Name == "__name__" {
				names[label.Value]++
			}
		}
	}
	assert.Equal(t, 2, names["importduty_import_run_rows"])
	assert.Equal(t, 1, names["importduty_import_run_duration_seconds"])
}

func TestRemoteWritePusherReportsRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	m := NewImportRunMetrics(Config{})
	m.Observe(1, 0, time.Second, time.Now(), nil)

	err := NewRemoteWritePusher(srv.URL, "").Push(context.Background(), m.Registry())
	assert.ErrorContains(t, err, "400")
}

func TestPushgatewayPusherUsesJobAndGrouping(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewImportRunMetrics(Config{})
	m.Observe(1, 0, time.Second, time.Now(), nil)

	pusher := NewPusher(PushConfig{Exporter: ExporterPushgateway, Endpoint: srv.URL, Job: "importer", Environment: "staging"}, zap.NewNop())
	require.NotNil(t, pusher)
	require.NoError(t, pusher.Push(context.Background(), m.Registry()))
	assert.Equal(t, "/metrics/job/importer/environment/staging", path)
}
