package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/importduty/internal/config"
	"github.com/smallbiznis/importduty/internal/exchangerate/domain"
	"github.com/smallbiznis/importduty/internal/ratelimit"
	vehicledomain "github.com/smallbiznis/importduty/internal/vehicle/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubSource struct {
	rates domain.Rates
	err   error
	calls int
}

func (s *stubSource) Latest(context.Context) (domain.Rates, error) {
	s.calls++
	return s.rates, s.err
}

type stubVehicles struct {
	vehicledomain.Service
	requests []vehicledomain.BulkRateRequest
	err      error
}

func (s *stubVehicles) BulkUpdateExchangeRate(_ context.Context, req vehicledomain.BulkRateRequest) (*vehicledomain.BulkRateResult, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	return &vehicledomain.BulkRateResult{UpdatedCount: 3, ExchangeRate: *req.ExchangeRate, Currency: req.Currency}, nil
}

func newTestService(src domain.Source, vehicles vehicledomain.Service, limiter *ratelimit.Limiter) *Service {
	return New(Params{
		Log: zap.NewNop(),
		Rates: config.NewStaticRatesConfigHolder(config.RatesConfig{
			DefaultCurrency: "jpy",
			Fallback:        map[string]float64{"JPY": 2.0, "USD": 300},
			CacheTTLSeconds: 60,
		}),
		Source:   src,
		Cache:    NewRateCache(nil),
		Vehicles: vehicles,
		Limiter:  limiter,
	}).(*Service)
}

func TestRefreshReratesAtConfiguredCurrency(t *testing.T) {
	src := &stubSource{rates: domain.Rates{"JPY": 2.15, "USD": 301}}
	vehicles := &stubVehicles{}
	svc := newTestService(src, vehicles, nil)

	res, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.RefreshedMessage, res.Message)
	assert.Equal(t, "JPY", res.Currency)
	assert.Equal(t, 2.15, res.ExchangeRate)
	assert.Equal(t, 3, res.UpdatedCount)

	require.Len(t, vehicles.requests, 1)
	assert.Equal(t, vehicledomain.TriggerExchange, vehicles.requests[0].Trigger)
	assert.Equal(t, "JPY", vehicles.requests[0].Currency)

	current, err := svc.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.SourceLive, current.Source)
	assert.Equal(t, 301.0, current.Rates["USD"])
}

func TestCurrentFallsBackToConfiguredTable(t *testing.T) {
	svc := newTestService(&stubSource{}, &stubVehicles{}, nil)

	current, err := svc.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.SourceFallback, current.Source)
	assert.Equal(t, "JPY", current.DefaultCurrency)
	assert.Equal(t, domain.Rates{"JPY": 2.0, "USD": 300}, current.Rates)
}

func TestRefreshErrors(t *testing.T) {
	vehicles := &stubVehicles{}

	_, err := newTestService(&stubSource{err: errors.New("dial tcp: refused")}, vehicles, nil).Refresh(context.Background())
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)

	_, err = newTestService(&stubSource{rates: domain.Rates{"USD": 300}}, vehicles, nil).Refresh(context.Background())
	assert.ErrorIs(t, err, domain.ErrRateCurrencyMissing)
	assert.Empty(t, vehicles.requests)

	busy := &stubVehicles{err: vehicledomain.ErrBulkUpdateInProgress}
	_, err = newTestService(&stubSource{rates: domain.Rates{"JPY": 2}}, busy, nil).Refresh(context.Background())
	assert.ErrorIs(t, err, vehicledomain.ErrBulkUpdateInProgress)
}

func TestRefreshIsThrottled(t *testing.T) {
	limiter := ratelimit.NewLimiterWith(ratelimit.NewLocalBucket(), nil, 0.001, 1, time.Minute)
	src := &stubSource{rates: domain.Rates{"JPY": 2}}
	svc := newTestService(src, &stubVehicles{}, limiter)

	_, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	_, err = svc.Refresh(context.Background())
	assert.ErrorIs(t, err, domain.ErrRateLimited)
	assert.Equal(t, 1, src.calls)
}

func TestRateCacheExpiresLocally(t *testing.T) {
	c := NewRateCache(nil)
	ctx := context.Background()

	_, ok, err := c.Get(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, domain.Rates{"JPY": 2}, time.Minute))
	rates, ok, err := c.Get(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 2.0, rates["JPY"])
}
