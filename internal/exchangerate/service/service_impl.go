package service

import (
	"context"
	"errors"
	"strings"
	"time"

	auditdomain "github.com/smallbiznis/importduty/internal/audit/domain"
	"github.com/smallbiznis/importduty/internal/config"
	"github.com/smallbiznis/importduty/internal/events"
	"github.com/smallbiznis/importduty/internal/exchangerate/domain"
	obscontext "github.com/smallbiznis/importduty/internal/observability/context"
	"github.com/smallbiznis/importduty/internal/observability/metrics"
	"github.com/smallbiznis/importduty/internal/ratelimit"
	vehicledomain "github.com/smallbiznis/importduty/internal/vehicle/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log       *zap.Logger
	Cfg       config.Config
	Rates     *config.RatesConfigHolder
	Source    domain.Source
	Cache     domain.RateCache
	Vehicles  vehicledomain.Service
	Audit     auditdomain.Service
	Publisher events.Publisher

	Limiter *ratelimit.Limiter `optional:"true"`
	Metrics *metrics.Metrics   `optional:"true"`
}

type Service struct {
	log       *zap.Logger
	cfg       config.Config
	rates     *config.RatesConfigHolder
	source    domain.Source
	cache     domain.RateCache
	vehicles  vehicledomain.Service
	audit     auditdomain.Service
	publisher events.Publisher
	limiter   *ratelimit.Limiter
	metrics   *metrics.Metrics
}

func New(p Params) domain.Service {
	publisher := p.Publisher
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Service{
		log:       p.Log.Named("exchangerate.service"),
		cfg:       p.Cfg,
		rates:     p.Rates,
		source:    p.Source,
		cache:     p.Cache,
		vehicles:  p.Vehicles,
		audit:     p.Audit,
		publisher: publisher,
		limiter:   p.Limiter,
		metrics:   p.Metrics,
	}
}

// Refresh pulls the latest rates and re-rates every stored vehicle at the
// configured rate currency.
func (s *Service) Refresh(ctx context.Context) (*domain.RefreshResult, error) {
	actorID := ""
	if actor, ok := obscontext.ActorFromContext(ctx); ok {
		actorID = actor.ID
	}
	allowed, err := s.limiter.AllowExchangeRefresh(ctx, actorID)
	if err != nil {
		s.log.Warn("rate limiter unavailable, allowing refresh", zap.Error(err))
	} else if !allowed.Allowed {
		s.metrics.RecordExchangeRefresh(ctx, "rate_limited")
		return nil, domain.ErrRateLimited
	}

	rates, err := s.source.Latest(ctx)
	if err != nil {
		s.metrics.RecordExchangeRefresh(ctx, "source_unavailable")
		s.log.Warn("exchange rate fetch failed", zap.Error(err))
		if !errors.Is(err, domain.ErrSourceUnavailable) {
			err = errors.Join(domain.ErrSourceUnavailable, err)
		}
		return nil, err
	}

	if err := s.cache.Set(ctx, rates, s.cacheTTL()); err != nil {
		s.log.Warn("failed to cache exchange rates", zap.Error(err))
	}

	currency := s.rateCurrency()
	rate, ok := rates[currency]
	if !ok || rate <= 0 {
		s.metrics.RecordExchangeRefresh(ctx, "currency_missing")
		return nil, domain.ErrRateCurrencyMissing
	}

	bulk, err := s.vehicles.BulkUpdateExchangeRate(ctx, vehicledomain.BulkRateRequest{
		ExchangeRate: &rate,
		Currency:     currency,
		Trigger:      vehicledomain.TriggerExchange,
	})
	if err != nil {
		s.metrics.RecordExchangeRefresh(ctx, "failed")
		return nil, err
	}

	s.metrics.RecordExchangeRefresh(ctx, "success")
	metadata := map[string]any{
		"currency":      currency,
		"exchange_rate": rate,
		"updated_count": bulk.UpdatedCount,
	}
	if s.audit != nil {
		if err := s.audit.Record(ctx, auditdomain.Entry{
			Action:     auditdomain.ActionExchangeUpdate,
			TargetType: "exchange_rate",
			TargetID:   currency,
			Metadata:   metadata,
		}); err != nil {
			s.log.Warn("audit record failed", zap.String("action", auditdomain.ActionExchangeUpdate), zap.Error(err))
		}
	}
	if err := s.publisher.Publish(ctx, events.EventExchangeRefreshed, "", metadata); err != nil {
		s.log.Warn("event publish failed", zap.String("event_type", string(events.EventExchangeRefreshed)), zap.Error(err))
	}

	return &domain.RefreshResult{
		Message:      domain.RefreshedMessage,
		Currency:     currency,
		ExchangeRate: rate,
		UpdatedCount: bulk.UpdatedCount,
		Rates:        rates,
	}, nil
}

// Current returns the cached live rates, or the configured fallback table
// when nothing has been fetched yet.
func (s *Service) Current(ctx context.Context) (*domain.CurrentResponse, error) {
	currency := s.rateCurrency()

	rates, ok, err := s.cache.Get(ctx)
	if err != nil {
		s.log.Warn("exchange rate cache read failed", zap.Error(err))
	}
	if err == nil && ok && len(rates) > 0 {
		return &domain.CurrentResponse{Source: domain.SourceLive, DefaultCurrency: currency, Rates: rates}, nil
	}

	fallback := domain.Rates{}
	if s.rates != nil {
		for code, rate := range s.rates.Get().Fallback {
			fallback[code] = rate
		}
	}
	return &domain.CurrentResponse{Source: domain.SourceFallback, DefaultCurrency: currency, Rates: fallback}, nil
}

func (s *Service) rateCurrency() string {
	if s.rates != nil {
		if currency := s.rates.Get().DefaultCurrency; currency != "" {
			return currency
		}
	}
	if currency := strings.ToUpper(strings.TrimSpace(s.cfg.DefaultRateCurrency)); currency != "" {
		return currency
	}
	return "JPY"
}

func (s *Service) cacheTTL() time.Duration {
	if s.rates != nil {
		if ttl := s.rates.Get().CacheTTLSeconds; ttl > 0 {
			return time.Duration(ttl) * time.Second
		}
	}
	return time.Hour
}
