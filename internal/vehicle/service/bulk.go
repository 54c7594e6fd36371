package service

import (
	"context"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	auditdomain "github.com/smallbiznis/importduty/internal/audit/domain"
	"github.com/smallbiznis/importduty/internal/events"
	"github.com/smallbiznis/importduty/internal/vehicle/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// BulkUpdateExchangeRate re-rates every stored vehicle at the given rate.
// Recalculation fans out across a bounded worker pool; rows are written in a
// single transaction so a failed entry leaves the table untouched.
func (s *Service) BulkUpdateExchangeRate(ctx context.Context, req domain.BulkRateRequest) (*domain.BulkRateResult, error) {
	if req.ExchangeRate == nil {
		return nil, domain.ErrInvalidExchangeRate
	}
	rate := *req.ExchangeRate
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
		return nil, domain.ErrInvalidExchangeRate
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	trigger := req.Trigger
	if trigger == "" {
		trigger = domain.TriggerManual
	}

	token, ok, err := s.limiter.TryLockBulkRate(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrBulkUpdateInProgress
	}
	defer func() {
		if err := s.limiter.ReleaseBulkRate(context.WithoutCancel(ctx), token); err != nil {
			s.log.Warn("failed to release bulk rate lock", zap.Error(err))
		}
	}()

	start := s.clock.Now()
	updated, err := s.rerateAll(ctx, rate, currency)
	s.calcMetrics.ObserveBatch(trigger, updated, s.clock.Now().Sub(start), err)
	if err != nil {
		s.log.Error("bulk exchange rate update failed",
			zap.String("trigger", trigger),
			zap.Float64("exchange_rate", rate),
			zap.Error(err),
		)
		return nil, err
	}

	if updated == 0 {
		return &domain.BulkRateResult{
			Message:      domain.NoVehiclesMessage,
			UpdatedCount: 0,
			ExchangeRate: rate,
			Currency:     currency,
		}, nil
	}

	metadata := map[string]any{
		"updated_count": updated,
		"exchange_rate": rate,
		"currency":      currency,
		"trigger":       trigger,
	}
	if s.audit != nil {
		if err := s.audit.Record(ctx, auditdomain.Entry{
			Action:     auditdomain.ActionBulkRate,
			TargetType: "vehicle",
			Metadata:   metadata,
		}); err != nil {
			s.log.Warn("audit record failed", zap.String("action", auditdomain.ActionBulkRate), zap.Error(err))
		}
	}
	s.publish(ctx, events.EventVehiclesRerated, 0, metadata)

	s.log.Info("bulk exchange rate update completed",
		zap.String("trigger", trigger),
		zap.Int("updated_count", updated),
		zap.Float64("exchange_rate", rate),
	)

	return &domain.BulkRateResult{
		Message:      fmt.Sprintf("Successfully updated %d vehicles with new exchange rate", updated),
		UpdatedCount: updated,
		ExchangeRate: rate,
		Currency:     currency,
	}, nil
}

// rerateAll recalculates a snapshot of every vehicle on the worker pool, then
// writes the results under row locks. A row that changed after the snapshot
// is recalculated from its locked state; a row deleted meanwhile is skipped.
func (s *Service) rerateAll(ctx context.Context, rate float64, currency string) (int, error) {
	snapshot, err := s.repo.List(ctx, s.db, domain.ListRequest{SortBy: "created_at", OrderBy: "asc"})
	if err != nil {
		return 0, err
	}
	if len(snapshot) == 0 {
		return 0, nil
	}

	now := s.clock.Now().UTC()
	rerated := make([]domain.Vehicle, len(snapshot))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := range snapshot {
		rerated[i] = snapshot[i]
		v := &rerated[i]
		g.Go(func() error {
			return s.rerate(gctx, v, rate, currency, now)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	updated := 0
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range snapshot {
			current, err := s.repo.FindByIDForUpdate(ctx, tx, snapshot[i].ID)
			if err != nil {
				return err
			}
			if current == nil {
				continue
			}
			next := &rerated[i]
			if !reflect.DeepEqual(*current, snapshot[i]) {
				if err := s.rerate(ctx, current, rate, currency, now); err != nil {
					return err
				}
				next = current
			}
			if err := s.repo.Update(ctx, tx, next); err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

func (s *Service) rerate(ctx context.Context, v *domain.Vehicle, rate float64, currency string, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	exchangeRate := rate
	v.ExchangeRate = &exchangeRate
	if currency != "" {
		v.RateCurrency = currency
	}
	v.UpdatedAt = now

	entries := v.Entries()
	if len(entries) == 0 {
		return nil
	}
	breakdowns, err := s.calculator.Calculate(ctx, v.CostInputs(), entries)
	if err != nil {
		return fmt.Errorf("vehicle %d: %w", v.ID, err)
	}
	v.SetBreakdowns(breakdowns)
	return nil
}
