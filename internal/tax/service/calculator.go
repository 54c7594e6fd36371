package service

import (
	"context"
	"errors"

	"github.com/smallbiznis/importduty/internal/observability/metrics"
	taxdomain "github.com/smallbiznis/importduty/internal/tax/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type calculatorParams struct {
	fx.In

	Log     *zap.Logger
	Metrics *metrics.CalculationMetrics `optional:"true"`
}

type Calculator struct {
	log     *zap.Logger
	metrics *metrics.CalculationMetrics
}

func NewCalculator(p calculatorParams) taxdomain.Calculator {
	return &Calculator{
		log:     p.Log.Named("tax.calculator"),
		metrics: p.Metrics,
	}
}

func (c *Calculator) Calculate(ctx context.Context, inputs taxdomain.CostInputs, entries []taxdomain.PriceEntry) ([]taxdomain.Breakdown, error) {
	out, err := Compute(inputs, entries)
	if err != nil {
		var verr *taxdomain.ValidationError
		if errors.As(err, &verr) {
			c.metrics.ObserveCalculation(metrics.OutcomeInvalid, nil)
			c.log.Debug("calculation rejected", zap.String("field", verr.Field), zap.Error(verr.Code))
		} else {
			c.metrics.ObserveCalculation(metrics.OutcomeFailed, nil)
		}
		return nil, err
	}

	bases := make([]string, 0, len(out))
	for _, b := range out {
		bases = append(bases, b.PriceBasis.String())
	}
	c.metrics.ObserveCalculation(metrics.OutcomeSuccess, bases)
	return out, nil
}
