package domain

import "context"

// Calculator is the single entry point every write, preview and re-rate
// path uses to derive breakdowns.
type Calculator interface {
	Calculate(ctx context.Context, inputs CostInputs, entries []PriceEntry) ([]Breakdown, error)
}
