package pdf

import (
	"context"
	"io"

	"go.uber.org/fx"
)

var Module = fx.Module("providers.pdf",
	fx.Provide(New),
)

type Provider interface {
	GenerateBreakdown(ctx context.Context, sheet BreakdownSheet) (io.Reader, error)
}

type NoOpProvider struct{}

func (p *NoOpProvider) GenerateBreakdown(ctx context.Context, sheet BreakdownSheet) (io.Reader, error) {
	return nil, nil
}
