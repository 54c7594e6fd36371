package exchangerate

import (
	"github.com/smallbiznis/importduty/internal/exchangerate/service"
	"github.com/smallbiznis/importduty/internal/exchangerate/source"
	"go.uber.org/fx"
)

var Module = fx.Module("exchangerate.service",
	fx.Provide(source.NewHTTPSource),
	fx.Provide(service.NewRateCache),
	fx.Provide(service.New),
)
