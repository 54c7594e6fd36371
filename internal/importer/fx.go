package importer

import (
	"github.com/smallbiznis/importduty/internal/importer/service"
	"go.uber.org/fx"
)

var Module = fx.Module("importer.service",
	fx.Provide(service.New),
)
