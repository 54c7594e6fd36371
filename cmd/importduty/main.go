package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/importduty/internal/audit"
	"github.com/smallbiznis/importduty/internal/auth"
	"github.com/smallbiznis/importduty/internal/authorization"
	"github.com/smallbiznis/importduty/internal/cache"
	"github.com/smallbiznis/importduty/internal/clock"
	"github.com/smallbiznis/importduty/internal/config"
	"github.com/smallbiznis/importduty/internal/events"
	"github.com/smallbiznis/importduty/internal/exchangerate"
	"github.com/smallbiznis/importduty/internal/importer"
	"github.com/smallbiznis/importduty/internal/migration"
	"github.com/smallbiznis/importduty/internal/observability"
	"github.com/smallbiznis/importduty/internal/providers"
	"github.com/smallbiznis/importduty/internal/ratelimit"
	"github.com/smallbiznis/importduty/internal/server"
	"github.com/smallbiznis/importduty/internal/tax"
	"github.com/smallbiznis/importduty/internal/vehicle"
	"github.com/smallbiznis/importduty/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		cache.Module,
		ratelimit.Module,
		events.Module,
		providers.Module,

		// Functional Domains
		audit.Module,
		auth.Module,
		authorization.Module,
		tax.Module,
		vehicle.Module,
		exchangerate.Module,
		importer.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
