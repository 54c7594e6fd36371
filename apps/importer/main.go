package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/smallbiznis/importduty/internal/audit"
	"github.com/smallbiznis/importduty/internal/cache"
	"github.com/smallbiznis/importduty/internal/clock"
	"github.com/smallbiznis/importduty/internal/config"
	"github.com/smallbiznis/importduty/internal/events"
	"github.com/smallbiznis/importduty/internal/importer"
	importerdomain "github.com/smallbiznis/importduty/internal/importer/domain"
	"github.com/smallbiznis/importduty/internal/migration"
	"github.com/smallbiznis/importduty/internal/observability"
	obscontext "github.com/smallbiznis/importduty/internal/observability/context"
	"github.com/smallbiznis/importduty/internal/observability/metrics"
	"github.com/smallbiznis/importduty/internal/providers"
	"github.com/smallbiznis/importduty/internal/ratelimit"
	"github.com/smallbiznis/importduty/internal/tax"
	"github.com/smallbiznis/importduty/internal/vehicle"
	"github.com/smallbiznis/importduty/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	path := flag.String("file", "./data/vehicles.xlsx", "path to the .xlsx workbook")
	timeout := flag.Duration("timeout", 10*time.Minute, "import deadline")
	flag.Parse()

	var (
		svc    importerdomain.Service
		log    *zap.Logger
		cfg    config.Config
		obsCfg metrics.Config
	)
	app := fx.New(
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
		audit.Module,
		tax.Module,
		vehicle.Module,
		importer.Module,
		fx.Populate(&svc, &log, &cfg, &obsCfg),
		fx.NopLogger,
	)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		panic(err)
	}
	runMetrics := metrics.NewImportRunMetrics(obsCfg)
	code := run(ctx, svc, log, runMetrics, *path)
	pushRunMetrics(cfg, log, runMetrics)
	if err := app.Stop(context.Background()); err != nil {
		log.Warn("shutdown failed", zap.Error(err))
	}
	cancel()
	os.Exit(code)
}

func run(ctx context.Context, svc importerdomain.Service, log *zap.Logger, runMetrics *metrics.ImportRunMetrics, path string) int {
	f, err := os.Open(path)
	if err != nil {
		log.Error("open workbook failed", zap.String("path", path), zap.Error(err))
		return 1
	}
	defer f.Close()

	start := time.Now()
	ctx = obscontext.WithRequestID(ctx, uuid.NewString())
	report, err := svc.Import(ctx, f)
	if err != nil {
		runMetrics.Observe(0, 0, time.Since(start), time.Now(), err)
		log.Error("import failed", zap.String("path", path), zap.Error(err))
		return 1
	}
	runMetrics.Observe(report.Imported, len(report.Errors), time.Since(start), time.Now(), nil)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		log.Error("write report failed", zap.Error(err))
		return 1
	}
	if len(report.Errors) > 0 {
		return 2
	}
	return 0
}

func pushRunMetrics(cfg config.Config, log *zap.Logger, runMetrics *metrics.ImportRunMetrics) {
	pusher := metrics.NewPusher(metrics.PushConfig{
		Exporter:    cfg.MetricsPush.Exporter,
		Endpoint:    cfg.MetricsPush.Endpoint,
		AuthToken:   cfg.MetricsPush.AuthToken,
		Job:         "importduty-importer",
		Environment: cfg.Environment,
	}, log)
	if pusher == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := pusher.Push(ctx, runMetrics.Registry()); err != nil {
		log.Warn("metrics push failed", zap.Error(err))
	}
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(2)
	if err != nil {
		panic(err)
	}
	return node
}
