package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	auditdomain "github.com/smallbiznis/importduty/internal/audit/domain"
	authdomain "github.com/smallbiznis/importduty/internal/auth/domain"
	"github.com/smallbiznis/importduty/internal/authorization"
	"github.com/smallbiznis/importduty/internal/config"
	exchangedomain "github.com/smallbiznis/importduty/internal/exchangerate/domain"
	importerdomain "github.com/smallbiznis/importduty/internal/importer/domain"
	"github.com/smallbiznis/importduty/internal/observability"
	obsmiddleware "github.com/smallbiznis/importduty/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/importduty/internal/observability/metrics"
	obstracing "github.com/smallbiznis/importduty/internal/observability/tracing"
	vehicledomain "github.com/smallbiznis/importduty/internal/vehicle/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) { s.RegisterRoutes() }),
	fx.Invoke(RunHTTP),
)

// maxImportSize caps multipart workbook uploads.
const maxImportSize = 16 << 20

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.MaxMultipartMemory = maxImportSize
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	addr := strings.TrimSpace(cfg.HTTPAddr)
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	log         *zap.Logger
	authsvc     authdomain.Service
	authzSvc    authorization.Service
	auditSvc    auditdomain.Service
	vehicleSvc  vehicledomain.Service
	exchangeSvc exchangedomain.Service
	importerSvc importerdomain.Service
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	Log         *zap.Logger
	Authsvc     authdomain.Service
	AuthzSvc    authorization.Service
	AuditSvc    auditdomain.Service
	VehicleSvc  vehicledomain.Service
	ExchangeSvc exchangedomain.Service
	ImporterSvc importerdomain.Service
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		log:         p.Log.Named("http.server"),
		authsvc:     p.Authsvc,
		authzSvc:    p.AuthzSvc,
		auditSvc:    p.AuditSvc,
		vehicleSvc:  p.VehicleSvc,
		exchangeSvc: p.ExchangeSvc,
		importerSvc: p.ImporterSvc,
	}
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) RegisterRoutes() {
	api := s.engine.Group("/api", s.AuthRequired())

	// -------- Auth --------
	api.GET("/auth/me", s.Me)
	api.POST("/auth/register-agent", s.authorize(authorization.ObjectUser, authorization.ActionAgentRegister), s.RegisterAgent)

	// -------- Vehicles --------
	vehicles := api.Group("/vehicles")
	{
		vehicles.GET("", s.authorize(authorization.ObjectVehicle, authorization.ActionVehicleView), s.ListVehicles)
		vehicles.POST("", s.authorize(authorization.ObjectVehicle, authorization.ActionVehicleCreate), s.CreateVehicle)
		vehicles.POST("/preview", s.authorize(authorization.ObjectVehicle, authorization.ActionVehiclePreview), s.PreviewVehicle)
		vehicles.POST("/bulk-update-exchange-rate", s.authorize(authorization.ObjectVehicle, authorization.ActionVehicleBulkRate), s.BulkUpdateExchangeRate)
		vehicles.POST("/import", s.authorize(authorization.ObjectVehicle, authorization.ActionVehicleImport), s.ImportVehicles)
		vehicles.GET("/manufacturers", s.authorize(authorization.ObjectVehicle, authorization.ActionVehicleView), s.ListManufacturers)
		vehicles.GET("/manufacturer/:manufacturer", s.authorize(authorization.ObjectVehicle, authorization.ActionVehicleView), s.ListVehiclesByManufacturer)
		vehicles.GET("/:id", s.authorize(authorization.ObjectVehicle, authorization.ActionVehicleView), s.GetVehicleByID)
		vehicles.GET("/:id/breakdown.pdf", s.authorize(authorization.ObjectVehicle, authorization.ActionVehicleRender), s.RenderVehicleBreakdown)
		vehicles.PUT("/:id", s.authorize(authorization.ObjectVehicle, authorization.ActionVehicleUpdate), s.UpdateVehicle)
		vehicles.DELETE("/:id", s.authorize(authorization.ObjectVehicle, authorization.ActionVehicleDelete), s.DeleteVehicle)
	}

	// -------- Exchange rates --------
	api.GET("/exchange/rates", s.authorize(authorization.ObjectExchange, authorization.ActionExchangeView), s.GetExchangeRates)
	api.POST("/exchange/update", s.authorize(authorization.ObjectExchange, authorization.ActionExchangeRefresh), s.RefreshExchangeRates)

	api.GET("/audit-logs", s.authorize(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListAuditLogs)
}
