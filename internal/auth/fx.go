package auth

import (
	"context"
	"strings"

	"github.com/smallbiznis/importduty/internal/auth/domain"
	"github.com/smallbiznis/importduty/internal/auth/repository"
	"github.com/smallbiznis/importduty/internal/auth/service"
	"github.com/smallbiznis/importduty/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("auth.service",
	fx.Provide(repository.New),
	fx.Provide(service.New),
	fx.Invoke(registerAdminBootstrap),
)

// registerAdminBootstrap provisions the configured administrator once the
// schema is in place.
func registerAdminBootstrap(lc fx.Lifecycle, cfg config.Config, svc domain.Service, log *zap.Logger) {
	if strings.TrimSpace(cfg.AuthAdminEmail) == "" {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			_, err := svc.EnsureAdmin(ctx, domain.BootstrapAdminRequest{
				Name:     cfg.AuthAdminName,
				Email:    cfg.AuthAdminEmail,
				Password: cfg.AuthAdminPassword,
			})
			if err != nil {
				log.Error("admin bootstrap failed", zap.Error(err))
			}
			return err
		},
	})
}
