package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	auditdomain "github.com/smallbiznis/importduty/internal/audit/domain"
	authdomain "github.com/smallbiznis/importduty/internal/auth/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectVehicle  = "vehicle"
	ObjectExchange = "exchange_rate"
	ObjectUser     = "user"
	ObjectAuditLog = "audit_log"
)

const (
	ActionVehicleView     = "vehicle.view"
	ActionVehicleCreate   = "vehicle.create"
	ActionVehicleUpdate   = "vehicle.update"
	ActionVehicleDelete   = "vehicle.delete"
	ActionVehiclePreview  = "vehicle.preview"
	ActionVehicleBulkRate = "vehicle.bulk_rate"
	ActionVehicleImport   = "vehicle.import"
	ActionVehicleRender   = "vehicle.render"

	ActionExchangeView    = "exchange.view"
	ActionExchangeRefresh = "exchange.refresh"

	ActionAgentRegister = "agent.register"

	ActionAuditLogView = "audit_log.view"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	db       *gorm.DB
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		db:       p.DB,
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor string, object string, action string) error {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject, roleName, actorID, err := s.resolveActor(ctx, actor)
	if err != nil {
		s.auditDenied(ctx, actorID, object, action)
		return err
	}

	if err := s.ensureGrouping(subject, roleName); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.auditDenied(ctx, actorID, object, action)
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) resolveActor(ctx context.Context, actor string) (string, string, string, error) {
	if actor == "system" {
		return actor, "role:system", "", nil
	}
	if strings.HasPrefix(actor, "user:") {
		userID, err := snowflake.ParseString(strings.TrimPrefix(actor, "user:"))
		if err != nil || userID == 0 {
			return "", "", "", ErrInvalidActor
		}
		userIDStr := userID.String()
		role, err := s.roleForUser(ctx, userID)
		if err != nil {
			return actor, "", userIDStr, err
		}
		return actor, fmt.Sprintf("role:%s", strings.ToLower(role)), userIDStr, nil
	}
	return "", "", "", ErrInvalidActor
}

func (s *ServiceImpl) roleForUser(ctx context.Context, userID snowflake.ID) (string, error) {
	var row struct {
		Role string `gorm:"column:role"`
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT role FROM users WHERE id = ? LIMIT 1`,
		userID,
	).Scan(&row).Error; err != nil {
		return "", err
	}

	role := strings.TrimSpace(row.Role)
	if role != authdomain.RoleAdmin && role != authdomain.RoleAgent {
		return "", ErrForbidden
	}
	return role, nil
}

// ensureGrouping keeps exactly one role link per subject so a role change in
// the users table takes effect on the next request.
func (s *ServiceImpl) ensureGrouping(subject string, roleName string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 {
			continue
		}
		if rule[1] != roleName {
			params := make([]interface{}, 0, len(rule))
			for _, value := range rule {
				params = append(params, value)
			}
			_, _ = s.enforcer.RemoveGroupingPolicy(params...)
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName)
	return err
}

func (s *ServiceImpl) auditDenied(ctx context.Context, actorID string, object string, action string) {
	if s.auditSvc == nil {
		return
	}
	err := s.auditSvc.Record(ctx, auditdomain.Entry{
		Action:     "authorization.denied",
		TargetType: "authorization",
		TargetID:   actorID,
		Metadata: map[string]any{
			"object": object,
			"action": action,
		},
	})
	if err != nil {
		s.log.Warn("audit record failed", zap.String("action", "authorization.denied"), zap.Error(err))
	}
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Agents read, preview and re-rate
		{"role:agent", ObjectVehicle, ActionVehicleView},
		{"role:agent", ObjectVehicle, ActionVehiclePreview},
		{"role:agent", ObjectVehicle, ActionVehicleBulkRate},
		{"role:agent", ObjectVehicle, ActionVehicleRender},
		{"role:agent", ObjectExchange, ActionExchangeView},

		// Admin permissions
		{"role:admin", ObjectVehicle, ActionVehicleView},
		{"role:admin", ObjectVehicle, ActionVehicleCreate},
		{"role:admin", ObjectVehicle, ActionVehicleUpdate},
		{"role:admin", ObjectVehicle, ActionVehicleDelete},
		{"role:admin", ObjectVehicle, ActionVehiclePreview},
		{"role:admin", ObjectVehicle, ActionVehicleBulkRate},
		{"role:admin", ObjectVehicle, ActionVehicleImport},
		{"role:admin", ObjectVehicle, ActionVehicleRender},
		{"role:admin", ObjectExchange, ActionExchangeView},
		{"role:admin", ObjectExchange, ActionExchangeRefresh},
		{"role:admin", ObjectUser, ActionAgentRegister},
		{"role:admin", ObjectAuditLog, ActionAuditLogView},

		// System permissions (batch importer)
		{"role:system", ObjectVehicle, ActionVehicleCreate},
		{"role:system", ObjectVehicle, ActionVehicleImport},
		{"role:system", ObjectVehicle, ActionVehicleBulkRate},
		{"role:system", ObjectExchange, ActionExchangeRefresh},
	}

	for _, policy := range policies {
		if len(policy) < 3 {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
