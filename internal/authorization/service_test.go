package authorization

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	authdomain "github.com/smallbiznis/importduty/internal/auth/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupAuthorization(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&authdomain.User{}))

	enforcer, err := NewEnforcer(db)
	require.NoError(t, err)

	return NewService(Params{DB: db, Log: zap.NewNop(), Enforcer: enforcer}), db
}

func createUser(t *testing.T, db *gorm.DB, id snowflake.ID, role string) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, db.Create(&authdomain.User{
		ID:        id,
		Name:      role,
		Email:     role + "@example.com",
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}).Error)
}

func TestAuthorizeByRole(t *testing.T) {
	svc, db := setupAuthorization(t)
	ctx := context.Background()
	createUser(t, db, 1, authdomain.RoleAdmin)
	createUser(t, db, 2, authdomain.RoleAgent)

	admin := "user:" + snowflake.ID(1).String()
	agent := "user:" + snowflake.ID(2).String()

	assert.NoError(t, svc.Authorize(ctx, admin, ObjectVehicle, ActionVehicleDelete))
	assert.NoError(t, svc.Authorize(ctx, admin, ObjectAuditLog, ActionAuditLogView))
	assert.NoError(t, svc.Authorize(ctx, agent, ObjectVehicle, ActionVehicleView))
	assert.NoError(t, svc.Authorize(ctx, agent, ObjectVehicle, ActionVehicleBulkRate))
	assert.NoError(t, svc.Authorize(ctx, agent, ObjectExchange, ActionExchangeView))
	assert.NoError(t, svc.Authorize(ctx, admin, ObjectExchange, ActionExchangeView))

	assert.ErrorIs(t, svc.Authorize(ctx, agent, ObjectVehicle, ActionVehicleCreate), ErrForbidden)
	assert.ErrorIs(t, svc.Authorize(ctx, agent, ObjectUser, ActionAgentRegister), ErrForbidden)
	assert.ErrorIs(t, svc.Authorize(ctx, agent, ObjectExchange, ActionExchangeRefresh), ErrForbidden)

	assert.NoError(t, svc.Authorize(ctx, "system", ObjectVehicle, ActionVehicleImport))
}

func TestAuthorizeFollowsRoleChanges(t *testing.T) {
	svc, db := setupAuthorization(t)
	ctx := context.Background()
	createUser(t, db, 3, authdomain.RoleAgent)
	actor := "user:" + snowflake.ID(3).String()

	require.ErrorIs(t, svc.Authorize(ctx, actor, ObjectVehicle, ActionVehicleDelete), ErrForbidden)

	require.NoError(t, db.Model(&authdomain.User{}).Where("id = ?", 3).Update("role", authdomain.RoleAdmin).Error)
	assert.NoError(t, svc.Authorize(ctx, actor, ObjectVehicle, ActionVehicleDelete))
}

func TestAuthorizeRejectsBadInput(t *testing.T) {
	svc, _ := setupAuthorization(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Authorize(ctx, "", ObjectVehicle, ActionVehicleView), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, "robot", ObjectVehicle, ActionVehicleView), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, "user:abc", ObjectVehicle, ActionVehicleView), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, "system", "", ActionVehicleView), ErrInvalidObject)
	assert.ErrorIs(t, svc.Authorize(ctx, "system", ObjectVehicle, " "), ErrInvalidAction)
	assert.ErrorIs(t, svc.Authorize(ctx, "user:999", ObjectVehicle, ActionVehicleView), ErrForbidden)
}
