package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	ActionVehicleCreate  = "vehicle.create"
	ActionVehicleUpdate  = "vehicle.update"
	ActionVehicleDelete  = "vehicle.delete"
	ActionVehicleImport  = "vehicle.import"
	ActionBulkRate       = "vehicle.bulk_rate"
	ActionExchangeUpdate = "exchange.refresh"
	ActionAgentRegister  = "agent.register"
)

const ActorRoleSystem = "SYSTEM"

type AuditLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	ActorID    *string           `gorm:"column:actor_id" json:"actor_id,omitempty"`
	ActorRole  string            `gorm:"column:actor_role;not null" json:"actor_role"`
	Action     string            `gorm:"not null;index" json:"action"`
	TargetType string            `gorm:"column:target_type;not null" json:"target_type"`
	TargetID   *string           `gorm:"column:target_id" json:"target_id,omitempty"`
	Metadata   datatypes.JSONMap `json:"metadata,omitempty"`
	RequestID  *string           `gorm:"column:request_id" json:"request_id,omitempty"`
	IPAddress  *string           `gorm:"column:ip_address" json:"ip_address,omitempty"`
	UserAgent  *string           `gorm:"column:user_agent" json:"user_agent,omitempty"`
	CreatedAt  time.Time         `gorm:"not null;index" json:"created_at"`
}

func (AuditLog) TableName() string { return "audit_logs" }

type AuditCursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListFilter struct {
	Action     string
	TargetType string
	TargetID   string
	ActorID    string
	StartAt    *time.Time
	EndAt      *time.Time
	Cursor     *AuditCursor
	Limit      int
}
