package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	// Authenticate verifies a bearer token and loads its user.
	Authenticate(ctx context.Context, rawToken string) (*User, error)
	RegisterAgent(ctx context.Context, req RegisterAgentRequest) (*UserResponse, error)
	Get(ctx context.Context, id string) (*UserResponse, error)
	// EnsureAdmin creates or re-keys the bootstrap administrator.
	EnsureAdmin(ctx context.Context, req BootstrapAdminRequest) (*User, error)
}

type Repository interface {
	Count(ctx context.Context) (int64, error)
	Create(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id snowflake.ID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	UpdateFields(ctx context.Context, id snowflake.ID, fields map[string]any) error
}

type RegisterAgentRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type BootstrapAdminRequest struct {
	Name     string
	Email    string
	Password string
}
