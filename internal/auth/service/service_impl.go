package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/importduty/internal/audit/domain"
	"github.com/smallbiznis/importduty/internal/auth/domain"
	"github.com/smallbiznis/importduty/internal/auth/password"
	"github.com/smallbiznis/importduty/internal/clock"
	"github.com/smallbiznis/importduty/internal/config"
	"github.com/smallbiznis/importduty/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const minPasswordLength = 8

type Params struct {
	fx.In

	Log   *zap.Logger
	Cfg   config.Config
	Repo  domain.Repository
	GenID *snowflake.Node
	Clock clock.Clock

	Audit auditdomain.Service `optional:"true"`
}

type Service struct {
	log    *zap.Logger
	repo   domain.Repository
	genID  *snowflake.Node
	clock  clock.Clock
	audit  auditdomain.Service
	secret []byte
}

func New(p Params) domain.Service {
	return &Service{
		log:    p.Log.Named("auth.service"),
		repo:   p.Repo,
		genID:  p.GenID,
		clock:  p.Clock,
		audit:  p.Audit,
		secret: []byte(strings.TrimSpace(p.Cfg.AuthJWTSecret)),
	}
}

func (s *Service) Authenticate(ctx context.Context, rawToken string) (*domain.User, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return nil, domain.ErrInvalidToken
	}

	claims, err := parseToken(s.secret, rawToken)
	if err != nil {
		if errors.Is(err, errEmptySecret) {
			s.log.Error("bearer token rejected", zap.Error(err))
		} else {
			s.log.Debug("bearer token rejected", zap.Error(err))
		}
		return nil, domain.ErrInvalidToken
	}

	userID, err := snowflake.ParseString(claims.subject())
	if err != nil {
		return nil, domain.ErrInvalidToken
	}
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidToken
		}
		return nil, err
	}
	return user, nil
}

// RegisterAgent creates an AGENT account. The role is never taken from the
// request.
func (s *Service) RegisterAgent(ctx context.Context, req domain.RegisterAgentRequest) (*domain.UserResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidEmail
	}
	if len(strings.TrimSpace(req.Password)) < minPasswordLength {
		return nil, domain.ErrInvalidPassword
	}

	user, err := s.createUser(ctx, name, email, req.Password, domain.RoleAgent)
	if err != nil {
		return nil, err
	}

	if s.audit != nil {
		if err := s.audit.Record(ctx, auditdomain.Entry{
			Action:     auditdomain.ActionAgentRegister,
			TargetType: "user",
			TargetID:   user.ID.String(),
			Metadata:   map[string]any{"email": user.Email, "role": user.Role},
		}); err != nil {
			s.log.Warn("audit record failed", zap.String("action", auditdomain.ActionAgentRegister), zap.Error(err))
		}
	}

	resp := user.ToResponse()
	return &resp, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.UserResponse, error) {
	userID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, domain.ErrInvalidID
	}
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	resp := user.ToResponse()
	return &resp, nil
}

func (s *Service) EnsureAdmin(ctx context.Context, req domain.BootstrapAdminRequest) (*domain.User, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidEmail
	}
	if len(strings.TrimSpace(req.Password)) < minPasswordLength {
		return nil, domain.ErrInvalidPassword
	}

	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}
	if existing == nil {
		name := strings.TrimSpace(req.Name)
		if name == "" {
			name = defaultDisplayName(email)
		}
		user, err := s.createUser(ctx, name, email, req.Password, domain.RoleAdmin)
		if err != nil {
			return nil, err
		}
		s.log.Info("bootstrap admin created", zap.String("user_id", user.ID.String()))
		return user, nil
	}

	fields := map[string]any{}
	if existing.Role != domain.RoleAdmin {
		fields["role"] = domain.RoleAdmin
	}
	if existing.PasswordHash == nil ||
		!password.Verify(req.Password, *existing.PasswordHash) ||
		password.NeedsRehash(*existing.PasswordHash) {
		hashed, err := password.Hash(req.Password)
		if err != nil {
			return nil, err
		}
		fields["password_hash"] = hashed
	}
	if len(fields) == 0 {
		return existing, nil
	}
	fields["updated_at"] = s.clock.Now().UTC()
	if err := s.repo.UpdateFields(ctx, existing.ID, fields); err != nil {
		return nil, err
	}
	s.log.Info("bootstrap admin updated", zap.String("user_id", existing.ID.String()))
	return s.repo.FindByID(ctx, existing.ID)
}

func (s *Service) createUser(ctx context.Context, name, email, rawPassword, role string) (*domain.User, error) {
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, domain.ErrUserExists
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	hashed, err := password.Hash(rawPassword)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	user := &domain.User{
		ID:           s.genID.Generate(),
		Name:         name,
		Email:        email,
		PasswordHash: &hashed,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrUserExists
		}
		return nil, err
	}
	return user, nil
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(addr.Address)), nil
}

func defaultDisplayName(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) > 0 && strings.TrimSpace(parts[0]) != "" {
		return strings.TrimSpace(parts[0])
	}
	return email
}
