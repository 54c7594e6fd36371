package service

import (
	"context"
	"math"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/importduty/internal/audit/domain"
	"github.com/smallbiznis/importduty/internal/clock"
	"github.com/smallbiznis/importduty/internal/config"
	"github.com/smallbiznis/importduty/internal/events"
	"github.com/smallbiznis/importduty/internal/observability/metrics"
	"github.com/smallbiznis/importduty/internal/providers/pdf"
	"github.com/smallbiznis/importduty/internal/ratelimit"
	taxdomain "github.com/smallbiznis/importduty/internal/tax/domain"
	"github.com/smallbiznis/importduty/internal/vehicle/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Cfg        config.Config
	Repo       domain.Repository
	Calculator taxdomain.Calculator
	Audit      auditdomain.Service
	Publisher  events.Publisher
	PDF        pdf.Provider

	Limiter     *ratelimit.Limiter          `optional:"true"`
	Metrics     *metrics.Metrics            `optional:"true"`
	CalcMetrics *metrics.CalculationMetrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	calculator  taxdomain.Calculator
	audit       auditdomain.Service
	publisher   events.Publisher
	pdf         pdf.Provider
	limiter     *ratelimit.Limiter
	metrics     *metrics.Metrics
	calcMetrics *metrics.CalculationMetrics

	defaultCurrency string
	workers         int
}

func New(p Params) domain.Service {
	currency := strings.ToUpper(strings.TrimSpace(p.Cfg.DefaultRateCurrency))
	if currency == "" {
		currency = "JPY"
	}
	workers := p.Cfg.BulkUpdateWorkers
	if workers <= 0 {
		workers = 4
	}
	publisher := p.Publisher
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Service{
		db:              p.DB,
		log:             p.Log.Named("vehicle.service"),
		genID:           p.GenID,
		clock:           p.Clock,
		repo:            p.Repo,
		calculator:      p.Calculator,
		audit:           p.Audit,
		publisher:       publisher,
		pdf:             p.PDF,
		limiter:         p.Limiter,
		metrics:         p.Metrics,
		calcMetrics:     p.CalcMetrics,
		defaultCurrency: currency,
		workers:         workers,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	if len(req.PriceCalculations) == 0 {
		return nil, domain.ErrInvalidPriceCalculations
	}

	vehicleType := strings.TrimSpace(ptrToString(req.VehicleType))
	if vehicleType == "" {
		return nil, domain.ErrInvalidVehicleType
	}
	if err := validateEngineCC(req.EngineCC); err != nil {
		return nil, err
	}

	breakdowns, err := s.calculator.Calculate(ctx, req.CostInputs, req.PriceCalculations)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	v := &domain.Vehicle{
		ID:           s.genID.Generate().Int64(),
		HSCode:       strings.TrimSpace(ptrToString(req.HSCode)),
		VehicleType:  vehicleType,
		FuelType:     strings.TrimSpace(ptrToString(req.FuelType)),
		EngineCC:     req.EngineCC,
		Manufacturer: domain.NormalizeManufacturer(ptrToString(req.Manufacturer)),
		RateCurrency: s.currencyOrDefault(ptrToString(req.RateCurrency)),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	v.ApplyCostInputs(req.CostInputs)
	v.SetBreakdowns(breakdowns)

	if err := s.repo.Insert(ctx, s.db, v); err != nil {
		return nil, err
	}

	s.metrics.RecordVehicleWrite(ctx, "create")
	s.recordAudit(ctx, auditdomain.ActionVehicleCreate, v, map[string]any{
		"manufacturer": v.Manufacturer,
		"entries":      len(v.PriceCalculations),
	})
	resp := toResponse(v)
	s.publish(ctx, events.EventVehicleCreated, v.ID, resp)
	return &resp, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Response, error) {
	filter := domain.ListRequest{
		SortBy:  strings.TrimSpace(req.SortBy),
		OrderBy: strings.TrimSpace(req.OrderBy),
	}
	if name := strings.TrimSpace(req.Manufacturer); name != "" {
		filter.Manufacturer = strings.ToUpper(name)
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, toResponse(&items[i]))
	}
	return resp, nil
}

func (s *Service) ListByManufacturer(ctx context.Context, manufacturer string) ([]domain.Response, error) {
	name := strings.ToUpper(strings.TrimSpace(manufacturer))
	if name == "" {
		name = domain.UnknownManufacturer
	}
	return s.List(ctx, domain.ListRequest{Manufacturer: name})
}

func (s *Service) Manufacturers(ctx context.Context) ([]string, error) {
	names, err := s.repo.Manufacturers(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	vehicleID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	item, err := s.repo.FindByID(ctx, s.db, vehicleID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}

	resp := toResponse(item)
	return &resp, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateRequest) (*domain.Response, error) {
	vehicleID, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}
	if req.PriceCalculations != nil && len(req.PriceCalculations) == 0 {
		return nil, domain.ErrInvalidPriceCalculations
	}
	if req.VehicleType != nil && strings.TrimSpace(*req.VehicleType) == "" {
		return nil, domain.ErrInvalidVehicleType
	}
	if err := validateEngineCC(req.EngineCC); err != nil {
		return nil, err
	}

	var updated *domain.Vehicle
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.repo.FindByIDForUpdate(ctx, tx, vehicleID)
		if err != nil {
			return err
		}
		if item == nil {
			return domain.ErrNotFound
		}

		applyInput(item, req.VehicleInput)
		if req.RateCurrency != nil {
			item.RateCurrency = s.currencyOrDefault(*req.RateCurrency)
		}

		entries := item.Entries()
		if req.PriceCalculations != nil {
			entries = req.PriceCalculations
		}
		if len(entries) > 0 {
			breakdowns, err := s.calculator.Calculate(ctx, item.CostInputs(), entries)
			if err != nil {
				return err
			}
			item.SetBreakdowns(breakdowns)
		}

		item.UpdatedAt = s.clock.Now().UTC()
		if err := s.repo.Update(ctx, tx, item); err != nil {
			return err
		}
		updated = item
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordVehicleWrite(ctx, "update")
	s.recordAudit(ctx, auditdomain.ActionVehicleUpdate, updated, map[string]any{
		"fields": changedFields(req.VehicleInput),
	})
	resp := toResponse(updated)
	s.publish(ctx, events.EventVehicleUpdated, updated.ID, resp)
	return &resp, nil
}

func (s *Service) Delete(ctx context.Context, id string) (*domain.Response, error) {
	vehicleID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	var deleted *domain.Vehicle
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		item, err := s.repo.FindByIDForUpdate(ctx, tx, vehicleID)
		if err != nil {
			return err
		}
		if item == nil {
			return domain.ErrNotFound
		}
		if err := s.repo.Delete(ctx, tx, vehicleID); err != nil {
			return err
		}
		deleted = item
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordVehicleWrite(ctx, "delete")
	s.recordAudit(ctx, auditdomain.ActionVehicleDelete, deleted, nil)
	resp := toResponse(deleted)
	s.publish(ctx, events.EventVehicleDeleted, deleted.ID, resp)
	return &resp, nil
}

func (s *Service) Preview(ctx context.Context, req domain.PreviewRequest) (*domain.PreviewResponse, error) {
	if len(req.PriceCalculations) == 0 {
		return nil, domain.ErrInvalidPriceCalculations
	}
	breakdowns, err := s.calculator.Calculate(ctx, req.CostInputs, req.PriceCalculations)
	if err != nil {
		return nil, err
	}
	calcs := make([]domain.PriceCalculation, 0, len(breakdowns))
	for _, b := range breakdowns {
		calcs = append(calcs, domain.FromBreakdown(b))
	}
	return &domain.PreviewResponse{PriceCalculations: calcs}, nil
}

func (s *Service) currencyOrDefault(raw string) string {
	currency := strings.ToUpper(strings.TrimSpace(raw))
	if currency == "" {
		return s.defaultCurrency
	}
	return currency
}

func (s *Service) recordAudit(ctx context.Context, action string, v *domain.Vehicle, metadata map[string]any) {
	if s.audit == nil || v == nil {
		return
	}
	err := s.audit.Record(ctx, auditdomain.Entry{
		Action:     action,
		TargetType: "vehicle",
		TargetID:   snowflake.ID(v.ID).String(),
		Metadata:   metadata,
	})
	if err != nil {
		s.log.Warn("audit record failed", zap.String("action", action), zap.Error(err))
	}
}

func (s *Service) publish(ctx context.Context, eventType events.EventType, id int64, payload any) {
	vehicleID := ""
	if id != 0 {
		vehicleID = snowflake.ID(id).String()
	}
	if err := s.publisher.Publish(ctx, eventType, vehicleID, payload); err != nil {
		s.log.Warn("event publish failed",
			zap.String("event_type", string(eventType)),
			zap.String("vehicle_id", vehicleID),
			zap.Error(err),
		)
	}
}

func applyInput(v *domain.Vehicle, in domain.VehicleInput) {
	if in.HSCode != nil {
		v.HSCode = strings.TrimSpace(*in.HSCode)
	}
	if in.VehicleType != nil {
		v.VehicleType = strings.TrimSpace(*in.VehicleType)
	}
	if in.FuelType != nil {
		v.FuelType = strings.TrimSpace(*in.FuelType)
	}
	if in.EngineCC != nil {
		engineCC := *in.EngineCC
		v.EngineCC = &engineCC
	}
	if in.Manufacturer != nil {
		v.Manufacturer = domain.NormalizeManufacturer(*in.Manufacturer)
	}
	v.ApplyCostInputs(in.CostInputs)
}

func changedFields(in domain.VehicleInput) []string {
	fields := []string{}
	add := func(present bool, name string) {
		if present {
			fields = append(fields, name)
		}
	}
	add(in.HSCode != nil, "hsCode")
	add(in.VehicleType != nil, "vehicleType")
	add(in.FuelType != nil, "fuelType")
	add(in.EngineCC != nil, "engineCC")
	add(in.Manufacturer != nil, "manufacturer")
	add(in.RateCurrency != nil, "rateCurrency")
	add(in.ExchangeRate != nil, "exchangeRate")
	add(in.PriceCalculations != nil, "priceCalculations")
	return fields
}

func validateEngineCC(v *float64) error {
	if v == nil {
		return nil
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) || *v < 0 {
		return domain.ErrInvalidEngineCC
	}
	return nil
}

func parseID(raw string) (int64, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(raw))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id.Int64(), nil
}

func toResponse(v *domain.Vehicle) domain.Response {
	calcs := []domain.PriceCalculation(v.PriceCalculations)
	if calcs == nil {
		calcs = []domain.PriceCalculation{}
	}
	return domain.Response{
		ID:                snowflake.ID(v.ID).String(),
		HSCode:            v.HSCode,
		VehicleType:       v.VehicleType,
		FuelType:          v.FuelType,
		EngineCC:          v.EngineCC,
		Manufacturer:      v.Manufacturer,
		RateCurrency:      v.RateCurrency,
		CostInputs:        v.CostInputs(),
		PriceCalculations: calcs,
		CreatedAt:         v.CreatedAt,
		UpdatedAt:         v.UpdatedAt,
	}
}

func ptrToString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
