package domain

import (
	"context"
	"errors"
	"io"
	"time"

	taxdomain "github.com/smallbiznis/importduty/internal/tax/domain"
	"gorm.io/gorm"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	List(ctx context.Context, req ListRequest) ([]Response, error)
	ListByManufacturer(ctx context.Context, manufacturer string) ([]Response, error)
	Manufacturers(ctx context.Context) ([]string, error)
	Get(ctx context.Context, id string) (*Response, error)
	Update(ctx context.Context, req UpdateRequest) (*Response, error)
	Delete(ctx context.Context, id string) (*Response, error)
	Preview(ctx context.Context, req PreviewRequest) (*PreviewResponse, error)
	BulkUpdateExchangeRate(ctx context.Context, req BulkRateRequest) (*BulkRateResult, error)
	RenderBreakdown(ctx context.Context, id string) (io.Reader, string, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, v *Vehicle) error
	FindByID(ctx context.Context, db *gorm.DB, id int64) (*Vehicle, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id int64) (*Vehicle, error)
	List(ctx context.Context, db *gorm.DB, filter ListRequest) ([]Vehicle, error)
	Manufacturers(ctx context.Context, db *gorm.DB) ([]string, error)
	Update(ctx context.Context, db *gorm.DB, v *Vehicle) error
	Delete(ctx context.Context, db *gorm.DB, id int64) error
}

// VehicleInput is the writable surface of a vehicle. Nil fields are absent.
type VehicleInput struct {
	HSCode       *string  `json:"hsCode"`
	VehicleType  *string  `json:"vehicleType"`
	FuelType     *string  `json:"fuelType"`
	EngineCC     *float64 `json:"engineCC"`
	Manufacturer *string  `json:"manufacturer"`
	RateCurrency *string  `json:"rateCurrency"`
	taxdomain.CostInputs
	PriceCalculations []taxdomain.PriceEntry `json:"priceCalculations"`
}

type CreateRequest struct {
	VehicleInput
}

type UpdateRequest struct {
	ID string `json:"-"`
	VehicleInput
}

type ListRequest struct {
	Manufacturer string `form:"manufacturer"`
	SortBy       string `form:"sort_by"`
	OrderBy      string `form:"order_by"`
}

type PreviewRequest struct {
	taxdomain.CostInputs
	PriceCalculations []taxdomain.PriceEntry `json:"priceCalculations"`
}

type PreviewResponse struct {
	PriceCalculations []PriceCalculation `json:"priceCalculations"`
}

type BulkRateRequest struct {
	ExchangeRate *float64 `json:"exchangeRate"`
	Currency     string   `json:"currency"`
	Trigger      string   `json:"-"`
}

type BulkRateResult struct {
	Message      string  `json:"message"`
	UpdatedCount int     `json:"updatedCount"`
	ExchangeRate float64 `json:"exchangeRate"`
	Currency     string  `json:"currency,omitempty"`
}

type Response struct {
	ID           string   `json:"id"`
	HSCode       string   `json:"hsCode"`
	VehicleType  string   `json:"vehicleType"`
	FuelType     string   `json:"fuelType"`
	EngineCC     *float64 `json:"engineCC,omitempty"`
	Manufacturer string   `json:"manufacturer"`
	RateCurrency string   `json:"rateCurrency"`
	taxdomain.CostInputs
	PriceCalculations []PriceCalculation `json:"priceCalculations"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         time.Time          `json:"updatedAt"`
}

const (
	TriggerManual   = "manual"
	TriggerExchange = "exchange_refresh"

	NoVehiclesMessage = "No vehicles found to update"
)

var (
	ErrInvalidID                = errors.New("invalid_id")
	ErrNotFound                 = errors.New("not_found")
	ErrInvalidVehicleType       = errors.New("invalid_vehicle_type")
	ErrInvalidEngineCC          = errors.New("invalid_engine_cc")
	ErrInvalidPriceCalculations = errors.New("invalid_price_calculations")
	ErrInvalidExchangeRate      = errors.New("invalid_exchange_rate")
	ErrBulkUpdateInProgress     = errors.New("bulk_update_in_progress")
)
