package domain

import (
	"strings"
	"time"

	taxdomain "github.com/smallbiznis/importduty/internal/tax/domain"
	"gorm.io/datatypes"
)

const UnknownManufacturer = "UNKNOWN"

// PriceCalculation is one declared price merged with its computed breakdown.
type PriceCalculation struct {
	PriceType            taxdomain.PriceBasis `json:"priceType"`
	PriceValue           float64              `json:"priceValue"`
	DipFOB               float64              `json:"dipFOB"`
	CifJPY               float64              `json:"cifJPY"`
	CifLKR               float64              `json:"cifLKR"`
	GeneralDuty          float64              `json:"generalDuty"`
	Surcharge            float64              `json:"surcharge"`
	PerCm3Amount         float64              `json:"perCm3Amount"`
	VAT                  float64              `json:"vat"`
	LuxuryTax            float64              `json:"luxuryTax"`
	LuxuryTaxCalculation float64              `json:"luxuryTaxCalculation"`
	TotalTax             float64              `json:"totalTax"`
	CifJPY1              float64              `json:"cifJPY1"`
	CifLKR1              float64              `json:"cifLKR1"`
}

func FromBreakdown(b taxdomain.Breakdown) PriceCalculation {
	return PriceCalculation{
		PriceType:            b.PriceBasis,
		PriceValue:           b.PriceValue,
		DipFOB:               b.DipFOB,
		CifJPY:               b.CifJPY,
		CifLKR:               b.CifLKR,
		GeneralDuty:          b.GeneralDuty,
		Surcharge:            b.Surcharge,
		PerCm3Amount:         b.PerCm3Amount,
		VAT:                  b.VAT,
		LuxuryTax:            b.LuxuryTax,
		LuxuryTaxCalculation: b.LuxuryTaxCalculation,
		TotalTax:             b.TotalTax,
		CifJPY1:              b.CifJPY1,
		CifLKR1:              b.CifLKR1,
	}
}

func (p PriceCalculation) Entry() taxdomain.PriceEntry {
	return taxdomain.PriceEntry{Basis: p.PriceType, Value: p.PriceValue}
}

// Vehicle is a stored customs record. Cost columns are nullable so an
// absent input keeps taking its calculator default.
type Vehicle struct {
	ID           int64    `gorm:"primaryKey"`
	HSCode       string   `gorm:"column:hs_code"`
	VehicleType  string   `gorm:"column:vehicle_type;not null"`
	FuelType     string   `gorm:"column:fuel_type"`
	EngineCC     *float64 `gorm:"column:engine_cc"`
	Manufacturer string   `gorm:"column:manufacturer;not null;index"`

	Freight            *float64 `gorm:"column:freight"`
	Insurance          *float64 `gorm:"column:insurance"`
	Other              *float64 `gorm:"column:other"`
	CM3                *float64 `gorm:"column:cm3"`
	PPerUnitLKR        *float64 `gorm:"column:p_per_unit_lkr"`
	PPerCM3LKR         *float64 `gorm:"column:p_per_cm3_lkr"`
	PAL                *float64 `gorm:"column:pal"`
	SSL                *float64 `gorm:"column:ssl"`
	ExchangeRate       *float64 `gorm:"column:exchange_rate"`
	GeneralDutyRate    *float64 `gorm:"column:general_duty_rate"`
	SurchargeRate      *float64 `gorm:"column:surcharge_rate"`
	VATRate            *float64 `gorm:"column:vat_rate"`
	LuxTaxFD           *float64 `gorm:"column:lux_tax_fd"`
	LuxuryTaxRateValue *float64 `gorm:"column:luxury_tax_rate_value"`

	RateCurrency      string                                `gorm:"column:rate_currency;not null"`
	PriceCalculations datatypes.JSONSlice[PriceCalculation] `gorm:"column:price_calculations"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (Vehicle) TableName() string { return "vehicles" }

func (v *Vehicle) CostInputs() taxdomain.CostInputs {
	return taxdomain.CostInputs{
		Freight:            v.Freight,
		Insurance:          v.Insurance,
		Other:              v.Other,
		CM3:                v.CM3,
		PPerUnitLKR:        v.PPerUnitLKR,
		PPerCM3LKR:         v.PPerCM3LKR,
		PAL:                v.PAL,
		SSL:                v.SSL,
		ExchangeRate:       v.ExchangeRate,
		GeneralDutyRate:    v.GeneralDutyRate,
		SurchargeRate:      v.SurchargeRate,
		VATRate:            v.VATRate,
		LuxTaxFD:           v.LuxTaxFD,
		LuxuryTaxRateValue: v.LuxuryTaxRateValue,
	}
}

// ApplyCostInputs overwrites every cost field that is present in in.
func (v *Vehicle) ApplyCostInputs(in taxdomain.CostInputs) {
	assign(&v.Freight, in.Freight)
	assign(&v.Insurance, in.Insurance)
	assign(&v.Other, in.Other)
	assign(&v.CM3, in.CM3)
	assign(&v.PPerUnitLKR, in.PPerUnitLKR)
	assign(&v.PPerCM3LKR, in.PPerCM3LKR)
	assign(&v.PAL, in.PAL)
	assign(&v.SSL, in.SSL)
	assign(&v.ExchangeRate, in.ExchangeRate)
	assign(&v.GeneralDutyRate, in.GeneralDutyRate)
	assign(&v.SurchargeRate, in.SurchargeRate)
	assign(&v.VATRate, in.VATRate)
	assign(&v.LuxTaxFD, in.LuxTaxFD)
	assign(&v.LuxuryTaxRateValue, in.LuxuryTaxRateValue)
}

func (v *Vehicle) Entries() []taxdomain.PriceEntry {
	entries := make([]taxdomain.PriceEntry, 0, len(v.PriceCalculations))
	for _, pc := range v.PriceCalculations {
		entries = append(entries, pc.Entry())
	}
	return entries
}

// SetBreakdowns replaces the stored price calculations with fresh results.
func (v *Vehicle) SetBreakdowns(breakdowns []taxdomain.Breakdown) {
	calcs := make([]PriceCalculation, 0, len(breakdowns))
	for _, b := range breakdowns {
		calcs = append(calcs, FromBreakdown(b))
	}
	v.PriceCalculations = datatypes.JSONSlice[PriceCalculation](calcs)
}

// NormalizeManufacturer upper-cases a manufacturer name, mapping blank to
// UnknownManufacturer.
func NormalizeManufacturer(name string) string {
	name = strings.ToUpper(strings.TrimSpace(name))
	if name == "" {
		return UnknownManufacturer
	}
	return name
}

func assign(dst **float64, src *float64) {
	if src == nil {
		return
	}
	value := *src
	*dst = &value
}
