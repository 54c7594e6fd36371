package service

import (
	"context"
	"io"
	"time"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/importduty/internal/providers/pdf"
	taxdomain "github.com/smallbiznis/importduty/internal/tax/domain"
	"github.com/smallbiznis/importduty/internal/vehicle/domain"
)

// RenderBreakdown builds the printable duty sheet of a stored vehicle and
// returns it with a download filename.
func (s *Service) RenderBreakdown(ctx context.Context, id string) (io.Reader, string, error) {
	vehicleID, err := parseID(id)
	if err != nil {
		return nil, "", err
	}

	item, err := s.repo.FindByID(ctx, s.db, vehicleID)
	if err != nil {
		return nil, "", err
	}
	if item == nil {
		return nil, "", domain.ErrNotFound
	}
	if len(item.PriceCalculations) == 0 {
		return nil, "", domain.ErrInvalidPriceCalculations
	}

	reader, err := s.pdf.GenerateBreakdown(ctx, buildSheet(item, s.clock.Now()))
	if err != nil {
		return nil, "", err
	}
	return reader, breakdownFilename(item), nil
}

func buildSheet(v *domain.Vehicle, now time.Time) pdf.BreakdownSheet {
	sheet := pdf.BreakdownSheet{
		Title:        "Import Duty Breakdown",
		VehicleType:  v.VehicleType,
		HSCode:       v.HSCode,
		FuelType:     v.FuelType,
		Manufacturer: v.Manufacturer,
		RateCurrency: v.RateCurrency,
		ExchangeRate: amount(valueOr(v.ExchangeRate, 1)),
		GeneratedAt:  now.UTC().Format("2006-01-02 15:04 MST"),
	}
	for _, pc := range v.PriceCalculations {
		sheet.Sections = append(sheet.Sections, pdf.BreakdownSection{
			Basis:      basisLabel(pc.PriceType),
			PriceValue: amount(pc.PriceValue),
			TotalTax:   amount(pc.TotalTax),
			Rows: []pdf.BreakdownRow{
				{Label: "DIP FOB", Amount: amount(pc.DipFOB)},
				{Label: "CIF (" + v.RateCurrency + ")", Amount: amount(pc.CifJPY)},
				{Label: "CIF (LKR)", Amount: amount(pc.CifLKR)},
				{Label: "General Duty", Amount: amount(pc.GeneralDuty)},
				{Label: "Surcharge", Amount: amount(pc.Surcharge)},
				{Label: "Per CM3 Amount", Amount: amount(pc.PerCm3Amount)},
				{Label: "VAT", Amount: amount(pc.VAT)},
				{Label: "Luxury Tax Base", Amount: amount(pc.LuxuryTaxCalculation)},
				{Label: "Luxury Tax", Amount: amount(pc.LuxuryTax)},
				{Label: "Processing Fee", Amount: amount(taxdomain.FixedProcessingFee)},
				{Label: "Levy", Amount: amount(taxdomain.FixedLevy)},
			},
		})
	}
	return sheet
}

func breakdownFilename(v *domain.Vehicle) string {
	name := slug.Make(v.Manufacturer + " " + v.VehicleType)
	if name == "" {
		name = "vehicle"
	}
	return name + "-breakdown.pdf"
}

func basisLabel(b taxdomain.PriceBasis) string {
	switch b {
	case taxdomain.PriceBasisYellowBook:
		return "Yellow Book"
	case taxdomain.PriceBasisWebValue:
		return "Web Value"
	default:
		return string(b)
	}
}

func amount(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}
