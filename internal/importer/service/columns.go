package service

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	taxdomain "github.com/smallbiznis/importduty/internal/tax/domain"
	vehicledomain "github.com/smallbiznis/importduty/internal/vehicle/domain"
)

var errNotANumber = errors.New("not a number")

const (
	fieldHSCode             = "hsCode"
	fieldVehicleType        = "vehicleType"
	fieldFuelType           = "fuelType"
	fieldEngineCC           = "engineCC"
	fieldManufacturer       = "manufacturer"
	fieldFreight            = "freight"
	fieldInsurance          = "insurance"
	fieldOther              = "other"
	fieldCM3                = "cm3"
	fieldPPerUnitLKR        = "pPerUnitLKR"
	fieldPPerCM3LKR         = "pPerCM3LKR"
	fieldPAL                = "pal"
	fieldSSL                = "ssl"
	fieldRateCurrency       = "rateCurrency"
	fieldExchangeRate       = "exchangeRate"
	fieldGeneralDutyRate    = "generalDutyRate"
	fieldSurchargeRate      = "surchargeRate"
	fieldVATRate            = "vatRate"
	fieldLuxTaxFD           = "luxTaxFD"
	fieldLuxuryTaxRateValue = "luxuryTaxRateValue"
	fieldYellowBookPrice    = "yellowBookPrice"
	fieldWebValuePrice      = "webValuePrice"
	fieldPrice              = "price"
)

// headerFields is keyed by normalizeHeader output, so "HS Code" and
// "hsCode" land on the same field.
var headerFields = map[string]string{
	"hscode":             fieldHSCode,
	"vehicletype":        fieldVehicleType,
	"fueltype":           fieldFuelType,
	"enginecc":           fieldEngineCC,
	"manufacturer":       fieldManufacturer,
	"freight":            fieldFreight,
	"insurance":          fieldInsurance,
	"other":              fieldOther,
	"cm3":                fieldCM3,
	"pperunitlkr":        fieldPPerUnitLKR,
	"ppercm3lkr":         fieldPPerCM3LKR,
	"pal":                fieldPAL,
	"ssl":                fieldSSL,
	"ratecurrency":       fieldRateCurrency,
	"exchangerate":       fieldExchangeRate,
	"generaldutyrate":    fieldGeneralDutyRate,
	"surchargerate":      fieldSurchargeRate,
	"vatrate":            fieldVATRate,
	"luxtaxfd":           fieldLuxTaxFD,
	"luxurytaxrate":      fieldLuxuryTaxRateValue,
	"luxurytaxratevalue": fieldLuxuryTaxRateValue,
	"yellowbookprice":    fieldYellowBookPrice,
	"webvalueprice":      fieldWebValuePrice,
	"price":              fieldPrice,
	"pricevalue":         fieldPrice,
}

func normalizeHeader(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(raw)
}

// resolveHeader maps each column index to its field. Unknown columns map to
// the empty string and are ignored.
func resolveHeader(header []string) []string {
	fields := make([]string, len(header))
	for i, name := range header {
		fields[i] = headerFields[normalizeHeader(name)]
	}
	return fields
}

type rowPrices struct {
	yellowBook *float64
	webValue   *float64
	general    *float64
}

// buildRow turns one worksheet row into a create request. Blank cells are
// left absent so the calculator defaults apply.
func buildRow(fields []string, cells []string) (vehicledomain.CreateRequest, error) {
	var (
		req    vehicledomain.CreateRequest
		prices rowPrices
	)

	for i, field := range fields {
		if field == "" || i >= len(cells) {
			continue
		}
		raw := strings.TrimSpace(cells[i])
		if raw == "" {
			continue
		}

		if target := textTarget(&req.VehicleInput, field); target != nil {
			value := raw
			*target = &value
			continue
		}

		value, err := parseNumber(raw)
		if err != nil {
			return vehicledomain.CreateRequest{}, fmt.Errorf("%s: %w", field, err)
		}
		if target := numberTarget(&req.VehicleInput, &prices, field); target != nil {
			*target = &value
		}
	}

	req.PriceCalculations = priceEntries(prices)
	return req, nil
}

func textTarget(in *vehicledomain.VehicleInput, field string) **string {
	switch field {
	case fieldHSCode:
		return &in.HSCode
	case fieldVehicleType:
		return &in.VehicleType
	case fieldFuelType:
		return &in.FuelType
	case fieldManufacturer:
		return &in.Manufacturer
	case fieldRateCurrency:
		return &in.RateCurrency
	default:
		return nil
	}
}

func numberTarget(in *vehicledomain.VehicleInput, prices *rowPrices, field string) **float64 {
	switch field {
	case fieldEngineCC:
		return &in.EngineCC
	case fieldFreight:
		return &in.Freight
	case fieldInsurance:
		return &in.Insurance
	case fieldOther:
		return &in.Other
	case fieldCM3:
		return &in.CM3
	case fieldPPerUnitLKR:
		return &in.PPerUnitLKR
	case fieldPPerCM3LKR:
		return &in.PPerCM3LKR
	case fieldPAL:
		return &in.PAL
	case fieldSSL:
		return &in.SSL
	case fieldExchangeRate:
		return &in.ExchangeRate
	case fieldGeneralDutyRate:
		return &in.GeneralDutyRate
	case fieldSurchargeRate:
		return &in.SurchargeRate
	case fieldVATRate:
		return &in.VATRate
	case fieldLuxTaxFD:
		return &in.LuxTaxFD
	case fieldLuxuryTaxRateValue:
		return &in.LuxuryTaxRateValue
	case fieldYellowBookPrice:
		return &prices.yellowBook
	case fieldWebValuePrice:
		return &prices.webValue
	case fieldPrice:
		return &prices.general
	default:
		return nil
	}
}

// priceEntries adds the yellow book and web value prices when positive and
// falls back to a generic price column as yellow book.
func priceEntries(p rowPrices) []taxdomain.PriceEntry {
	entries := make([]taxdomain.PriceEntry, 0, 2)
	if p.yellowBook != nil && *p.yellowBook > 0 {
		entries = append(entries, taxdomain.PriceEntry{Basis: taxdomain.PriceBasisYellowBook, Value: *p.yellowBook})
	}
	if p.webValue != nil && *p.webValue > 0 {
		entries = append(entries, taxdomain.PriceEntry{Basis: taxdomain.PriceBasisWebValue, Value: *p.webValue})
	}
	if len(entries) == 0 && p.general != nil && *p.general > 0 {
		entries = append(entries, taxdomain.PriceEntry{Basis: taxdomain.PriceBasisYellowBook, Value: *p.general})
	}
	return entries
}

func parseNumber(raw string) (float64, error) {
	cleaned := strings.ReplaceAll(raw, ",", "")
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, errNotANumber
	}
	return value, nil
}

func blankRow(cells []string) bool {
	for _, cell := range cells {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
