package service

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	taxdomain "github.com/smallbiznis/importduty/internal/tax/domain"
)

const (
	defaultExchangeRate    = 1.0
	defaultGeneralDutyRate = 0.2
	defaultSurchargeRate   = 0.5
	defaultVATRate         = 0.18

	fobFactor       = 0.85
	webValueMarkup  = 110.0
	vatSurtaxFactor = 0.10
)

// resolved carries CostInputs with defaults applied.
type resolved struct {
	freight            float64
	insurance          float64
	other              float64
	cm3                float64
	pPerUnitLKR        float64
	pPerCM3LKR         float64
	pal                float64
	ssl                float64
	exchangeRate       float64
	generalDutyRate    float64
	surcharge          float64
	vatRate            float64
	luxTaxFD           float64
	luxuryTaxRateValue float64
}

// Compute derives one breakdown per entry, in input order. It fails without
// partial output when entries is empty or any input is negative, non-finite
// or, for the exchange rate, not positive.
func Compute(inputs taxdomain.CostInputs, entries []taxdomain.PriceEntry) ([]taxdomain.Breakdown, error) {
	if len(entries) == 0 {
		return nil, taxdomain.InvalidPriceEntries("priceCalculations")
	}

	in, err := resolve(inputs)
	if err != nil {
		return nil, err
	}

	for i, entry := range entries {
		if !entry.Basis.Valid() {
			return nil, taxdomain.InvalidPriceBasis(fmt.Sprintf("priceCalculations[%d].priceType", i), string(entry.Basis))
		}
		if err := checkAmount(fmt.Sprintf("priceCalculations[%d].priceValue", i), entry.Value); err != nil {
			return nil, err
		}
	}

	out := make([]taxdomain.Breakdown, 0, len(entries))
	for _, entry := range entries {
		out = append(out, computeEntry(in, entry))
	}
	return out, nil
}

func computeEntry(in resolved, entry taxdomain.PriceEntry) taxdomain.Breakdown {
	var dipFOB float64
	switch entry.Basis {
	case taxdomain.PriceBasisWebValue:
		dipFOB = (entry.Value * 100 / webValueMarkup) * fobFactor
	default:
		dipFOB = entry.Value * fobFactor
	}

	cifJPY := dipFOB + in.freight + in.insurance + in.other
	cifLKR := cifJPY * in.exchangeRate
	cifJPY1 := dipFOB + in.freight + in.insurance
	cifLKR1 := cifJPY1 * in.exchangeRate

	generalDuty := cifLKR * in.generalDutyRate
	surcharge := generalDuty * in.surcharge
	perCm3Amount := in.cm3 * in.pPerCM3LKR

	luxuryTaxCalculation := math.Max(0, cifLKR1-in.luxTaxFD)
	luxuryTax := 0.0
	if luxuryTaxCalculation > 0 && in.luxuryTaxRateValue > 0 {
		luxuryTax = luxuryTaxCalculation * in.luxuryTaxRateValue
	}

	vatBase := cifLKR*vatSurtaxFactor + cifLKR + generalDuty + surcharge +
		in.pPerUnitLKR + perCm3Amount + in.pal + in.ssl
	vat := vatBase * in.vatRate

	totalTax := generalDuty + surcharge + in.pPerUnitLKR + perCm3Amount +
		in.pal + in.ssl + vat + luxuryTax +
		taxdomain.FixedProcessingFee + taxdomain.FixedLevy

	return taxdomain.Breakdown{
		PriceBasis:           entry.Basis,
		PriceValue:           round2(entry.Value),
		DipFOB:               round2(dipFOB),
		CifJPY:               round2(cifJPY),
		CifLKR:               round2(cifLKR),
		GeneralDuty:          round2(generalDuty),
		Surcharge:            round2(surcharge),
		PerCm3Amount:         round2(perCm3Amount),
		VAT:                  round2(vat),
		LuxuryTax:            round2(luxuryTax),
		LuxuryTaxCalculation: round2(luxuryTaxCalculation),
		TotalTax:             round2(totalTax),
		CifJPY1:              round2(cifJPY1),
		CifLKR1:              round2(cifLKR1),
	}
}

func resolve(inputs taxdomain.CostInputs) (resolved, error) {
	var in resolved
	fields := []struct {
		name   string
		value  *float64
		def    float64
		target *float64
	}{
		{"freight", inputs.Freight, 0, &in.freight},
		{"insurance", inputs.Insurance, 0, &in.insurance},
		{"other", inputs.Other, 0, &in.other},
		{"cm3", inputs.CM3, 0, &in.cm3},
		{"pPerUnitLKR", inputs.PPerUnitLKR, 0, &in.pPerUnitLKR},
		{"pPerCM3LKR", inputs.PPerCM3LKR, 0, &in.pPerCM3LKR},
		{"pal", inputs.PAL, 0, &in.pal},
		{"ssl", inputs.SSL, 0, &in.ssl},
		{"exchangeRate", inputs.ExchangeRate, defaultExchangeRate, &in.exchangeRate},
		{"generalDutyRate", inputs.GeneralDutyRate, defaultGeneralDutyRate, &in.generalDutyRate},
		{"surchargeRate", inputs.SurchargeRate, defaultSurchargeRate, &in.surcharge},
		{"vatRate", inputs.VATRate, defaultVATRate, &in.vatRate},
		{"luxTaxFD", inputs.LuxTaxFD, 0, &in.luxTaxFD},
		{"luxuryTaxRateValue", inputs.LuxuryTaxRateValue, 0, &in.luxuryTaxRateValue},
	}
	for _, f := range fields {
		*f.target = f.def
		if f.value == nil {
			continue
		}
		if err := checkAmount(f.name, *f.value); err != nil {
			if f.name == "exchangeRate" && !isNonFinite(*f.value) {
				return resolved{}, taxdomain.InvalidExchangeRate(f.name)
			}
			return resolved{}, err
		}
		*f.target = *f.value
	}
	if in.exchangeRate <= 0 {
		return resolved{}, taxdomain.InvalidExchangeRate("exchangeRate")
	}
	return in, nil
}

func checkAmount(field string, v float64) error {
	if isNonFinite(v) {
		return taxdomain.NonFiniteValue(field)
	}
	if v < 0 {
		return taxdomain.NegativeValue(field)
	}
	return nil
}

func isNonFinite(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

// round2 rounds half away from zero at two decimals.
func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
