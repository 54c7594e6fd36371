package domain

import (
	"encoding/json"
	"strings"
)

// PriceBasis is the statutory valuation method a declared price is given in.
type PriceBasis string

const (
	PriceBasisYellowBook PriceBasis = "yellowBook"
	PriceBasisWebValue   PriceBasis = "webValue"
)

// Fixed processing and levy charges added to every total, in LKR.
const (
	FixedProcessingFee = 1750
	FixedLevy          = 15000
)

// ParsePriceBasis accepts the wire names case-insensitively, with or
// without underscores.
func ParsePriceBasis(raw string) (PriceBasis, bool) {
	key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(raw), "_", ""))
	switch key {
	case "yellowbook":
		return PriceBasisYellowBook, true
	case "webvalue":
		return PriceBasisWebValue, true
	default:
		return "", false
	}
}

func (b PriceBasis) Valid() bool {
	return b == PriceBasisYellowBook || b == PriceBasisWebValue
}

func (b PriceBasis) String() string { return string(b) }

// UnmarshalJSON normalizes known aliases and keeps unknown values verbatim
// so the calculator can reject them with the field name.
func (b *PriceBasis) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if parsed, ok := ParsePriceBasis(raw); ok {
		*b = parsed
		return nil
	}
	*b = PriceBasis(raw)
	return nil
}

// CostInputs holds the per-vehicle cost and rate attributes. A nil field is
// absent and takes its default; an explicit zero is kept.
type CostInputs struct {
	Freight            *float64 `json:"freight,omitempty"`
	Insurance          *float64 `json:"insurance,omitempty"`
	Other              *float64 `json:"other,omitempty"`
	CM3                *float64 `json:"cm3,omitempty"`
	PPerUnitLKR        *float64 `json:"pPerUnitLKR,omitempty"`
	PPerCM3LKR         *float64 `json:"pPerCM3LKR,omitempty"`
	PAL                *float64 `json:"pal,omitempty"`
	SSL                *float64 `json:"ssl,omitempty"`
	ExchangeRate       *float64 `json:"exchangeRate,omitempty"`
	GeneralDutyRate    *float64 `json:"generalDutyRate,omitempty"`
	SurchargeRate      *float64 `json:"surchargeRate,omitempty"`
	VATRate            *float64 `json:"vatRate,omitempty"`
	LuxTaxFD           *float64 `json:"luxTaxFD,omitempty"`
	LuxuryTaxRateValue *float64 `json:"luxuryTaxRateValue,omitempty"`
}

type PriceEntry struct {
	Basis PriceBasis `json:"priceType"`
	Value float64    `json:"priceValue"`
}

// Breakdown is the itemized tax result for one price entry, rounded to two
// decimals.
type Breakdown struct {
	PriceBasis           PriceBasis `json:"priceBasis"`
	PriceValue           float64    `json:"priceValue"`
	DipFOB               float64    `json:"dipFOB"`
	CifJPY               float64    `json:"cifJPY"`
	CifLKR               float64    `json:"cifLKR"`
	GeneralDuty          float64    `json:"generalDuty"`
	Surcharge            float64    `json:"surcharge"`
	PerCm3Amount         float64    `json:"perCm3Amount"`
	VAT                  float64    `json:"vat"`
	LuxuryTax            float64    `json:"luxuryTax"`
	LuxuryTaxCalculation float64    `json:"luxuryTaxCalculation"`
	TotalTax             float64    `json:"totalTax"`
	CifJPY1              float64    `json:"cifJPY1"`
	CifLKR1              float64    `json:"cifLKR1"`
}
