package domain

import (
	"testing"

	taxdomain "github.com/smallbiznis/importduty/internal/tax/domain"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeManufacturer(t *testing.T) {
	assert.Equal(t, "TOYOTA", NormalizeManufacturer(" toyota "))
	assert.Equal(t, UnknownManufacturer, NormalizeManufacturer("   "))
}

func TestApplyCostInputsKeepsAbsentFields(t *testing.T) {
	freight := 10.0
	v := &Vehicle{Freight: &freight}

	zero := 0.0
	v.ApplyCostInputs(taxdomain.CostInputs{GeneralDutyRate: &zero})

	if assert.NotNil(t, v.Freight) {
		assert.Equal(t, 10.0, *v.Freight)
	}
	if assert.NotNil(t, v.GeneralDutyRate) {
		assert.Equal(t, 0.0, *v.GeneralDutyRate)
	}
	zero = 5
	assert.Equal(t, 0.0, *v.GeneralDutyRate)
	assert.Nil(t, v.CostInputs().VATRate)
}

func TestEntriesRoundTripBreakdowns(t *testing.T) {
	v := &Vehicle{}
	v.SetBreakdowns([]taxdomain.Breakdown{
		{PriceBasis: taxdomain.PriceBasisWebValue, PriceValue: 110, TotalTax: 16900},
	})

	entries := v.Entries()
	assert.Equal(t, []taxdomain.PriceEntry{{Basis: taxdomain.PriceBasisWebValue, Value: 110}}, entries)
	assert.Equal(t, 16900.0, v.PriceCalculations[0].TotalTax)
}
