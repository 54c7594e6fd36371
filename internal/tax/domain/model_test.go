package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePriceBasis(t *testing.T) {
	cases := map[string]PriceBasis{
		"yellowBook":  PriceBasisYellowBook,
		"YELLOWBOOK":  PriceBasisYellowBook,
		"yellow_book": PriceBasisYellowBook,
		" webValue ":  PriceBasisWebValue,
		"web_value":   PriceBasisWebValue,
	}
	for raw, want := range cases {
		got, ok := ParsePriceBasis(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}

	_, ok := ParsePriceBasis("auction")
	assert.False(t, ok)
}

func TestPriceEntryUnmarshalKeepsUnknownBasis(t *testing.T) {
	var entries []PriceEntry
	require.NoError(t, json.Unmarshal([]byte(`[{"priceType":"web_value","priceValue":10},{"priceType":"auction","priceValue":1}]`), &entries))

	assert.Equal(t, PriceBasisWebValue, entries[0].Basis)
	assert.Equal(t, PriceBasis("auction"), entries[1].Basis)
	assert.False(t, entries[1].Basis.Valid())
}

func TestCostInputsDistinguishZeroFromAbsent(t *testing.T) {
	var in CostInputs
	require.NoError(t, json.Unmarshal([]byte(`{"generalDutyRate":0}`), &in))

	require.NotNil(t, in.GeneralDutyRate)
	assert.Equal(t, 0.0, *in.GeneralDutyRate)
	assert.Nil(t, in.VATRate)
}
