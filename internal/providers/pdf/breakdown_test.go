package pdf

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateBreakdownProducesPDF(t *testing.T) {
	p := New()
	r, err := p.GenerateBreakdown(context.Background(), BreakdownSheet{
		Title:       "Import duty breakdown",
		VehicleType: "TOYOTA AQUA",
		Sections: []BreakdownSection{{
			Basis:      "Yellow Book",
			PriceValue: "1000000.00",
			Rows:       []BreakdownRow{{Label: "General duty", Amount: "170000.00"}},
			TotalTax:   "485950.00",
		}},
	})
	require.NoError(t, err)

	body, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(body[:4]))
}

func TestGenerateBreakdownRejectsEmptySheet(t *testing.T) {
	_, err := New().GenerateBreakdown(context.Background(), BreakdownSheet{})
	assert.ErrorIs(t, err, ErrEmptySheet)
}
