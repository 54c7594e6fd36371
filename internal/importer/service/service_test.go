package service

import (
	"bytes"
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/smallbiznis/importduty/internal/importer/domain"
	taxdomain "github.com/smallbiznis/importduty/internal/tax/domain"
	vehicledomain "github.com/smallbiznis/importduty/internal/vehicle/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

type stubVehicles struct {
	vehicledomain.Service
	requests []vehicledomain.CreateRequest
}

func (s *stubVehicles) Create(_ context.Context, req vehicledomain.CreateRequest) (*vehicledomain.Response, error) {
	if len(req.PriceCalculations) == 0 {
		return nil, vehicledomain.ErrInvalidPriceCalculations
	}
	s.requests = append(s.requests, req)
	return &vehicledomain.Response{ID: strconv.Itoa(len(s.requests))}, nil
}

func workbook(t *testing.T, rows ...[]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		values := row
		require.NoError(t, f.SetSheetRow(sheet, cell, &values))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func newTestService(vehicles vehicledomain.Service) *Service {
	return New(Params{Log: zap.NewNop(), Vehicles: vehicles}).(*Service)
}

func TestImportMapsHeaderAliases(t *testing.T) {
	vehicles := &stubVehicles{}
	svc := newTestService(vehicles)

	buf := workbook(t,
		[]any{"HS Code", "vehicleType", "Fuel Type", "Engine CC", "Manufacturer", "Exchange Rate", "Luxury Tax Rate", "Yellow Book Price", "Web Value Price", "Notes"},
		[]any{"8703.23", "SUV", "Petrol", 1500, "toyota", 2, 0.4, 1000000, 900000, "ignored"},
	)

	report, err := svc.Import(context.Background(), buf)
	require.NoError(t, err)
	assert.Equal(t, 1, report.TotalRows)
	assert.Equal(t, 1, report.Imported)
	assert.Equal(t, []string{"1"}, report.VehicleIDs)
	assert.Empty(t, report.Errors)

	require.Len(t, vehicles.requests, 1)
	req := vehicles.requests[0]
	assert.Equal(t, "8703.23", *req.HSCode)
	assert.Equal(t, "SUV", *req.VehicleType)
	assert.Equal(t, "toyota", *req.Manufacturer)
	assert.Equal(t, 1500.0, *req.EngineCC)
	assert.Equal(t, 2.0, *req.ExchangeRate)
	assert.Equal(t, 0.4, *req.LuxuryTaxRateValue)
	assert.Nil(t, req.Freight)
	assert.Nil(t, req.VATRate)
	assert.Equal(t, []taxdomain.PriceEntry{
		{Basis: taxdomain.PriceBasisYellowBook, Value: 1000000},
		{Basis: taxdomain.PriceBasisWebValue, Value: 900000},
	}, req.PriceCalculations)
}

func TestImportCollectsRowErrors(t *testing.T) {
	vehicles := &stubVehicles{}
	svc := newTestService(vehicles)

	buf := workbook(t,
		[]any{"Vehicle Type", "Freight", "Price"},
		[]any{"Sedan", "abc", 500000},
		[]any{},
		[]any{"Van", 100, 0},
		[]any{"Truck", "1,250", 750000},
	)

	report, err := svc.Import(context.Background(), buf)
	require.NoError(t, err)
	assert.Equal(t, 3, report.TotalRows)
	assert.Equal(t, 1, report.Imported)
	require.Len(t, report.Errors, 2)

	assert.Equal(t, 2, report.Errors[0].Row)
	assert.True(t, strings.HasPrefix(report.Errors[0].Error, "freight:"))
	assert.Equal(t, 4, report.Errors[1].Row)
	assert.Equal(t, vehicledomain.ErrInvalidPriceCalculations.Error(), report.Errors[1].Error)

	require.Len(t, vehicles.requests, 1)
	req := vehicles.requests[0]
	assert.Equal(t, 1250.0, *req.Freight)
	assert.Equal(t, []taxdomain.PriceEntry{{Basis: taxdomain.PriceBasisYellowBook, Value: 750000}}, req.PriceCalculations)
}

func TestImportRejectsInvalidWorkbook(t *testing.T) {
	svc := newTestService(&stubVehicles{})

	_, err := svc.Import(context.Background(), strings.NewReader("not a workbook"))
	assert.ErrorIs(t, err, domain.ErrInvalidWorkbook)
}

func TestImportEmptySheet(t *testing.T) {
	svc := newTestService(&stubVehicles{})

	_, err := svc.Import(context.Background(), workbook(t))
	assert.ErrorIs(t, err, domain.ErrEmptyWorkbook)
}

func TestNormalizeHeader(t *testing.T) {
	assert.Equal(t, "pperunitlkr", normalizeHeader(" P Per Unit LKR "))
	assert.Equal(t, "pperunitlkr", normalizeHeader("pPerUnitLKR"))
	assert.Equal(t, "luxurytaxratevalue", normalizeHeader("luxury_tax_rate_value"))
}
