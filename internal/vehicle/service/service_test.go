package service

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/smallbiznis/importduty/internal/audit/domain"
	auditrepository "github.com/smallbiznis/importduty/internal/audit/repository"
	auditservice "github.com/smallbiznis/importduty/internal/audit/service"
	"github.com/smallbiznis/importduty/internal/clock"
	"github.com/smallbiznis/importduty/internal/config"
	"github.com/smallbiznis/importduty/internal/events"
	"github.com/smallbiznis/importduty/internal/providers/pdf"
	"github.com/smallbiznis/importduty/internal/ratelimit"
	taxdomain "github.com/smallbiznis/importduty/internal/tax/domain"
	taxservice "github.com/smallbiznis/importduty/internal/tax/service"
	"github.com/smallbiznis/importduty/internal/vehicle/domain"
	"github.com/smallbiznis/importduty/internal/vehicle/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type computeCalculator struct{}

func (computeCalculator) Calculate(_ context.Context, inputs taxdomain.CostInputs, entries []taxdomain.PriceEntry) ([]taxdomain.Breakdown, error) {
	return taxservice.Compute(inputs, entries)
}

// interleavingCalculator runs onFirst once, from inside the first calculation.
type interleavingCalculator struct {
	fired   atomic.Bool
	onFirst func()
}

func (c *interleavingCalculator) Calculate(_ context.Context, inputs taxdomain.CostInputs, entries []taxdomain.PriceEntry) ([]taxdomain.Breakdown, error) {
	if c.onFirst != nil && c.fired.CompareAndSwap(false, true) {
		c.onFirst()
	}
	return taxservice.Compute(inputs, entries)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, eventType events.EventType, vehicleID string, payload any) error {
	args := m.Called(ctx, eventType, vehicleID, payload)
	return args.Error(0)
}

func (m *mockPublisher) Close() error { return nil }

type fixture struct {
	svc       *Service
	db        *gorm.DB
	audit     auditdomain.Service
	publisher *mockPublisher
	locker    *ratelimit.LocalLocker
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Vehicle{}, &auditdomain.AuditLog{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))

	audit := auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Repo:  auditrepository.Provide(),
	})

	publisher := &mockPublisher{}
	publisher.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	locker := ratelimit.NewLocalLocker()
	svc := New(Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      fake,
		Cfg:        config.Config{BulkUpdateWorkers: 2},
		Repo:       repository.Provide(),
		Calculator: computeCalculator{},
		Audit:      audit,
		Publisher:  publisher,
		PDF:        pdf.New(),
		Limiter:    ratelimit.NewLimiterWith(nil, locker, 0, 0, time.Minute),
	}).(*Service)

	return &fixture{svc: svc, db: db, audit: audit, publisher: publisher, locker: locker}
}

func f(v float64) *float64 { return &v }

func str(v string) *string { return &v }

func yellowBook(v float64) taxdomain.PriceEntry {
	return taxdomain.PriceEntry{Basis: taxdomain.PriceBasisYellowBook, Value: v}
}

func createVehicle(t *testing.T, env *fixture, manufacturer string, entries ...taxdomain.PriceEntry) *domain.Response {
	t.Helper()
	resp, err := env.svc.Create(context.Background(), domain.CreateRequest{
		VehicleInput: domain.VehicleInput{
			VehicleType:       str("Car"),
			Manufacturer:      str(manufacturer),
			PriceCalculations: entries,
		},
	})
	require.NoError(t, err)
	return resp
}

func TestCreateCalculatesAndStores(t *testing.T) {
	env := setup(t)

	resp := createVehicle(t, env, "", yellowBook(1000000))
	assert.Equal(t, domain.UnknownManufacturer, resp.Manufacturer)
	assert.Equal(t, "JPY", resp.RateCurrency)
	require.Len(t, resp.PriceCalculations, 1)
	assert.Equal(t, 485950.0, resp.PriceCalculations[0].TotalTax)
	assert.Nil(t, resp.ExchangeRate)

	got, err := env.svc.Get(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, resp.PriceCalculations, got.PriceCalculations)

	logs, err := env.audit.List(context.Background(), auditdomain.ListAuditLogRequest{})
	require.NoError(t, err)
	require.Len(t, logs.AuditLogs, 1)
	assert.Equal(t, auditdomain.ActionVehicleCreate, logs.AuditLogs[0].Action)

	env.publisher.AssertCalled(t, "Publish", mock.Anything, events.EventVehicleCreated, resp.ID, mock.Anything)
}

func TestCreateValidation(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	_, err := env.svc.Create(ctx, domain.CreateRequest{VehicleInput: domain.VehicleInput{VehicleType: str("Car")}})
	assert.ErrorIs(t, err, domain.ErrInvalidPriceCalculations)

	_, err = env.svc.Create(ctx, domain.CreateRequest{VehicleInput: domain.VehicleInput{
		VehicleType:       str("  "),
		PriceCalculations: []taxdomain.PriceEntry{yellowBook(10)},
	}})
	assert.ErrorIs(t, err, domain.ErrInvalidVehicleType)

	_, err = env.svc.Create(ctx, domain.CreateRequest{VehicleInput: domain.VehicleInput{
		VehicleType:       str("Car"),
		EngineCC:          f(-1),
		PriceCalculations: []taxdomain.PriceEntry{yellowBook(10)},
	}})
	assert.ErrorIs(t, err, domain.ErrInvalidEngineCC)

	_, err = env.svc.Create(ctx, domain.CreateRequest{VehicleInput: domain.VehicleInput{
		VehicleType:       str("Car"),
		PriceCalculations: []taxdomain.PriceEntry{{Basis: "auction", Value: 10}},
	}})
	var verr *taxdomain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "priceCalculations[0].priceType", verr.Field)

	var count int64
	require.NoError(t, env.db.Model(&domain.Vehicle{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestUpdateMergesAndRecalculates(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	created := createVehicle(t, env, "toyota", yellowBook(1000000))

	updated, err := env.svc.Update(ctx, domain.UpdateRequest{
		ID: created.ID,
		VehicleInput: domain.VehicleInput{
			CostInputs: taxdomain.CostInputs{ExchangeRate: f(2)},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Car", updated.VehicleType)
	assert.Equal(t, "TOYOTA", updated.Manufacturer)
	require.NotNil(t, updated.ExchangeRate)
	assert.Equal(t, 2.0, *updated.ExchangeRate)
	require.Len(t, updated.PriceCalculations, 1)
	assert.Equal(t, 1700000.0, updated.PriceCalculations[0].CifLKR)
	assert.Equal(t, 955150.0, updated.PriceCalculations[0].TotalTax)

	updated, err = env.svc.Update(ctx, domain.UpdateRequest{
		ID: created.ID,
		VehicleInput: domain.VehicleInput{
			PriceCalculations: []taxdomain.PriceEntry{yellowBook(500000), {Basis: taxdomain.PriceBasisWebValue, Value: 550000}},
		},
	})
	require.NoError(t, err)
	require.Len(t, updated.PriceCalculations, 2)
	assert.Equal(t, taxdomain.PriceBasisWebValue, updated.PriceCalculations[1].PriceType)

	_, err = env.svc.Update(ctx, domain.UpdateRequest{
		ID:           created.ID,
		VehicleInput: domain.VehicleInput{PriceCalculations: []taxdomain.PriceEntry{}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidPriceCalculations)

	env.publisher.AssertCalled(t, "Publish", mock.Anything, events.EventVehicleUpdated, created.ID, mock.Anything)
}

func TestUpdateRejectsInvalidInputWithoutWriting(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	created := createVehicle(t, env, "honda", yellowBook(1000000))

	_, err := env.svc.Update(ctx, domain.UpdateRequest{
		ID:           created.ID,
		VehicleInput: domain.VehicleInput{CostInputs: taxdomain.CostInputs{Freight: f(-5)}},
	})
	var verr *taxdomain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "freight", verr.Field)

	got, err := env.svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Freight)
	assert.Equal(t, created.PriceCalculations, got.PriceCalculations)
}

func TestGetAndDeleteErrors(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	_, err := env.svc.Get(ctx, "not-a-number")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
	_, err = env.svc.Get(ctx, "12345")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = env.svc.Update(ctx, domain.UpdateRequest{ID: "12345"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = env.svc.Delete(ctx, "12345")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteReturnsRecord(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	created := createVehicle(t, env, "nissan", yellowBook(200000))

	deleted, err := env.svc.Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, deleted.ID)
	assert.Equal(t, "NISSAN", deleted.Manufacturer)

	_, err = env.svc.Get(ctx, created.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	env.publisher.AssertCalled(t, "Publish", mock.Anything, events.EventVehicleDeleted, created.ID, mock.Anything)
}

func TestManufacturersAndFilter(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	createVehicle(t, env, "toyota", yellowBook(1))
	createVehicle(t, env, "Honda", yellowBook(1))
	createVehicle(t, env, "TOYOTA", yellowBook(1))
	createVehicle(t, env, "", yellowBook(1))

	names, err := env.svc.Manufacturers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"HONDA", "TOYOTA"}, names)

	toyotas, err := env.svc.ListByManufacturer(ctx, "toyota")
	require.NoError(t, err)
	assert.Len(t, toyotas, 2)

	all, err := env.svc.List(ctx, domain.ListRequest{})
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestPreviewDoesNotStore(t *testing.T) {
	env := setup(t)

	resp, err := env.svc.Preview(context.Background(), domain.PreviewRequest{
		PriceCalculations: []taxdomain.PriceEntry{yellowBook(1000000)},
	})
	require.NoError(t, err)
	require.Len(t, resp.PriceCalculations, 1)
	assert.Equal(t, 485950.0, resp.PriceCalculations[0].TotalTax)

	_, err = env.svc.Preview(context.Background(), domain.PreviewRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidPriceCalculations)

	var count int64
	require.NoError(t, env.db.Model(&domain.Vehicle{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestBulkUpdateExchangeRate(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	res, err := env.svc.BulkUpdateExchangeRate(ctx, domain.BulkRateRequest{ExchangeRate: f(2)})
	require.NoError(t, err)
	assert.Equal(t, domain.NoVehiclesMessage, res.Message)
	assert.Zero(t, res.UpdatedCount)

	first := createVehicle(t, env, "toyota", yellowBook(1000000))
	createVehicle(t, env, "honda", yellowBook(500000))

	res, err = env.svc.BulkUpdateExchangeRate(ctx, domain.BulkRateRequest{ExchangeRate: f(2), Currency: "usd"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.UpdatedCount)
	assert.Equal(t, "USD", res.Currency)
	assert.Equal(t, "Successfully updated 2 vehicles with new exchange rate", res.Message)

	got, err := env.svc.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "USD", got.RateCurrency)
	require.NotNil(t, got.ExchangeRate)
	assert.Equal(t, 2.0, *got.ExchangeRate)
	assert.Equal(t, 955150.0, got.PriceCalculations[0].TotalTax)

	env.publisher.AssertCalled(t, "Publish", mock.Anything, events.EventVehiclesRerated, "", mock.Anything)
}

func TestBulkUpdateRejectsBadRateAndHeldLock(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	_, err := env.svc.BulkUpdateExchangeRate(ctx, domain.BulkRateRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidExchangeRate)
	_, err = env.svc.BulkUpdateExchangeRate(ctx, domain.BulkRateRequest{ExchangeRate: f(0)})
	assert.ErrorIs(t, err, domain.ErrInvalidExchangeRate)

	_, ok, err := env.locker.TryLock(ctx, "importduty:lock:bulk-rate", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = env.svc.BulkUpdateExchangeRate(ctx, domain.BulkRateRequest{ExchangeRate: f(2)})
	assert.ErrorIs(t, err, domain.ErrBulkUpdateInProgress)
}

func TestBulkUpdateAbortsOnInvalidRow(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	good := createVehicle(t, env, "toyota", yellowBook(1000000))

	bad := &domain.Vehicle{
		ID:           99,
		VehicleType:  "Car",
		Manufacturer: "MAZDA",
		RateCurrency: "JPY",
		Freight:      f(-1),
		CreatedAt:    time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC),
		UpdatedAt:    time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC),
	}
	bad.PriceCalculations = append(bad.PriceCalculations, domain.PriceCalculation{PriceType: taxdomain.PriceBasisYellowBook, PriceValue: 10})
	require.NoError(t, env.db.Create(bad).Error)

	_, err := env.svc.BulkUpdateExchangeRate(ctx, domain.BulkRateRequest{ExchangeRate: f(2)})
	var verr *taxdomain.ValidationError
	require.ErrorAs(t, err, &verr)

	got, err := env.svc.Get(ctx, good.ID)
	require.NoError(t, err)
	assert.Nil(t, got.ExchangeRate)
	assert.Equal(t, 485950.0, got.PriceCalculations[0].TotalTax)
}

func TestBulkUpdateKeepsConcurrentEdit(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	created := createVehicle(t, env, "toyota", yellowBook(1000000))

	calc := &interleavingCalculator{}
	calc.onFirst = func() {
		_, err := env.svc.Update(ctx, domain.UpdateRequest{
			ID: created.ID,
			VehicleInput: domain.VehicleInput{
				HSCode:     str("8703.23"),
				CostInputs: taxdomain.CostInputs{Freight: f(50000)},
			},
		})
		assert.NoError(t, err)
	}
	env.svc.calculator = calc

	res, err := env.svc.BulkUpdateExchangeRate(ctx, domain.BulkRateRequest{ExchangeRate: f(2)})
	require.NoError(t, err)
	assert.Equal(t, 1, res.UpdatedCount)

	got, err := env.svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "8703.23", got.HSCode)
	require.NotNil(t, got.Freight)
	assert.Equal(t, 50000.0, *got.Freight)
	require.NotNil(t, got.ExchangeRate)
	assert.Equal(t, 2.0, *got.ExchangeRate)
	require.Len(t, got.PriceCalculations, 1)
	assert.Equal(t, 1800000.0, got.PriceCalculations[0].CifLKR)
	assert.Equal(t, 1010350.0, got.PriceCalculations[0].TotalTax)
}

func TestBulkUpdateSkipsVehicleDeletedMidRun(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	kept := createVehicle(t, env, "toyota", yellowBook(1000000))
	removed := createVehicle(t, env, "honda", yellowBook(500000))

	calc := &interleavingCalculator{}
	calc.onFirst = func() {
		_, err := env.svc.Delete(ctx, removed.ID)
		assert.NoError(t, err)
	}
	env.svc.calculator = calc

	res, err := env.svc.BulkUpdateExchangeRate(ctx, domain.BulkRateRequest{ExchangeRate: f(2)})
	require.NoError(t, err)
	assert.Equal(t, 1, res.UpdatedCount)

	_, err = env.svc.Get(ctx, removed.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	got, err := env.svc.Get(ctx, kept.ID)
	require.NoError(t, err)
	assert.Equal(t, 955150.0, got.PriceCalculations[0].TotalTax)
}

func TestRenderBreakdown(t *testing.T) {
	env := setup(t)
	created := createVehicle(t, env, "toyota", yellowBook(1000000))

	reader, filename, err := env.svc.RenderBreakdown(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "toyota-car-breakdown.pdf", filename)

	body, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(body[:4]))

	_, _, err = env.svc.RenderBreakdown(context.Background(), "12345")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
