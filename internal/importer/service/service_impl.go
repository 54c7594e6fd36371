package service

import (
	"context"
	"fmt"
	"io"

	auditdomain "github.com/smallbiznis/importduty/internal/audit/domain"
	"github.com/smallbiznis/importduty/internal/events"
	"github.com/smallbiznis/importduty/internal/importer/domain"
	"github.com/smallbiznis/importduty/internal/observability/metrics"
	vehicledomain "github.com/smallbiznis/importduty/internal/vehicle/domain"
	"github.com/xuri/excelize/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log       *zap.Logger
	Vehicles  vehicledomain.Service
	Audit     auditdomain.Service
	Publisher events.Publisher

	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	log       *zap.Logger
	vehicles  vehicledomain.Service
	audit     auditdomain.Service
	publisher events.Publisher
	metrics   *metrics.Metrics
}

func New(p Params) domain.Service {
	publisher := p.Publisher
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Service{
		log:       p.Log.Named("importer.service"),
		vehicles:  p.Vehicles,
		audit:     p.Audit,
		publisher: publisher,
		metrics:   p.Metrics,
	}
}

func (s *Service) Import(ctx context.Context, r io.Reader) (*domain.Report, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidWorkbook, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, domain.ErrEmptyWorkbook
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidWorkbook, err)
	}
	if len(rows) == 0 {
		return nil, domain.ErrEmptyWorkbook
	}

	fields := resolveHeader(rows[0])
	report := &domain.Report{
		VehicleIDs: []string{},
		Errors:     []domain.RowError{},
	}

	for i, cells := range rows[1:] {
		if blankRow(cells) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rowNumber := i + 2
		report.TotalRows++

		resp, err := s.importRow(ctx, fields, cells)
		if err != nil {
			s.log.Warn("import row failed", zap.Int("row", rowNumber), zap.Error(err))
			report.Errors = append(report.Errors, domain.RowError{Row: rowNumber, Error: err.Error()})
			continue
		}
		report.Imported++
		report.VehicleIDs = append(report.VehicleIDs, resp.ID)
	}

	s.metrics.RecordImportedRows(ctx, "success", report.Imported)
	s.metrics.RecordImportedRows(ctx, "failed", len(report.Errors))
	s.finish(ctx, sheets[0], report)

	s.log.Info("workbook imported",
		zap.String("sheet", sheets[0]),
		zap.Int("total_rows", report.TotalRows),
		zap.Int("imported", report.Imported),
		zap.Int("failed", len(report.Errors)),
	)
	return report, nil
}

func (s *Service) importRow(ctx context.Context, fields []string, cells []string) (*vehicledomain.Response, error) {
	req, err := buildRow(fields, cells)
	if err != nil {
		return nil, err
	}
	return s.vehicles.Create(ctx, req)
}

func (s *Service) finish(ctx context.Context, sheet string, report *domain.Report) {
	summary := map[string]any{
		"sheet":      sheet,
		"total_rows": report.TotalRows,
		"imported":   report.Imported,
		"failed":     len(report.Errors),
	}

	if s.audit != nil {
		err := s.audit.Record(ctx, auditdomain.Entry{
			Action:     auditdomain.ActionVehicleImport,
			TargetType: "vehicle",
			Metadata:   summary,
		})
		if err != nil {
			s.log.Warn("audit record failed", zap.String("action", auditdomain.ActionVehicleImport), zap.Error(err))
		}
	}

	if err := s.publisher.Publish(ctx, events.EventVehiclesImported, "", summary); err != nil {
		s.log.Warn("event publish failed", zap.String("event_type", string(events.EventVehiclesImported)), zap.Error(err))
	}
}
