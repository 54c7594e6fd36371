package repository

import (
	"context"
	"strings"

	"github.com/smallbiznis/importduty/internal/vehicle/domain"
	"github.com/smallbiznis/importduty/pkg/db/option"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, v *domain.Vehicle) error {
	if v == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Create(v).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id int64) (*domain.Vehicle, error) {
	return r.find(ctx, db.WithContext(ctx), id)
}

// FindByIDForUpdate row-locks the vehicle on databases that support it.
func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id int64) (*domain.Vehicle, error) {
	stmt := db.WithContext(ctx)
	if stmt.Dialector.Name() != "sqlite" {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return r.find(ctx, stmt, id)
}

func (r *repo) find(_ context.Context, stmt *gorm.DB, id int64) (*domain.Vehicle, error) {
	var items []domain.Vehicle
	if err := stmt.Where("id = ?", id).Limit(1).Find(&items).Error; err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListRequest) ([]domain.Vehicle, error) {
	var items []domain.Vehicle
	stmt := db.WithContext(ctx).Model(&domain.Vehicle{})

	if manufacturer := strings.TrimSpace(filter.Manufacturer); manufacturer != "" {
		stmt = stmt.Where("manufacturer = ?", manufacturer)
	}

	stmt = option.WithSortBy(option.WithQuerySortBy(filter.SortBy, filter.OrderBy, map[string]bool{
		"created_at":   true,
		"updated_at":   true,
		"manufacturer": true,
		"vehicle_type": true,
	})).Apply(stmt)

	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Manufacturers(ctx context.Context, db *gorm.DB) ([]string, error) {
	var names []string
	err := db.WithContext(ctx).Raw(
		`SELECT DISTINCT manufacturer FROM vehicles
		 WHERE manufacturer IS NOT NULL AND manufacturer <> '' AND manufacturer <> ?
		 ORDER BY manufacturer ASC`,
		domain.UnknownManufacturer,
	).Scan(&names).Error
	if err != nil {
		return nil, err
	}
	return names, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, v *domain.Vehicle) error {
	if v == nil || v.ID == 0 {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Model(v).
		Select("*").
		Omit("id", "created_at").
		Updates(v).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id int64) error {
	return db.WithContext(ctx).Exec(`DELETE FROM vehicles WHERE id = ?`, id).Error
}
