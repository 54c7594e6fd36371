package option

import (
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QueryOption mutates a gorm statement.
type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type QuerySortBy struct {
	Column string
	Desc   bool
}

// WithQuerySortBy validates a requested sort against an allow-list. Unknown
// columns fall back to created_at and any order other than "asc" is
// descending.
func WithQuerySortBy(sortBy, orderBy string, allowed map[string]bool) QuerySortBy {
	column := strings.ToLower(strings.TrimSpace(sortBy))
	if !allowed[column] {
		column = "created_at"
	}
	return QuerySortBy{
		Column: column,
		Desc:   !strings.EqualFold(strings.TrimSpace(orderBy), "asc"),
	}
}

type sortOption struct {
	sort QuerySortBy
}

func WithSortBy(sort QuerySortBy) QueryOption {
	return sortOption{sort: sort}
}

func (o sortOption) Apply(db *gorm.DB) *gorm.DB {
	stmt := db.Order(clause.OrderByColumn{
		Column: clause.Column{Name: o.sort.Column},
		Desc:   o.sort.Desc,
	})
	if o.sort.Column != "id" {
		stmt = stmt.Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: o.sort.Desc})
	}
	return stmt
}
