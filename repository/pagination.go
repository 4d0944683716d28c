package repository

import (
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100

	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// BookOrderFields are the columns books can be ordered by
var BookOrderFields = []string{"id", "title", "year", "name", "created_at", "updated_at"}

// NovelistOrderFields are the columns novelists can be ordered by
var NovelistOrderFields = []string{"id", "name"}

// PageQuery selects a page of an ordered listing
type PageQuery struct {
	Page     int
	Limit    int
	OrderBy  string
	OrderDir string
}

// Normalize fills defaults and clamps out of range values
func (q PageQuery) Normalize() PageQuery {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.Limit < 1 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if q.OrderBy == "" {
		q.OrderBy = "id"
	}
	if q.OrderDir != OrderAsc {
		q.OrderDir = OrderDesc
	}
	return q
}

// Offset is the number of rows skipped before the page
func (q PageQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// Page is one page of a listing, total counts every matching row
type Page[T any] struct {
	Data    []T  `json:"data"`
	Total   int  `json:"total"`
	Page    int  `json:"page"`
	HasPrev bool `json:"hasPrev"`
	HasNext bool `json:"hasNext"`
}

// NewPage builds the page envelope for q
func NewPage[T any](q PageQuery, data []T, total int) Page[T] {
	if data == nil {
		data = []T{}
	}
	return Page[T]{
		Data:    data,
		Total:   total,
		Page:    q.Page,
		HasPrev: q.Page > 1,
		HasNext: q.Offset()+q.Limit < total,
	}
}

// paginate applies ordering and the page window. orderBy must be one of
// allowed, anything else falls back to id.
func paginate(q *bun.SelectQuery, pq PageQuery, allowed []string) *bun.SelectQuery {
	column := "id"
	for _, f := range allowed {
		if f == pq.OrderBy {
			column = f
			break
		}
	}

	dir := "DESC"
	if pq.OrderDir == OrderAsc {
		dir = "ASC"
	}

	q = q.OrderExpr("?TableAlias.? "+dir, bun.Ident(column))
	if column != "id" {
		// ties keep a stable position across pages
		q = q.OrderExpr("?TableAlias.id " + dir)
	}

	return q.
		Offset(pq.Offset()).
		Limit(pq.Limit)
}

// likeEscaper quotes pattern characters, paired with ESCAPE '!'
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// whereContains adds a case insensitive substring match on column. value
// is matched literally.
func whereContains(q *bun.SelectQuery, db bun.IDB, column, value string) *bun.SelectQuery {
	value = strings.TrimSpace(value)
	if value == "" {
		return q
	}

	op := "LIKE"
	if db.Dialect().Name() == dialect.PG {
		op = "ILIKE"
	}

	pattern := "%" + likeEscaper.Replace(value) + "%"
	return q.Where("?TableAlias.? "+op+" ? ESCAPE '!'", bun.Ident(column), pattern)
}
