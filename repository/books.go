package repository

import (
	"context"

	"github.com/uptrace/bun"
)

// BookFilter narrows a book listing. YearFrom is inclusive and YearTo
// exclusive.
type BookFilter struct {
	PageQuery
	YearFrom   *int
	YearTo     *int
	Name       string
	Title      string
	NovelistID *int64
}

// BookPatch holds the book fields to change, nil means keep
type BookPatch struct {
	Name       *string
	Year       *int
	Title      *string
	NovelistID *int64
}

// Books is the books repository
type Books interface {
	Create(ctx context.Context, record *Book) (*Book, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Book) (*Book, error)
	GetByID(ctx context.Context, id int64) (*Book, error)
	GetByIDTx(ctx context.Context, tx bun.IDB, id int64) (*Book, error)
	List(ctx context.Context, filter BookFilter) (Page[*Book], error)
	Update(ctx context.Context, id int64, patch BookPatch) (*Book, error)
	UpdateTx(ctx context.Context, tx bun.IDB, id int64, patch BookPatch) (*Book, error)
	Delete(ctx context.Context, id int64) error
	DeleteTx(ctx context.Context, tx bun.IDB, id int64) error
}

type books struct {
	db *bun.DB
}

var _ Books = (*books)(nil)

// NewBooksRepository returns a bun backed Books
func NewBooksRepository(db *bun.DB) Books {
	return &books{db: db}
}

type bookRow struct {
	Book  `bun:",extend"`
	Total int `bun:"total,scanonly"`
}

func (r *books) Create(ctx context.Context, record *Book) (*Book, error) {
	return r.CreateTx(ctx, r.db, record)
}

// CreateTx inserts the book. A missing novelist surfaces as
// ErrForeignKeyViolation.
func (r *books) CreateTx(ctx context.Context, tx bun.IDB, record *Book) (*Book, error) {
	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, classify(err)
	}
	return record, nil
}

func (r *books) GetByID(ctx context.Context, id int64) (*Book, error) {
	return r.GetByIDTx(ctx, r.db, id)
}

func (r *books) GetByIDTx(ctx context.Context, tx bun.IDB, id int64) (*Book, error) {
	record := &Book{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, classify(err)
	}
	return record, nil
}

func (r *books) List(ctx context.Context, filter BookFilter) (Page[*Book], error) {
	pq := filter.PageQuery.Normalize()

	rows := []bookRow{}
	q := r.db.NewSelect().
		Model(&rows).
		ColumnExpr("?TableAlias.*").
		ColumnExpr("count(*) OVER () AS total")

	if filter.YearFrom != nil {
		q = q.Where("?TableAlias.year >= ?", *filter.YearFrom)
	}
	if filter.YearTo != nil {
		q = q.Where("?TableAlias.year < ?", *filter.YearTo)
	}
	if filter.NovelistID != nil {
		q = q.Where("?TableAlias.id_novelist = ?", *filter.NovelistID)
	}
	q = whereContains(q, r.db, "name", filter.Name)
	q = whereContains(q, r.db, "title", filter.Title)
	q = paginate(q, pq, BookOrderFields)

	if err := q.Scan(ctx); err != nil {
		return Page[*Book]{}, classify(err)
	}

	total := 0
	data := make([]*Book, 0, len(rows))
	for i := range rows {
		total = rows[i].Total
		data = append(data, &rows[i].Book)
	}

	return NewPage(pq, data, total), nil
}

func (r *books) Update(ctx context.Context, id int64, patch BookPatch) (*Book, error) {
	var out *Book
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		out, err = r.UpdateTx(ctx, tx, id, patch)
		return err
	})
	return out, err
}

func (r *books) UpdateTx(ctx context.Context, tx bun.IDB, id int64, patch BookPatch) (*Book, error) {
	record, err := r.GetByIDTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	columns := []string{"updated_at"}
	if patch.Name != nil {
		record.Name = *patch.Name
		columns = append(columns, "name")
	}
	if patch.Year != nil {
		record.Year = *patch.Year
		columns = append(columns, "year")
	}
	if patch.Title != nil {
		record.Title = *patch.Title
		columns = append(columns, "title")
	}
	if patch.NovelistID != nil {
		record.NovelistID = *patch.NovelistID
		columns = append(columns, "id_novelist")
	}

	_, err = tx.NewUpdate().
		Model(record).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, classify(err)
	}
	return record, nil
}

func (r *books) Delete(ctx context.Context, id int64) error {
	return r.DeleteTx(ctx, r.db, id)
}

func (r *books) DeleteTx(ctx context.Context, tx bun.IDB, id int64) error {
	res, err := tx.NewDelete().
		Model((*Book)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return classify(err)
	}
	return expectAffected(res)
}
