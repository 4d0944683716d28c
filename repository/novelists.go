package repository

import (
	"context"

	"github.com/uptrace/bun"
)

// NovelistFilter narrows a novelist listing
type NovelistFilter struct {
	PageQuery
	Name string
}

// NovelistPatch holds the novelist fields to change, nil means keep
type NovelistPatch struct {
	Name *string
}

// Novelists is the novelists repository
type Novelists interface {
	Create(ctx context.Context, record *Novelist) (*Novelist, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Novelist) (*Novelist, error)
	GetByID(ctx context.Context, id int64) (*Novelist, error)
	GetByIDTx(ctx context.Context, tx bun.IDB, id int64) (*Novelist, error)
	List(ctx context.Context, filter NovelistFilter) (Page[*Novelist], error)
	Update(ctx context.Context, id int64, patch NovelistPatch) (*Novelist, error)
	UpdateTx(ctx context.Context, tx bun.IDB, id int64, patch NovelistPatch) (*Novelist, error)
	Delete(ctx context.Context, id int64) error
	DeleteTx(ctx context.Context, tx bun.IDB, id int64) error
}

type novelists struct {
	db *bun.DB
}

var _ Novelists = (*novelists)(nil)

// NewNovelistsRepository returns a bun backed Novelists
func NewNovelistsRepository(db *bun.DB) Novelists {
	return &novelists{db: db}
}

type novelistRow struct {
	Novelist `bun:",extend"`
	Total    int `bun:"total,scanonly"`
}

func (r *novelists) Create(ctx context.Context, record *Novelist) (*Novelist, error) {
	return r.CreateTx(ctx, r.db, record)
}

func (r *novelists) CreateTx(ctx context.Context, tx bun.IDB, record *Novelist) (*Novelist, error) {
	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, classify(err)
	}
	return record, nil
}

func (r *novelists) GetByID(ctx context.Context, id int64) (*Novelist, error) {
	return r.GetByIDTx(ctx, r.db, id)
}

func (r *novelists) GetByIDTx(ctx context.Context, tx bun.IDB, id int64) (*Novelist, error) {
	record := &Novelist{}
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

// List returns one page of novelists, the total is computed in the same
// query through a window count
func (r *novelists) List(ctx context.Context, filter NovelistFilter) (Page[*Novelist], error) {
	pq := filter.PageQuery.Normalize()

	rows := []novelistRow{}
	q := r.db.NewSelect().
		Model(&rows).
		ColumnExpr("?TableAlias.*").
		ColumnExpr("count(*) OVER () AS total")

	q = whereContains(q, r.db, "name", filter.Name)
	q = paginate(q, pq, NovelistOrderFields)

	if err := q.Scan(ctx); err != nil {
		return Page[*Novelist]{}, classify(err)
	}

	total := 0
	data := make([]*Novelist, 0, len(rows))
	for i := range rows {
		total = rows[i].Total
		data = append(data, &rows[i].Novelist)
	}

	return NewPage(pq, data, total), nil
}

func (r *novelists) Update(ctx context.Context, id int64, patch NovelistPatch) (*Novelist, error) {
	var out *Novelist
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		out, err = r.UpdateTx(ctx, tx, id, patch)
		return err
	})
	return out, err
}

func (r *novelists) UpdateTx(ctx context.Context, tx bun.IDB, id int64, patch NovelistPatch) (*Novelist, error) {
	record, err := r.GetByIDTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	columns := []string{"updated_at"}
	if patch.Name != nil {
		record.Name = *patch.Name
		columns = append(columns, "name")
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

func (r *novelists) Delete(ctx context.Context, id int64) error {
	return r.DeleteTx(ctx, r.db, id)
}

// DeleteTx removes the novelist, its books go with it through the
// cascading foreign key
func (r *novelists) DeleteTx(ctx context.Context, tx bun.IDB, id int64) error {
	res, err := tx.NewDelete().
		Model((*Novelist)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return classify(err)
	}
	return expectAffected(res)
}
