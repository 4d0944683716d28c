package repository

import (
	"context"
	"strings"

	"github.com/uptrace/bun"
)

// UserPatch holds the profile fields a user may change, nil means keep
type UserPatch struct {
	Username *string
	Email    *string
}

// Users is the users repository
type Users interface {
	Create(ctx context.Context, record *User) (*User, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *User) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByIDTx(ctx context.Context, tx bun.IDB, id int64) (*User, error)
	GetByIdentifier(ctx context.Context, identifier string) (*User, error)
	GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string) (*User, error)
	List(ctx context.Context, skip, limit int) ([]*User, error)
	Update(ctx context.Context, id int64, patch UserPatch) (*User, error)
	UpdateTx(ctx context.Context, tx bun.IDB, id int64, patch UserPatch) (*User, error)
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	UpdatePasswordTx(ctx context.Context, tx bun.IDB, id int64, passwordHash string) error
	Delete(ctx context.Context, id int64) error
	DeleteTx(ctx context.Context, tx bun.IDB, id int64) error
}

type users struct {
	db *bun.DB
}

var _ Users = (*users)(nil)

// NewUsersRepository returns a bun backed Users
func NewUsersRepository(db *bun.DB) Users {
	return &users{db: db}
}

func (r *users) Create(ctx context.Context, record *User) (*User, error) {
	return r.CreateTx(ctx, r.db, record)
}

func (r *users) CreateTx(ctx context.Context, tx bun.IDB, record *User) (*User, error) {
	record.Email = strings.TrimSpace(record.Email)
	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, classify(err)
	}
	return record, nil
}

func (r *users) GetByID(ctx context.Context, id int64) (*User, error) {
	return r.GetByIDTx(ctx, r.db, id)
}

func (r *users) GetByIDTx(ctx context.Context, tx bun.IDB, id int64) (*User, error) {
	record := &User{}
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

func (r *users) GetByIdentifier(ctx context.Context, identifier string) (*User, error) {
	return r.GetByIdentifierTx(ctx, r.db, identifier)
}

// GetByIdentifierTx matches identifier against username or email
func (r *users) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string) (*User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, ErrRecordNotFound
	}

	record := &User{}
	err := tx.NewSelect().
		Model(record).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("?TableAlias.username = ?", identifier).
				WhereOr("?TableAlias.email = ?", identifier)
		}).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, classify(err)
	}
	return record, nil
}

func (r *users) List(ctx context.Context, skip, limit int) ([]*User, error) {
	if skip < 0 {
		skip = 0
	}
	if limit < 1 || limit > MaxLimit {
		limit = DefaultLimit
	}

	records := []*User{}
	err := r.db.NewSelect().
		Model(&records).
		OrderExpr("?TableAlias.id ASC").
		Offset(skip).
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, classify(err)
	}
	return records, nil
}

func (r *users) Update(ctx context.Context, id int64, patch UserPatch) (*User, error) {
	var out *User
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		out, err = r.UpdateTx(ctx, tx, id, patch)
		return err
	})
	return out, err
}

// UpdateTx applies patch to the user and returns the stored row. The
// password is never touched here.
func (r *users) UpdateTx(ctx context.Context, tx bun.IDB, id int64, patch UserPatch) (*User, error) {
	record, err := r.GetByIDTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	columns := []string{"updated_at"}
	if patch.Username != nil {
		record.Username = *patch.Username
		columns = append(columns, "username")
	}
	if patch.Email != nil {
		record.Email = strings.TrimSpace(*patch.Email)
		columns = append(columns, "email")
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

func (r *users) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	return r.UpdatePasswordTx(ctx, r.db, id, passwordHash)
}

func (r *users) UpdatePasswordTx(ctx context.Context, tx bun.IDB, id int64, passwordHash string) error {
	record := &User{ID: id, Password: passwordHash}
	res, err := tx.NewUpdate().
		Model(record).
		Column("password", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return classify(err)
	}
	return expectAffected(res)
}

func (r *users) Delete(ctx context.Context, id int64) error {
	return r.DeleteTx(ctx, r.db, id)
}

func (r *users) DeleteTx(ctx context.Context, tx bun.IDB, id int64) error {
	res, err := tx.NewDelete().
		Model((*User)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return classify(err)
	}
	return expectAffected(res)
}
