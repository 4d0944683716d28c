package repository

import (
	"context"
	"time"

	"github.com/uptrace/bun"
)

// User is the user model
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`
	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	Username      string    `bun:"username,notnull,unique" json:"username"`
	Email         string    `bun:"email,notnull,unique" json:"email"`
	Password      string    `bun:"password,notnull" json:"-"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// Novelist is the novelist model
type Novelist struct {
	bun.BaseModel `bun:"table:novelists,alias:n"`
	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	Name          string    `bun:"name,notnull,unique" json:"name"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// Book is the book model, it belongs to a Novelist
type Book struct {
	bun.BaseModel `bun:"table:books,alias:b"`
	ID            int64     `bun:"id,pk,autoincrement" json:"id"`
	Name          string    `bun:"name,notnull,unique" json:"name"`
	Year          int       `bun:"year,notnull" json:"year"`
	Title         string    `bun:"title,notnull" json:"title"`
	NovelistID    int64     `bun:"id_novelist,notnull" json:"idNovelist"`
	CreatedAt     time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt     time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

var (
	_ bun.BeforeAppendModelHook = (*User)(nil)
	_ bun.BeforeAppendModelHook = (*Novelist)(nil)
	_ bun.BeforeAppendModelHook = (*Book)(nil)
)

func (u *User) BeforeAppendModel(_ context.Context, query bun.Query) error {
	touch(query, &u.CreatedAt, &u.UpdatedAt)
	return nil
}

func (n *Novelist) BeforeAppendModel(_ context.Context, query bun.Query) error {
	touch(query, &n.CreatedAt, &n.UpdatedAt)
	return nil
}

func (b *Book) BeforeAppendModel(_ context.Context, query bun.Query) error {
	touch(query, &b.CreatedAt, &b.UpdatedAt)
	return nil
}

func touch(query bun.Query, created, updated *time.Time) {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if created.IsZero() {
			*created = now
		}
		*updated = now
	case *bun.UpdateQuery:
		*updated = now
	}
}
