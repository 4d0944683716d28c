package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/goliatone/go-madr/migrations"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupManager(t *testing.T) (*Manager, func()) {
	t.Helper()

	db, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	_, err = db.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	migrations.SetLogger(goose.NopLogger())
	require.NoError(t, migrations.Up(context.Background(), db, migrations.SQLite))

	bunDB := bun.NewDB(db, sqlitedialect.New())

	cleanup := func() {
		_ = bunDB.Close()
		_ = db.Close()
	}

	m := NewRepositoryManager(bunDB)
	m.MustValidate()

	return m, cleanup
}

func seedNovelist(t *testing.T, m *Manager, name string) *Novelist {
	t.Helper()
	n, err := m.Novelists().Create(context.Background(), &Novelist{Name: name})
	require.NoError(t, err)
	return n
}

func seedBook(t *testing.T, m *Manager, novelistID int64, name, title string, year int) *Book {
	t.Helper()
	b, err := m.Books().Create(context.Background(), &Book{
		Name:       name,
		Title:      title,
		Year:       year,
		NovelistID: novelistID,
	})
	require.NoError(t, err)
	return b
}

func ptr[T any](v T) *T {
	return &v
}
