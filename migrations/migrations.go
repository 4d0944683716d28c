// Package migrations embeds the schema and applies it with goose
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sync"

	"github.com/pressly/goose/v3"
)

// Dialect names a schema flavour shipped with the binary
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

//go:embed postgres/*.sql sqlite/*.sql
var Migrations embed.FS

// goose keeps its base FS and dialect in package state
var mu sync.Mutex

// Up applies every pending migration for dialect
func Up(ctx context.Context, db *sql.DB, dialect Dialect) error {
	fsys, gooseDialect, err := source(dialect)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()

	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(gooseDialect); err != nil {
		return fmt.Errorf("migrations: set dialect %s: %w", gooseDialect, err)
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("migrations: up: %w", err)
	}
	return nil
}

// Version returns the current schema version
func Version(ctx context.Context, db *sql.DB, dialect Dialect) (int64, error) {
	_, gooseDialect, err := source(dialect)
	if err != nil {
		return 0, err
	}

	mu.Lock()
	defer mu.Unlock()

	if err := goose.SetDialect(gooseDialect); err != nil {
		return 0, fmt.Errorf("migrations: set dialect %s: %w", gooseDialect, err)
	}

	return goose.GetDBVersionContext(ctx, db)
}

// SetLogger replaces the goose logger, goose.NopLogger silences it
func SetLogger(l goose.Logger) {
	mu.Lock()
	defer mu.Unlock()
	goose.SetLogger(l)
}

func source(dialect Dialect) (fs.FS, string, error) {
	switch dialect {
	case Postgres:
		sub, err := fs.Sub(Migrations, "postgres")
		return sub, "pgx", err
	case SQLite:
		sub, err := fs.Sub(Migrations, "sqlite")
		return sub, "sqlite3", err
	default:
		return nil, "", fmt.Errorf("migrations: unknown dialect %q", dialect)
	}
}
