package repository

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/uptrace/bun"
)

// Manager groups the repositories that share one database handle
type Manager struct {
	db        *bun.DB
	users     Users
	novelists Novelists
	books     Books
}

// NewRepositoryManager wires every repository to db
func NewRepositoryManager(db *bun.DB) *Manager {
	return &Manager{
		db:        db,
		users:     NewUsersRepository(db),
		novelists: NewNovelistsRepository(db),
		books:     NewBooksRepository(db),
	}
}

func (m *Manager) Validate() error {
	if m.db == nil {
		return errors.New("repository db should be initialized")
	}

	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.novelists == nil {
		return errors.New("repository novelists should be initialized")
	}

	if m.books == nil {
		return errors.New("repository books should be initialized")
	}

	return nil
}

func (m *Manager) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m *Manager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

// Ping checks the database connection
func (m *Manager) Ping(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		return classify(err)
	}
	return nil
}

func (m *Manager) DB() *bun.DB {
	return m.db
}

func (m *Manager) Users() Users {
	return m.users
}

func (m *Manager) Novelists() Novelists {
	return m.novelists
}

func (m *Manager) Books() Books {
	return m.books
}

// Credentials returns the auth.CredentialStore view of Users
func (m *Manager) Credentials() *CredentialStore {
	return NewCredentialStore(m.users)
}
