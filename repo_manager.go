package auth

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	Validate() error
	MustValidate()
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
	Accounts() Accounts
	Announcements() Announcements
	Catalog() CatalogCounter
}

type mngr struct {
	db            *bun.DB
	accounts      Accounts
	announcements Announcements
	catalog       CatalogCounter
}

// RepositoryManagerOption customizes the manager
type RepositoryManagerOption func(*mngr)

// WithCatalogCounter replaces the table backed catalog counter
func WithCatalogCounter(counter CatalogCounter) RepositoryManagerOption {
	return func(m *mngr) {
		if counter != nil {
			m.catalog = counter
		}
	}
}

// WithRepositoryClock injects the clock used for row timestamps
func WithRepositoryClock(now func() time.Time) RepositoryManagerOption {
	return func(m *mngr) {
		m.accounts = NewAccountsRepository(m.db, WithAccountsClock(now))
		m.announcements = NewAnnouncementsRepository(m.db, now)
	}
}

// NewRepositoryManager wires every repository to the given store handle
func NewRepositoryManager(db *bun.DB, opts ...RepositoryManagerOption) RepositoryManager {
	m := &mngr{
		db:            db,
		accounts:      NewAccountsRepository(db),
		announcements: NewAnnouncementsRepository(db, nil),
		catalog:       NewCatalogCounter(db),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

func (m mngr) Validate() error {
	if m.db == nil {
		return errors.New("repository manager requires a database handle")
	}

	if m.accounts == nil {
		return errors.New("repository accounts should be initialized")
	}

	if m.announcements == nil {
		return errors.New("repository announcements should be initialized")
	}

	if m.catalog == nil {
		return errors.New("catalog counter should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Accounts() Accounts {
	return m.accounts
}

func (m mngr) Announcements() Announcements {
	return m.announcements
}

func (m mngr) Catalog() CatalogCounter {
	return m.catalog
}
