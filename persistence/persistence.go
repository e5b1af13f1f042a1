// Package persistence opens the credential store and applies its schema.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/cinemalog/auth"
	"github.com/goliatone/go-errors"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Dialect names the backing database engine
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DetectDialect picks the engine from the DSN scheme
func DetectDialect(dsn string) Dialect {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return DialectPostgres
	}
	return DialectSQLite
}

// Open connects to the store described by dsn.
// postgres:// and postgresql:// go through pgx, anything else is a sqlite path
// with an optional sqlite:// prefix.
func Open(ctx context.Context, dsn string) (*bun.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("database dsn is required", errors.CategoryValidation)
	}

	var db *bun.DB
	switch DetectDialect(dsn) {
	case DialectPostgres:
		sqldb, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to open postgres connection")
		}
		db = bun.NewDB(sqldb, pgdialect.New())
	default:
		sqldb, err := sql.Open(sqliteshim.ShimName, strings.TrimPrefix(dsn, "sqlite://"))
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to open sqlite connection")
		}
		// sqlite serializes writers, and in-memory databases are per connection
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to reach database")
	}

	return db, nil
}

// Migrate applies every pending migration for the db's dialect
func Migrate(ctx context.Context, db *bun.DB) error {
	target := DialectSQLite
	gooseDialect := goose.DialectSQLite3
	if db.Dialect().Name() == dialect.PG {
		target = DialectPostgres
		gooseDialect = goose.DialectPostgres
	}

	fsys, err := auth.GetDialectMigrationsFS(string(target))
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to load migrations")
	}

	provider, err := goose.NewProvider(gooseDialect, db.DB, fsys)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to create migration provider")
	}

	if _, err := provider.Up(ctx); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, fmt.Sprintf("failed to migrate %s schema", target))
	}

	return nil
}

// OpenAndMigrate is Open followed by Migrate
func OpenAndMigrate(ctx context.Context, dsn string) (*bun.DB, error) {
	db, err := Open(ctx, dsn)
	if err != nil {
		return nil, err
	}

	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}
