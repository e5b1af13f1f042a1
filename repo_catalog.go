package auth

import (
	"context"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// CatalogCounter reads aggregate counts from the film catalog tables.
// The catalog itself is owned by another service.
type CatalogCounter interface {
	CountFilms(ctx context.Context) (int, error)
	CountFilmsLogged(ctx context.Context) (int, error)
	CountReviews(ctx context.Context) (int, error)
}

type catalogCounter struct {
	db bun.IDB
}

// NewCatalogCounter counts rows in the films, user_films and reviews tables.
// A missing table counts as zero.
func NewCatalogCounter(db bun.IDB) CatalogCounter {
	return &catalogCounter{db: db}
}

func (c *catalogCounter) CountFilms(ctx context.Context) (int, error) {
	return c.count(ctx, "films", "")
}

func (c *catalogCounter) CountFilmsLogged(ctx context.Context) (int, error) {
	return c.count(ctx, "user_films", "is_watched = TRUE")
}

func (c *catalogCounter) CountReviews(ctx context.Context) (int, error) {
	return c.count(ctx, "reviews", "")
}

func (c *catalogCounter) count(ctx context.Context, table, where string) (int, error) {
	q := c.db.NewSelect().TableExpr(table)
	if where != "" {
		q = q.Where(where)
	}

	n, err := q.Count(ctx)
	if err != nil {
		if isMissingTable(err) {
			return 0, nil
		}
		return 0, errors.Wrap(err, errors.CategoryInternal, "failed to count "+table)
	}
	return n, nil
}

func isMissingTable(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such table") ||
		(strings.Contains(msg, "relation") && strings.Contains(msg, "does not exist"))
}
