package auth

import (
	"context"
	"database/sql"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// Announcements stores broadcast messages
type Announcements interface {
	Create(ctx context.Context, record *Announcement) (*Announcement, error)
	GetByID(ctx context.Context, id int64) (*Announcement, error)
	// Active returns active, unexpired announcements newest first.
	// Expired rows are filtered out, never deleted.
	Active(ctx context.Context, now time.Time) ([]*Announcement, error)
	Deactivate(ctx context.Context, id int64) (*Announcement, error)
}

type announcements struct {
	db  bun.IDB
	now nowFunc
}

var _ Announcements = (*announcements)(nil)

// NewAnnouncementsRepository returns a bun backed announcements store
func NewAnnouncementsRepository(db bun.IDB, now func() time.Time) Announcements {
	return &announcements{db: db, now: resolveNow(now)}
}

func (r *announcements) Create(ctx context.Context, record *Announcement) (*Announcement, error) {
	if record == nil {
		return nil, errors.New("announcement must not be nil", errors.CategoryInternal)
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = r.now()
	}

	if _, err := r.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to create announcement")
	}

	return r.GetByID(ctx, record.ID)
}

func (r *announcements) GetByID(ctx context.Context, id int64) (*Announcement, error) {
	record := &Announcement{}
	err := r.db.NewSelect().
		Model(record).
		Relation("Creator").
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, withMetadata(ErrAnnouncementNotFound, map[string]any{"id": id})
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load announcement")
	}

	fillCreatorUsername(record)
	return record, nil
}

func (r *announcements) Active(ctx context.Context, now time.Time) ([]*Announcement, error) {
	records := []*Announcement{}
	err := r.db.NewSelect().
		Model(&records).
		Relation("Creator").
		Where("?TableAlias.is_active = ?", true).
		OrderExpr("?TableAlias.created_at DESC, ?TableAlias.id DESC").
		Scan(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to list announcements")
	}

	visible := make([]*Announcement, 0, len(records))
	for _, record := range records {
		if !record.IsVisible(now) {
			continue
		}
		fillCreatorUsername(record)
		visible = append(visible, record)
	}

	return visible, nil
}

func (r *announcements) Deactivate(ctx context.Context, id int64) (*Announcement, error) {
	res, err := r.db.NewUpdate().
		Model((*Announcement)(nil)).
		Set("is_active = ?", false).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to deactivate announcement")
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, withMetadata(ErrAnnouncementNotFound, map[string]any{"id": id})
	}

	return r.GetByID(ctx, id)
}

func fillCreatorUsername(record *Announcement) {
	if record.Creator != nil {
		record.CreatedByUsername = record.Creator.Username
	}
}
