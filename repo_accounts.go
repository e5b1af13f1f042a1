package auth

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// Accounts is the credential store. It is the only writer of account rows.
type Accounts interface {
	AccountReader

	GetByIDTx(ctx context.Context, tx bun.IDB, id int64) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error)
	GetByUsername(ctx context.Context, username string) (*Account, error)
	GetByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*Account, error)

	Create(ctx context.Context, record *Account) (*Account, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, error)

	UpdateProfile(ctx context.Context, id int64, update ProfileUpdate) (*Account, error)
	UpdateRole(ctx context.Context, id int64, role UserRole) (*Account, error)
	UpdateBan(ctx context.Context, id int64, state BanState) (*Account, error)

	List(ctx context.Context, limit, offset int) ([]*Account, error)
	Count(ctx context.Context) (int, error)

	TrackAttemptedLogin(ctx context.Context, account *Account) error
	TrackSuccessfulLogin(ctx context.Context, account *Account) error
}

type accounts struct {
	db  bun.IDB
	now nowFunc
}

var _ Accounts = (*accounts)(nil)

// AccountsOption customizes the accounts repository
type AccountsOption func(*accounts)

// WithAccountsClock injects the clock used for timestamps
func WithAccountsClock(now func() time.Time) AccountsOption {
	return func(a *accounts) {
		if now != nil {
			a.now = now
		}
	}
}

// NewAccountsRepository returns a bun backed credential store
func NewAccountsRepository(db bun.IDB, opts ...AccountsOption) Accounts {
	repo := &accounts{
		db:  db,
		now: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo
}

func (a *accounts) GetByID(ctx context.Context, id int64) (*Account, error) {
	return a.GetByIDTx(ctx, a.db, id)
}

func (a *accounts) GetByIDTx(ctx context.Context, tx bun.IDB, id int64) (*Account, error) {
	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, accountLookupError(err, "id", id)
	}
	return record, nil
}

func (a *accounts) GetByEmail(ctx context.Context, email string) (*Account, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *accounts) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error) {
	normalized := NormalizeEmail(email)
	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", normalized).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, accountLookupError(err, "email", normalized)
	}
	return record, nil
}

func (a *accounts) GetByUsername(ctx context.Context, username string) (*Account, error) {
	return a.GetByUsernameTx(ctx, a.db, username)
}

func (a *accounts) GetByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*Account, error) {
	trimmed := strings.TrimSpace(username)
	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.username = ?", trimmed).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, accountLookupError(err, "username", trimmed)
	}
	return record, nil
}

func (a *accounts) Create(ctx context.Context, record *Account) (*Account, error) {
	return a.CreateTx(ctx, a.db, record)
}

func (a *accounts) CreateTx(ctx context.Context, tx bun.IDB, record *Account) (*Account, error) {
	if record == nil {
		return nil, errors.New("account must not be nil", errors.CategoryInternal)
	}

	prepareAccountDefaults(record, a.now())

	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return nil, mapUniqueViolation(err)
	}

	if record.ID == 0 {
		return a.GetByEmailTx(ctx, tx, record.Email)
	}

	return a.GetByIDTx(ctx, tx, record.ID)
}

func (a *accounts) UpdateProfile(ctx context.Context, id int64, update ProfileUpdate) (*Account, error) {
	if update.IsEmpty() {
		return a.GetByID(ctx, id)
	}

	record := &Account{ID: id, UpdatedAt: a.now()}
	columns := []string{"updated_at"}

	if update.DisplayName != nil {
		record.DisplayName = *update.DisplayName
		columns = append(columns, "display_name")
	}
	if update.Bio != nil {
		record.Bio = *update.Bio
		columns = append(columns, "bio")
	}
	if update.AvatarURL != nil {
		record.AvatarURL = emptyAsNil(*update.AvatarURL)
		columns = append(columns, "avatar_url")
	}
	if update.Location != nil {
		record.Location = *update.Location
		columns = append(columns, "location")
	}
	if update.BannerURL != nil {
		record.BannerURL = emptyAsNil(*update.BannerURL)
		columns = append(columns, "banner_url")
	}

	return a.updateColumns(ctx, record, columns...)
}

func (a *accounts) UpdateRole(ctx context.Context, id int64, role UserRole) (*Account, error) {
	if !role.IsValid() {
		return nil, invalidArgument("unknown role", map[string]any{"role": role})
	}

	record := &Account{ID: id, Role: role, UpdatedAt: a.now()}
	return a.updateColumns(ctx, record, "role", "updated_at")
}

// UpdateBan writes all three suspension fields, nil values included
func (a *accounts) UpdateBan(ctx context.Context, id int64, state BanState) (*Account, error) {
	record := &Account{ID: id, UpdatedAt: a.now()}
	record.applyBanState(state)
	return a.updateColumns(ctx, record, "is_banned", "ban_reason", "ban_expires_at", "updated_at")
}

func (a *accounts) updateColumns(ctx context.Context, record *Account, columns ...string) (*Account, error) {
	res, err := a.db.NewUpdate().
		Model(record).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to update account")
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, withMetadata(ErrAccountNotFound, map[string]any{"id": record.ID})
	}

	return a.GetByID(ctx, record.ID)
}

// List returns accounts newest first
func (a *accounts) List(ctx context.Context, limit, offset int) ([]*Account, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	records := []*Account{}
	err := a.db.NewSelect().
		Model(&records).
		OrderExpr("?TableAlias.created_at DESC, ?TableAlias.id DESC").
		Limit(limit).
		Offset(offset).
		Scan(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to list accounts")
	}
	return records, nil
}

func (a *accounts) Count(ctx context.Context) (int, error) {
	n, err := a.db.NewSelect().Model((*Account)(nil)).Count(ctx)
	if err != nil {
		return 0, errors.Wrap(err, errors.CategoryInternal, "failed to count accounts")
	}
	return n, nil
}

func (a *accounts) TrackSuccessfulLogin(ctx context.Context, account *Account) error {
	loggedInAt := a.now()
	_, err := a.db.NewUpdate().
		Model((*Account)(nil)).
		Set("loggedin_at = ?", loggedInAt).
		Set("login_attempt_at = NULL").
		Set("login_attempts = 0").
		Where("id = ?", account.ID).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to track successful login")
	}

	account.LoggedInAt = &loggedInAt
	account.LoginAttemptAt = nil
	account.LoginAttempts = 0
	return nil
}

func (a *accounts) TrackAttemptedLogin(ctx context.Context, account *Account) error {
	attemptAt := a.now()
	attempts := account.LoginAttempts + 1

	_, err := a.db.NewUpdate().
		Model((*Account)(nil)).
		Set("login_attempts = ?", attempts).
		Set("login_attempt_at = ?", attemptAt).
		Where("id = ?", account.ID).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to track login attempt")
	}

	account.LoginAttempts = attempts
	account.LoginAttemptAt = &attemptAt
	return nil
}

// NormalizeEmail lower cases and trims an email for storage and comparison
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func prepareAccountDefaults(record *Account, now time.Time) {
	record.Email = NormalizeEmail(record.Email)
	record.Username = strings.TrimSpace(record.Username)

	if record.Role == "" {
		record.Role = RoleFree
	}

	if record.DisplayName == "" {
		record.DisplayName = record.Username
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = record.CreatedAt
	}
}

func accountLookupError(err error, field string, value any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return withMetadata(ErrAccountNotFound, map[string]any{field: value})
	}
	return errors.Wrap(err, errors.CategoryInternal, "failed to load account")
}

func mapUniqueViolation(err error) error {
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "unique") && !strings.Contains(msg, "duplicate key") {
		return errors.Wrap(err, errors.CategoryInternal, "failed to create account")
	}

	switch {
	case strings.Contains(msg, "email"):
		return ErrEmailTaken
	case strings.Contains(msg, "username"):
		return ErrUsernameTaken
	default:
		return errors.Wrap(err, errors.CategoryConflict, "account already exists").
			WithCode(errors.CodeConflict)
	}
}

func emptyAsNil(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
