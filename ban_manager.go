package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// BanStore is the slice of the credential store the ban manager writes through
type BanStore interface {
	GetByID(ctx context.Context, id int64) (*Account, error)
	UpdateBan(ctx context.Context, id int64, state BanState) (*Account, error)
}

// BanContext is passed into hooks for additional processing.
type BanContext struct {
	Actor   ActorRef
	Account *Account
	From    BanState
	To      BanState
}

// BanHook is executed before or after the suspension fields are written.
// A before hook error aborts the operation.
type BanHook func(ctx context.Context, bc BanContext) error

// BanOption customizes a single Ban call.
type BanOption func(*banOptions)

type banOptions struct {
	reason      *string
	expiresAt   *time.Time
	metadata    map[string]any
	beforeHooks []BanHook
	afterHooks  []BanHook
}

// WithBanReason records why the account was suspended
func WithBanReason(reason string) BanOption {
	return func(opts *banOptions) {
		if reason != "" {
			opts.reason = &reason
		}
	}
}

// WithBanExpiry records when the ban is meant to end. Nothing lifts it
// automatically, an explicit Unban is still required.
func WithBanExpiry(at time.Time) BanOption {
	return func(opts *banOptions) {
		if !at.IsZero() {
			opts.expiresAt = &at
		}
	}
}

// WithBanMetadata merges metadata into the emitted activity event.
func WithBanMetadata(metadata map[string]any) BanOption {
	return func(opts *banOptions) {
		if len(metadata) == 0 {
			return
		}
		if opts.metadata == nil {
			opts.metadata = make(map[string]any, len(metadata))
		}
		for k, v := range metadata {
			opts.metadata[k] = v
		}
	}
}

// WithBeforeBanHook adds a hook executed before the update.
func WithBeforeBanHook(h BanHook) BanOption {
	return func(opts *banOptions) {
		if h != nil {
			opts.beforeHooks = append(opts.beforeHooks, h)
		}
	}
}

// WithAfterBanHook adds a hook executed after the update succeeds.
func WithAfterBanHook(h BanHook) BanOption {
	return func(opts *banOptions) {
		if h != nil {
			opts.afterHooks = append(opts.afterHooks, h)
		}
	}
}

// BanManager applies and revokes suspensions independently of role.
type BanManager interface {
	// Ban sets the suspension fields. Re-banning overwrites reason and expiry.
	// The owner account is rejected with ErrProtectedAccount.
	Ban(ctx context.Context, actor ActorRef, accountID int64, opts ...BanOption) (*Account, error)
	// Unban clears all three suspension fields unconditionally.
	Unban(ctx context.Context, actor ActorRef, accountID int64, opts ...BanOption) (*Account, error)
}

// BanManagerOption customizes manager construction.
type BanManagerOption func(*banManager)

// WithBanManagerClock injects a custom clock (useful for tests).
func WithBanManagerClock(clock func() time.Time) BanManagerOption {
	return func(m *banManager) {
		if clock != nil {
			m.recorder.now = clock
		}
	}
}

// WithBanManagerActivitySink sets the ActivitySink used to publish ban events.
func WithBanManagerActivitySink(sink ActivitySink) BanManagerOption {
	return func(m *banManager) {
		m.recorder.sink = normalizeActivitySink(sink)
	}
}

// WithBanManagerLogger overrides the logger used for sink failures.
func WithBanManagerLogger(logger Logger) BanManagerOption {
	return func(m *banManager) {
		if logger != nil {
			m.logger = logger
			m.recorder.logger = logger
		}
	}
}

// NewBanManager returns the default implementation backed by the provided store.
func NewBanManager(store BanStore, opts ...BanManagerOption) BanManager {
	_, logger := ResolveLogger("auth.bans", nil, nil)
	m := &banManager{
		store:    store,
		logger:   logger,
		recorder: newActivityRecorder(nil, logger, nil),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

type banManager struct {
	store    BanStore
	logger   Logger
	recorder activityRecorder
}

func (m *banManager) Ban(ctx context.Context, actor ActorRef, accountID int64, opts ...BanOption) (*Account, error) {
	options := buildBanOptions(opts...)

	account, err := m.store.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if account.IsOwner() {
		return nil, withMetadata(ErrProtectedAccount, map[string]any{
			"account_id": accountID,
			"operation":  "ban",
		})
	}

	target := BanState{
		IsBanned:  true,
		Reason:    options.reason,
		ExpiresAt: options.expiresAt,
	}

	updated, err := m.apply(ctx, actor, account, target, options)
	if err != nil {
		return nil, err
	}

	meta := mergeMetadata(options.metadata, map[string]any{})
	if options.reason != nil {
		meta["reason"] = *options.reason
	}
	if options.expiresAt != nil {
		meta["expires_at"] = options.expiresAt.UTC().Format(time.RFC3339)
	}

	m.recorder.record(ctx, ActivityEvent{
		EventType: ActivityEventAccountBanned,
		Actor:     actor,
		AccountID: accountID,
		From:      banLabel(account.IsBanned),
		To:        banLabel(true),
		Metadata:  meta,
	})

	return updated, nil
}

func (m *banManager) Unban(ctx context.Context, actor ActorRef, accountID int64, opts ...BanOption) (*Account, error) {
	options := buildBanOptions(opts...)

	account, err := m.store.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	updated, err := m.apply(ctx, actor, account, BanState{}, options)
	if err != nil {
		return nil, err
	}

	m.recorder.record(ctx, ActivityEvent{
		EventType: ActivityEventAccountUnbanned,
		Actor:     actor,
		AccountID: accountID,
		From:      banLabel(account.IsBanned),
		To:        banLabel(false),
		Metadata:  mergeMetadata(options.metadata, nil),
	})

	return updated, nil
}

func (m *banManager) apply(ctx context.Context, actor ActorRef, account *Account, target BanState, options *banOptions) (*Account, error) {
	bc := BanContext{
		Actor:   actor,
		Account: account,
		From:    account.BanState(),
		To:      target,
	}

	if err := runBanHooks(ctx, options.beforeHooks, bc); err != nil {
		return nil, err
	}

	updated, err := m.store.UpdateBan(ctx, account.ID, target)
	if err != nil {
		return nil, err
	}

	bc.Account = updated
	if err := runBanHooks(ctx, options.afterHooks, bc); err != nil {
		m.logger.Warn("after ban hook failed", "account_id", account.ID, "error", err)
	}

	return updated, nil
}

func runBanHooks(ctx context.Context, hooks []BanHook, bc BanContext) error {
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, bc); err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return richErr
			}
			return goerrors.Wrap(err, goerrors.CategoryOperation, "ban hook failed")
		}
	}
	return nil
}

func buildBanOptions(opts ...BanOption) *banOptions {
	options := &banOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}
	return options
}

func banLabel(banned bool) string {
	if banned {
		return "banned"
	}
	return "active"
}

func mergeMetadata(base map[string]any, extra map[string]any) map[string]any {
	if len(base) == 0 && extra == nil {
		return nil
	}
	result := make(map[string]any, len(base)+len(extra))
	for k, v := range base {
		result[k] = v
	}
	for k, v := range extra {
		result[k] = v
	}
	return result
}
