package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
)

// AccountTracker is the store the account provider verifies credentials against
type AccountTracker interface {
	GetByEmail(ctx context.Context, email string) (*Account, error)
	TrackAttemptedLogin(ctx context.Context, account *Account) error
	TrackSuccessfulLogin(ctx context.Context, account *Account) error
}

// AccountProvider verifies email/password pairs
type AccountProvider struct {
	store    AccountTracker
	logger   Logger
	provider LoggerProvider
	now      nowFunc
}

// MaxLoginAttempts is the maximum number of attempts an account gets
// in a period
var MaxLoginAttempts = 5

// CoolDownPeriod is the period in which we enforce a cool down
var CoolDownPeriod = "24h"

// NewAccountProvider will create a new AccountProvider
func NewAccountProvider(store AccountTracker) *AccountProvider {
	loggerProvider, logger := ResolveLogger("auth.account_provider", nil, nil)
	return &AccountProvider{
		store:    store,
		logger:   logger,
		provider: loggerProvider,
		now:      time.Now,
	}
}

func (u *AccountProvider) WithLogger(l Logger) *AccountProvider {
	u.provider, u.logger = ResolveLogger("auth.account_provider", u.provider, l)
	return u
}

// WithLoggerProvider overrides the logger provider used by the account provider.
func (u *AccountProvider) WithLoggerProvider(provider LoggerProvider) *AccountProvider {
	u.provider, u.logger = ResolveLogger("auth.account_provider", provider, nil)
	return u
}

// WithClock sets the clock used to evaluate the cool down window
func (u *AccountProvider) WithClock(now func() time.Time) *AccountProvider {
	u.now = resolveNow(now)
	return u
}

// VerifyIdentity finds the account and compares the password.
// An unknown email and a wrong password both yield ErrMismatchedHashAndPassword.
// A banned account is rejected with ErrAccountBanned before the password is checked.
func (u AccountProvider) VerifyIdentity(ctx context.Context, email, password string) (*Account, error) {
	account, err := u.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, ErrMismatchedHashAndPassword
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve account during verification")
	}

	if account.IsBanned {
		return nil, bannedError(account)
	}

	if account.LoginAttemptAt != nil {
		within, err := withinCooldown(u.now(), *account.LoginAttemptAt, CoolDownPeriod)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to calculate login attempt cooldown")
		}

		if !within {
			account.LoginAttempts = 0
		}
	}

	//if we have too many attempts in the given window, cool off!
	if account.LoginAttempts >= MaxLoginAttempts {
		return nil, ErrTooManyLoginAttempts
	}

	if err := ComparePasswordAndHash(password, account.PasswordHash); err != nil {
		if err2 := u.store.TrackAttemptedLogin(ctx, account); err2 != nil {
			return nil, errors.Wrap(err2, errors.CategoryInternal, "failed to track login attempt")
		}

		return nil, ErrMismatchedHashAndPassword
	}

	if err := u.store.TrackSuccessfulLogin(ctx, account); err != nil {
		u.logger.Error("failed to track successful login", "error", err)
	}

	return account, nil
}

func bannedError(account *Account) error {
	metadata := map[string]any{}
	if account.BanReason != nil {
		metadata["reason"] = *account.BanReason
	}
	if account.BanExpiresAt != nil {
		metadata["expires_at"] = account.BanExpiresAt.UTC().Format(time.RFC3339)
	}
	return withMetadata(ErrAccountBanned, metadata)
}
