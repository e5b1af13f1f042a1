// Package client keeps a single logical session for a frontend runtime in
// sync with the server. It polls the self-status endpoint while signed in
// and evicts the session after a short grace period once a ban is observed.
package client

import (
	"context"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// State of the session store
type State string

const (
	StateLoading              State = "loading"
	StateAnonymous            State = "anonymous"
	StateAuthenticated        State = "authenticated"
	StatePendingBanTransition State = "pending_ban_transition"
)

// Account is the account payload returned by the auth endpoints
type Account struct {
	ID           int64      `json:"id"`
	Email        string     `json:"email"`
	Username     string     `json:"username"`
	DisplayName  string     `json:"displayName"`
	Bio          string     `json:"bio"`
	AvatarURL    *string    `json:"avatarUrl"`
	BannerURL    *string    `json:"bannerUrl"`
	Location     string     `json:"location"`
	Role         string     `json:"role"`
	IsBanned     bool       `json:"isBanned"`
	BanReason    *string    `json:"banReason"`
	BanExpiresAt *time.Time `json:"banExpiresAt"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// BanNotice is what the UI shows during the grace window
type BanNotice struct {
	Reason    *string
	ExpiresAt *time.Time
}

func noticeFor(account *Account) *BanNotice {
	return &BanNotice{Reason: account.BanReason, ExpiresAt: account.BanExpiresAt}
}

// RegisterRequest is the signup body
type RegisterRequest struct {
	Email       string `json:"email"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName,omitempty"`
}

// Transport talks to the auth endpoints
type Transport interface {
	// Me resolves the current credential. Banned accounts are returned, not rejected.
	Me(ctx context.Context) (*Account, error)
	Login(ctx context.Context, email, password string) (*Account, error)
	Register(ctx context.Context, req RegisterRequest) (*Account, error)
	// Logout asks the server to clear the credential
	Logout(ctx context.Context) error
}

// Logger is satisfied by *slog.Logger
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

const (
	TextCodeAccountBanned = "ACCOUNT_BANNED"
	TextCodeTransport     = "TRANSPORT_ERROR"
)

// ErrAccountBanned is returned by Login and Register when the account the
// server hands back is already suspended.
var ErrAccountBanned = goerrors.New("account has been banned", goerrors.CategoryAuthz).
	WithTextCode(TextCodeAccountBanned).
	WithCode(403)

func bannedError(account *Account) error {
	clone := ErrAccountBanned.Clone()
	md := map[string]any{"username": account.Username}
	if account.BanReason != nil {
		md["reason"] = *account.BanReason
	}
	if account.BanExpiresAt != nil {
		md["expires_at"] = account.BanExpiresAt.UTC().Format(time.RFC3339)
	}
	return clone.WithMetadata(md)
}

// IsBanned reports whether err signals a banned account
func IsBanned(err error) bool {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == TextCodeAccountBanned
}

// Snapshot is an immutable view of the store
type Snapshot struct {
	State   State
	Account *Account
	Ban     *BanNotice
}

func (s Snapshot) String() string {
	if s.Account == nil {
		return string(s.State)
	}
	return fmt.Sprintf("%s(@%s)", s.State, s.Account.Username)
}
