package auth

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

// AccountLocalsKey is the fiber Locals key holding the resolved account
const AccountLocalsKey = "account"

// ResolutionErrorLocalsKey holds a store failure hit while resolving the caller
const ResolutionErrorLocalsKey = "account_error"

var accountCtxKey = &contextKey{"account"}
var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// WithContext sets the Account in the given context
func WithContext(r context.Context, account *Account) context.Context {
	return context.WithValue(r, accountCtxKey, account)
}

// FromContext finds the account from the context.
func FromContext(ctx context.Context) (*Account, bool) {
	raw, ok := ctx.Value(accountCtxKey).(*Account)
	return raw, ok && raw != nil
}

// WithClaimsContext sets the AuthClaims in the given context
func WithClaimsContext(r context.Context, claims AuthClaims) context.Context {
	return context.WithValue(r, claimsCtxKey, claims)
}

// GetClaims extracts the AuthClaims from the standard context
func GetClaims(ctx context.Context) (AuthClaims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(AuthClaims)
	return raw, ok
}

// SetAccount stores the resolved account on the request
func SetAccount(c *fiber.Ctx, account *Account) {
	c.Locals(AccountLocalsKey, account)
	c.SetUserContext(WithContext(c.UserContext(), account))
}

// CurrentAccount returns the account resolved for this request, or nil when
// the caller is anonymous.
func CurrentAccount(c *fiber.Ctx) *Account {
	account, ok := c.Locals(AccountLocalsKey).(*Account)
	if !ok {
		return nil
	}
	return account
}

// SetResolutionError records that the caller could not be resolved because
// of a server side failure. Guards report it instead of treating the caller
// as anonymous.
func SetResolutionError(c *fiber.Ctx, err error) {
	c.Locals(ResolutionErrorLocalsKey, err)
}

// ResolutionError returns the failure recorded by SetResolutionError
func ResolutionError(c *fiber.Ctx) error {
	err, _ := c.Locals(ResolutionErrorLocalsKey).(error)
	return err
}

// GetFiberClaims extracts the AuthClaims stored by the credential middleware
func GetFiberClaims(c *fiber.Ctx, key string) (AuthClaims, bool) {
	if key == "" {
		key = "claims"
	}
	raw := c.Locals(key)
	if raw == nil {
		return nil, false
	}
	claims, ok := raw.(AuthClaims)
	return claims, ok
}
