package auth

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthClaims is the read-only view of a session credential
type AuthClaims interface {
	Subject() string
	AccountID() int64
	Role() UserRole
	Expires() time.Time
	IssuedAt() time.Time
}

// JWTClaims is the concrete implementation of AuthClaims.
// Ban fields are deliberately absent, they are always read from the store.
type JWTClaims struct {
	jwt.RegisteredClaims
	UID      int64    `json:"userId"`
	Email    string   `json:"email"`
	Username string   `json:"username"`
	UserRole UserRole `json:"role"`
}

// Verify interface compliance
var _ AuthClaims = (*JWTClaims)(nil)

// Subject returns the subject claim
func (c *JWTClaims) Subject() string {
	return c.RegisteredClaims.Subject
}

// AccountID returns the referenced account id, falling back to the subject
func (c *JWTClaims) AccountID() int64 {
	if c.UID != 0 {
		return c.UID
	}
	id, err := strconv.ParseInt(c.Subject(), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// Role returns the role at issuance time. It is a hint only.
func (c *JWTClaims) Role() UserRole {
	return c.UserRole
}

// Expires returns the expiration time
func (c *JWTClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *JWTClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
