package auth

import (
	"github.com/gofiber/fiber/v2"
)

type requirementKind int

const (
	requireAuthenticated requirementKind = iota
	requireRoleSet
	requireAdminTier
)

// Requirement is the capability an endpoint demands from its caller
type Requirement struct {
	kind  requirementKind
	roles []UserRole
}

// Authenticated accepts any resolved account
func Authenticated() Requirement {
	return Requirement{kind: requireAuthenticated}
}

// RolesIn accepts accounts whose role is one of roles
func RolesIn(roles ...UserRole) Requirement {
	return Requirement{kind: requireRoleSet, roles: roles}
}

// AdminTier accepts owner and higher_admin accounts, see IsAdminTier
func AdminTier() Requirement {
	return Requirement{kind: requireAdminTier}
}

// Authorize checks account against the requirement.
// A nil account yields ErrUnauthenticated, an insufficient role ErrForbidden.
func (r Requirement) Authorize(account *Account) error {
	if account == nil {
		return ErrUnauthenticated
	}

	switch r.kind {
	case requireAuthenticated:
		return nil
	case requireAdminTier:
		if IsAdminTier(account.Role) {
			return nil
		}
	case requireRoleSet:
		for _, role := range r.roles {
			if account.Role == role {
				return nil
			}
		}
	}

	return withMetadata(ErrForbidden, map[string]any{"role": account.Role})
}

// RoleGuard gates fiber routes on a requirement. It expects the session
// resolver middleware to have run earlier in the chain.
type RoleGuard struct {
	errorHandler fiber.ErrorHandler
}

// NewRoleGuard returns a guard that reports failures through errorHandler
func NewRoleGuard(errorHandler fiber.ErrorHandler) *RoleGuard {
	if errorHandler == nil {
		errorHandler = NewErrorHandler(nil)
	}
	return &RoleGuard{errorHandler: errorHandler}
}

// Require returns the middleware for req. A caller the resolver could not
// load because of a store failure gets that failure, not a 401.
func (g *RoleGuard) Require(req Requirement) fiber.Handler {
	return func(c *fiber.Ctx) error {
		account := CurrentAccount(c)
		if account == nil {
			if err := ResolutionError(c); err != nil {
				return g.errorHandler(c, err)
			}
		}
		if err := req.Authorize(account); err != nil {
			return g.errorHandler(c, err)
		}
		return c.Next()
	}
}

func (g *RoleGuard) RequireAuth() fiber.Handler {
	return g.Require(Authenticated())
}

func (g *RoleGuard) RequireRoles(roles ...UserRole) fiber.Handler {
	return g.Require(RolesIn(roles...))
}

func (g *RoleGuard) RequireAdminTier() fiber.Handler {
	return g.Require(AdminTier())
}
