package auth

import "strings"

// UserRole is the privilege tier of an account
type UserRole string

const (
	// RoleFree is the default tier for new accounts
	RoleFree UserRole = "free"
	// RolePro is a paid tier
	RolePro UserRole = "pro"
	// RolePatron is a supporter tier
	RolePatron UserRole = "patron"
	// RoleLifetime is a one-off paid tier
	RoleLifetime UserRole = "lifetime"
	// RoleAdmin is an assignable staff tier. It does not pass admin tier gates.
	RoleAdmin UserRole = "admin"
	// RoleHigherAdmin is staff that can run the admin console
	RoleHigherAdmin UserRole = "higher_admin"
	// RoleOwner is assigned once, at registration, to the configured owner email
	RoleOwner UserRole = "owner"
)

var roleHierarchy = map[UserRole]int{
	RoleFree:        0,
	RolePro:         1,
	RolePatron:      2,
	RoleLifetime:    3,
	RoleAdmin:       4,
	RoleHigherAdmin: 5,
	RoleOwner:       6,
}

// IsAdminTier reports whether role may use admin capabilities.
// Only owner and higher_admin qualify, plain admin does not.
func IsAdminTier(role UserRole) bool {
	switch role {
	case RoleOwner, RoleHigherAdmin:
		return true
	default:
		return false
	}
}

// IsValid checks if the role is one of the predefined valid roles
func (r UserRole) IsValid() bool {
	_, ok := roleHierarchy[r]
	return ok
}

// IsAdminTier is a shorthand for IsAdminTier(r)
func (r UserRole) IsAdminTier() bool {
	return IsAdminTier(r)
}

// IsAssignable reports whether a mutation may set this role on an account.
func (r UserRole) IsAssignable() bool {
	return r.IsValid() && r != RoleOwner
}

// IsAtLeast checks if this role meets the minimum required level
func (r UserRole) IsAtLeast(minRole UserRole) bool {
	currentLevel, exists := roleHierarchy[r]
	if !exists {
		return false
	}

	minLevel, exists := roleHierarchy[minRole]
	if !exists {
		return false
	}

	return currentLevel >= minLevel
}

func (r UserRole) String() string {
	return string(r)
}

// GetAllRoles returns all predefined roles in hierarchical order
func GetAllRoles() []UserRole {
	return []UserRole{
		RoleFree,
		RolePro,
		RolePatron,
		RoleLifetime,
		RoleAdmin,
		RoleHigherAdmin,
		RoleOwner,
	}
}

// AssignableRoles returns every role a promotion may target
func AssignableRoles() []UserRole {
	all := GetAllRoles()
	return all[:len(all)-1]
}

// ParseRole safely parses a string into a UserRole type
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(strings.ToLower(strings.TrimSpace(roleStr)))
	return role, role.IsValid()
}
