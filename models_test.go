package auth

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestAccountJSONHidesSecrets(t *testing.T) {
	attempt := time.Now()
	account := &Account{
		ID:             1,
		Email:          "alice@example.com",
		Username:       "alice",
		PasswordHash:   "$2a$04$secret",
		LoginAttempts:  3,
		LoginAttemptAt: &attempt,
	}

	raw, err := json.Marshal(account)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	body := string(raw)
	for _, secret := range []string{"secret", "passwordHash", "loginAttempts"} {
		if strings.Contains(body, secret) {
			t.Fatalf("expected %q to be hidden, got %s", secret, body)
		}
	}
	for _, field := range []string{`"isBanned":false`, `"banReason":null`, `"banExpiresAt":null`, `"displayName"`} {
		if !strings.Contains(body, field) {
			t.Fatalf("expected %s in %s", field, body)
		}
	}
}

func TestAccountBanState(t *testing.T) {
	reason := "spam"
	until := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	account := &Account{}
	if account.BanState() != (BanState{}) {
		t.Fatalf("expected zero ban state for a new account")
	}

	account.applyBanState(BanState{IsBanned: true, Reason: &reason, ExpiresAt: &until})
	state := account.BanState()
	if !state.IsBanned || *state.Reason != "spam" || !state.ExpiresAt.Equal(until) {
		t.Fatalf("unexpected ban state %+v", state)
	}

	account.applyBanState(BanState{})
	if account.IsBanned || account.BanReason != nil || account.BanExpiresAt != nil {
		t.Fatalf("expected ban fields to be cleared, got %+v", account.BanState())
	}
}

func TestAccountHelpers(t *testing.T) {
	var nilAccount *Account
	if nilAccount.IDString() != "" || nilAccount.IsOwner() {
		t.Fatalf("nil account helpers should be zero valued")
	}

	account := &Account{ID: 42, Role: RoleOwner}
	if account.IDString() != "42" {
		t.Fatalf("expected id string 42, got %q", account.IDString())
	}
	if !account.IsOwner() {
		t.Fatalf("expected owner")
	}
}

func TestAccountPublic(t *testing.T) {
	account := &Account{ID: 1, Email: "alice@example.com", Username: "alice", IsBanned: true, Role: RolePro}

	raw, err := json.Marshal(account.Public())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(raw), "email") || strings.Contains(string(raw), "isBanned") {
		t.Fatalf("public view leaks private fields: %s", raw)
	}
}

func TestProfileUpdateIsEmpty(t *testing.T) {
	if !(ProfileUpdate{}).IsEmpty() {
		t.Fatalf("expected empty update")
	}
	bio := ""
	if (ProfileUpdate{Bio: &bio}).IsEmpty() {
		t.Fatalf("an explicit empty bio is still a change")
	}
}

func TestAnnouncementIsVisible(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	cases := []struct {
		name string
		ann  *Announcement
		want bool
	}{
		{"nil", nil, false},
		{"inactive", &Announcement{IsActive: false}, false},
		{"no expiry", &Announcement{IsActive: true}, true},
		{"expired", &Announcement{IsActive: true, ExpiresAt: &past}, false},
		{"expires exactly now", &Announcement{IsActive: true, ExpiresAt: &now}, false},
		{"future expiry", &Announcement{IsActive: true, ExpiresAt: &future}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.ann.IsVisible(now); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestRoles(t *testing.T) {
	for _, role := range GetAllRoles() {
		if !role.IsValid() {
			t.Fatalf("expected %q to be valid", role)
		}
	}

	if RoleOwner.IsAssignable() {
		t.Fatalf("owner must not be assignable")
	}
	for _, role := range AssignableRoles() {
		if role == RoleOwner {
			t.Fatalf("assignable roles include owner")
		}
	}

	if RoleAdmin.IsAdminTier() || !RoleHigherAdmin.IsAdminTier() || !RoleOwner.IsAdminTier() {
		t.Fatalf("admin tier is owner and higher_admin only")
	}

	if !RoleLifetime.IsAtLeast(RolePatron) || RolePro.IsAtLeast(RolePatron) {
		t.Fatalf("unexpected hierarchy ordering")
	}

	if role, ok := ParseRole(" Higher_Admin "); !ok || role != RoleHigherAdmin {
		t.Fatalf("expected higher_admin, got %q %v", role, ok)
	}
	if _, ok := ParseRole("emperor"); ok {
		t.Fatalf("unknown roles must not parse")
	}
}
