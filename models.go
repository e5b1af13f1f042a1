package auth

import (
	"strconv"
	"time"

	"github.com/uptrace/bun"
)

// Account is the account model
type Account struct {
	bun.BaseModel  `bun:"table:accounts,alias:acc"`
	ID             int64      `bun:"id,pk,autoincrement" json:"id"`
	Email          string     `bun:"email,notnull,unique" json:"email"`
	Username       string     `bun:"username,notnull,unique" json:"username"`
	DisplayName    string     `bun:"display_name" json:"displayName"`
	Bio            string     `bun:"bio" json:"bio"`
	AvatarURL      *string    `bun:"avatar_url" json:"avatarUrl"`
	BannerURL      *string    `bun:"banner_url" json:"bannerUrl"`
	Location       string     `bun:"location" json:"location"`
	PasswordHash   string     `bun:"password_hash,notnull" json:"-"`
	Role           UserRole   `bun:"role,notnull" json:"role"`
	IsBanned       bool       `bun:"is_banned,notnull" json:"isBanned"`
	BanReason      *string    `bun:"ban_reason" json:"banReason"`
	BanExpiresAt   *time.Time `bun:"ban_expires_at" json:"banExpiresAt"`
	LoginAttempts  int        `bun:"login_attempts,notnull" json:"-"`
	LoginAttemptAt *time.Time `bun:"login_attempt_at" json:"-"`
	LoggedInAt     *time.Time `bun:"loggedin_at" json:"-"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt      time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updatedAt"`
}

// IDString returns the account id as it appears in token subjects
func (a *Account) IDString() string {
	if a == nil {
		return ""
	}
	return strconv.FormatInt(a.ID, 10)
}

// IsOwner reports whether the account holds the protected owner role
func (a *Account) IsOwner() bool {
	return a != nil && a.Role == RoleOwner
}

// BanState is the suspension triple persisted on an account.
// The zero value is the unbanned shape.
type BanState struct {
	IsBanned  bool
	Reason    *string
	ExpiresAt *time.Time
}

// BanState returns the current suspension fields
func (a *Account) BanState() BanState {
	return BanState{
		IsBanned:  a.IsBanned,
		Reason:    a.BanReason,
		ExpiresAt: a.BanExpiresAt,
	}
}

func (a *Account) applyBanState(state BanState) {
	a.IsBanned = state.IsBanned
	a.BanReason = state.Reason
	a.BanExpiresAt = state.ExpiresAt
}

// PublicAccount is the view of an account other callers may see
type PublicAccount struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"displayName"`
	Bio         string    `json:"bio"`
	AvatarURL   *string   `json:"avatarUrl"`
	BannerURL   *string   `json:"bannerUrl"`
	Location    string    `json:"location"`
	Role        UserRole  `json:"role"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Public strips private fields from the account
func (a *Account) Public() PublicAccount {
	return PublicAccount{
		ID:          a.ID,
		Username:    a.Username,
		DisplayName: a.DisplayName,
		Bio:         a.Bio,
		AvatarURL:   a.AvatarURL,
		BannerURL:   a.BannerURL,
		Location:    a.Location,
		Role:        a.Role,
		CreatedAt:   a.CreatedAt,
	}
}

// ProfileUpdate holds self-service profile changes. Nil fields are left untouched.
type ProfileUpdate struct {
	DisplayName *string
	Bio         *string
	AvatarURL   *string
	Location    *string
	BannerURL   *string
}

// IsEmpty reports whether the update would change nothing
func (p ProfileUpdate) IsEmpty() bool {
	return p.DisplayName == nil && p.Bio == nil && p.AvatarURL == nil &&
		p.Location == nil && p.BannerURL == nil
}

// Announcement is a site wide message created by the admin console
type Announcement struct {
	bun.BaseModel     `bun:"table:announcements,alias:ann"`
	ID                int64      `bun:"id,pk,autoincrement" json:"id"`
	Title             string     `bun:"title,notnull" json:"title"`
	Content           string     `bun:"content,notnull" json:"content"`
	CreatedBy         int64      `bun:"created_by,notnull" json:"createdBy"`
	Creator           *Account   `bun:"rel:belongs-to,join:created_by=id" json:"-"`
	CreatedByUsername string     `bun:"-" json:"createdByUsername,omitempty"`
	IsActive          bool       `bun:"is_active,notnull" json:"isActive"`
	ExpiresAt         *time.Time `bun:"expires_at" json:"expiresAt"`
	CreatedAt         time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`
}

// IsVisible reports whether the announcement is active and unexpired at now
func (a *Announcement) IsVisible(now time.Time) bool {
	if a == nil || !a.IsActive {
		return false
	}
	return a.ExpiresAt == nil || a.ExpiresAt.After(now)
}

// SiteStats are aggregate counts shown in the admin console
type SiteStats struct {
	TotalUsers     int `json:"totalUsers"`
	TotalFilms     int `json:"totalFilms"`
	FilmsLogged    int `json:"filmsLogged"`
	ReviewsWritten int `json:"reviewsWritten"`
}
