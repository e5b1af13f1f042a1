package auth

import (
	"context"
	"strings"
	"time"
)

// AdminService implements the privileged account operations behind the admin
// console. Every method re-checks that actor is admin-or-above.
type AdminService struct {
	repo     RepositoryManager
	bans     BanManager
	logger   Logger
	provider LoggerProvider
	recorder activityRecorder
	now      nowFunc
}

// AdminServiceOption customizes the service
type AdminServiceOption func(*AdminService)

// WithAdminBanManager replaces the ban manager built from the repository
func WithAdminBanManager(bans BanManager) AdminServiceOption {
	return func(s *AdminService) {
		if bans != nil {
			s.bans = bans
		}
	}
}

// WithAdminActivitySink publishes role and announcement events to sink
func WithAdminActivitySink(sink ActivitySink) AdminServiceOption {
	return func(s *AdminService) {
		s.recorder.sink = normalizeActivitySink(sink)
	}
}

// WithAdminClock injects the clock used for announcement visibility
func WithAdminClock(now func() time.Time) AdminServiceOption {
	return func(s *AdminService) {
		if now != nil {
			s.now = now
			s.recorder.now = now
		}
	}
}

func WithAdminLogger(logger Logger) AdminServiceOption {
	return func(s *AdminService) {
		s.provider, s.logger = ResolveLogger("auth.admin", s.provider, logger)
		s.recorder.logger = s.logger
	}
}

func WithAdminLoggerProvider(provider LoggerProvider) AdminServiceOption {
	return func(s *AdminService) {
		s.provider, s.logger = ResolveLogger("auth.admin", provider, nil)
		s.recorder.logger = s.logger
	}
}

// NewAdminService wires the service to the repositories
func NewAdminService(repo RepositoryManager, opts ...AdminServiceOption) *AdminService {
	provider, logger := ResolveLogger("auth.admin", nil, nil)
	s := &AdminService{
		repo:     repo,
		logger:   logger,
		provider: provider,
		recorder: newActivityRecorder(nil, logger, nil),
		now:      time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	if s.bans == nil {
		s.bans = NewBanManager(
			repo.Accounts(),
			WithBanManagerActivitySink(s.recorder.sink),
			WithBanManagerClock(s.now),
			WithBanManagerLogger(s.logger),
		)
	}

	return s
}

// Stats returns aggregate counts for the dashboard
func (s *AdminService) Stats(ctx context.Context, actor *Account) (*SiteStats, error) {
	if err := AdminTier().Authorize(actor); err != nil {
		return nil, err
	}

	stats := &SiteStats{}
	var err error

	if stats.TotalUsers, err = s.repo.Accounts().Count(ctx); err != nil {
		return nil, err
	}
	if stats.TotalFilms, err = s.repo.Catalog().CountFilms(ctx); err != nil {
		return nil, err
	}
	if stats.FilmsLogged, err = s.repo.Catalog().CountFilmsLogged(ctx); err != nil {
		return nil, err
	}
	if stats.ReviewsWritten, err = s.repo.Catalog().CountReviews(ctx); err != nil {
		return nil, err
	}

	return stats, nil
}

// ListAccounts pages through accounts newest first
func (s *AdminService) ListAccounts(ctx context.Context, actor *Account, limit, offset int) ([]*Account, error) {
	if err := AdminTier().Authorize(actor); err != nil {
		return nil, err
	}
	return s.repo.Accounts().List(ctx, limit, offset)
}

// Promote sets the role of username. Checks run in order: the account must
// exist, must not be the owner, and role must be assignable.
func (s *AdminService) Promote(ctx context.Context, actor *Account, username, role string) (*Account, error) {
	if err := AdminTier().Authorize(actor); err != nil {
		return nil, err
	}

	target, err := s.lookupMutable(ctx, username, "promote")
	if err != nil {
		return nil, err
	}

	parsed, ok := ParseRole(role)
	if !ok || !parsed.IsAssignable() {
		return nil, invalidArgument("invalid role", map[string]any{
			"role":             role,
			"assignable_roles": AssignableRoles(),
		})
	}

	return s.changeRole(ctx, actor, target, parsed)
}

// Demote resets username to the lowest tier
func (s *AdminService) Demote(ctx context.Context, actor *Account, username string) (*Account, error) {
	if err := AdminTier().Authorize(actor); err != nil {
		return nil, err
	}

	target, err := s.lookupMutable(ctx, username, "demote")
	if err != nil {
		return nil, err
	}

	return s.changeRole(ctx, actor, target, RoleFree)
}

// Ban suspends username. Without options the ban is permanent and has no reason.
func (s *AdminService) Ban(ctx context.Context, actor *Account, username string, opts ...BanOption) (*Account, error) {
	if err := AdminTier().Authorize(actor); err != nil {
		return nil, err
	}

	target, err := s.repo.Accounts().GetByUsername(ctx, NormalizeUsername(username))
	if err != nil {
		return nil, err
	}

	return s.bans.Ban(ctx, ActorFromAccount(actor), target.ID, opts...)
}

// Unban lifts the suspension on username
func (s *AdminService) Unban(ctx context.Context, actor *Account, username string) (*Account, error) {
	if err := AdminTier().Authorize(actor); err != nil {
		return nil, err
	}

	target, err := s.repo.Accounts().GetByUsername(ctx, NormalizeUsername(username))
	if err != nil {
		return nil, err
	}

	return s.bans.Unban(ctx, ActorFromAccount(actor), target.ID)
}

func (s *AdminService) lookupMutable(ctx context.Context, username, operation string) (*Account, error) {
	target, err := s.repo.Accounts().GetByUsername(ctx, NormalizeUsername(username))
	if err != nil {
		return nil, err
	}

	if target.IsOwner() {
		return nil, withMetadata(ErrProtectedAccount, map[string]any{
			"username":  target.Username,
			"operation": operation,
		})
	}

	return target, nil
}

func (s *AdminService) changeRole(ctx context.Context, actor, target *Account, role UserRole) (*Account, error) {
	updated, err := s.repo.Accounts().UpdateRole(ctx, target.ID, role)
	if err != nil {
		return nil, err
	}

	s.logger.Info("role changed", "account_id", target.ID, "from", target.Role, "to", role)

	s.recorder.record(ctx, ActivityEvent{
		EventType: ActivityEventRoleChanged,
		Actor:     ActorFromAccount(actor),
		AccountID: target.ID,
		From:      string(target.Role),
		To:        string(role),
	})

	return updated, nil
}

// NormalizeUsername strips surrounding space and a leading @
func NormalizeUsername(username string) string {
	return strings.TrimPrefix(strings.TrimSpace(username), "@")
}
