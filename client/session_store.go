package client

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cinemalog/auth/internal/clock"
)

const (
	DefaultPollInterval = 10 * time.Second
	DefaultBanGrace     = 3500 * time.Millisecond
)

// Option customizes a SessionStore
type Option func(*SessionStore)

// WithPollInterval sets how often an authenticated session is reconciled
func WithPollInterval(d time.Duration) Option {
	return func(s *SessionStore) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithBanGrace sets how long a newly banned session stays visible before eviction
func WithBanGrace(d time.Duration) Option {
	return func(s *SessionStore) {
		if d > 0 {
			s.grace = d
		}
	}
}

// WithClock injects the clock driving the timers
func WithClock(c clock.Clock) Option {
	return func(s *SessionStore) {
		if c != nil {
			s.clock = c
		}
	}
}

func WithLogger(logger Logger) Option {
	return func(s *SessionStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// SessionStore is the client side session state machine:
//
//	loading -> anonymous | authenticated
//	authenticated -> authenticated (refreshed) | pending_ban_transition | anonymous
//	pending_ban_transition -> anonymous
//
// At most one timer is live. While authenticated it is the poll timer, while
// pending it is the grace timer. Every transition bumps the generation so a
// timer or request that was in flight across a transition is discarded.
type SessionStore struct {
	transport    Transport
	clock        clock.Clock
	logger       Logger
	pollInterval time.Duration
	grace        time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	state       State
	account     *Account
	ban         *BanNotice
	timer       *clock.Timer
	generation  uint64
	closed      bool
	subscribers map[int]func(Snapshot)
	nextSubID   int
}

// NewSessionStore returns a store in the loading state. Call Start to resolve.
func NewSessionStore(transport Transport, opts ...Option) *SessionStore {
	ctx, cancel := context.WithCancel(context.Background())
	s := &SessionStore{
		transport:    transport,
		clock:        clock.Real(),
		logger:       slog.Default().With("logger", "client.session"),
		pollInterval: DefaultPollInterval,
		grace:        DefaultBanGrace,
		ctx:          ctx,
		cancel:       cancel,
		state:        StateLoading,
		subscribers:  map[int]func(Snapshot){},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	return s
}

// Snapshot returns the current state
func (s *SessionStore) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers fn for every state change. The returned func unsubscribes.
// fn is called without the store lock held and may call back into the store.
func (s *SessionStore) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subscribers, id)
	}
}

// Start issues the initial resolution. Any failure lands in anonymous.
// While a ban is pending the grace timer keeps running and the resolution
// only refreshes the ban notice.
func (s *SessionStore) Start(ctx context.Context) Snapshot {
	s.mu.Lock()
	if s.state == StatePendingBanTransition && !s.closed {
		gen := s.generation
		s.mu.Unlock()
		return s.reobserveBan(ctx, gen)
	}
	s.generation++
	gen := s.generation
	s.stopTimerLocked()
	s.state = StateLoading
	s.mu.Unlock()

	account, err := s.transport.Me(ctx)

	s.mu.Lock()
	if gen != s.generation || s.closed {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap
	}

	switch {
	case err != nil:
		s.logger.Debug("initial session resolution failed", "error", err)
		s.becomeAnonymousLocked()
	case account == nil:
		s.becomeAnonymousLocked()
	case account.IsBanned:
		s.beginBanTransitionLocked(account)
	default:
		s.becomeAuthenticatedLocked(account)
	}

	return s.commit()
}

// Login authenticates with the server. A banned account is reported as
// ErrAccountBanned and the store goes through the ban grace path.
func (s *SessionStore) Login(ctx context.Context, email, password string) (*Account, error) {
	account, err := s.transport.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.adopt(account)
}

// Register creates an account and signs it in, with the same ban check as Login
func (s *SessionStore) Register(ctx context.Context, req RegisterRequest) (*Account, error) {
	account, err := s.transport.Register(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.adopt(account)
}

func (s *SessionStore) adopt(account *Account) (*Account, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return account, nil
	}

	if account.IsBanned && s.state == StatePendingBanTransition {
		s.refreshBanLocked(account)
		s.commit()
		return nil, bannedError(account)
	}

	s.generation++
	s.stopTimerLocked()

	if account.IsBanned {
		s.beginBanTransitionLocked(account)
		s.commit()
		return nil, bannedError(account)
	}

	s.becomeAuthenticatedLocked(account)
	s.commit()
	return account, nil
}

// Logout ends the session. The store is anonymous afterwards whatever the
// server answered. The transport error, if any, is returned for logging.
func (s *SessionStore) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.generation++
	s.stopTimerLocked()
	s.mu.Unlock()

	err := s.transport.Logout(ctx)
	if err != nil {
		s.logger.Warn("logout request failed", "error", err)
	}

	s.mu.Lock()
	if !s.closed {
		s.becomeAnonymousLocked()
	}
	s.commit()

	return err
}

// Refresh runs one reconciliation now. Unlike the background poll it reports
// transport errors, the state is left untouched on error.
func (s *SessionStore) Refresh(ctx context.Context) (Snapshot, error) {
	s.mu.Lock()
	if s.state != StateAuthenticated || s.closed {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, nil
	}
	gen := s.generation
	s.mu.Unlock()

	account, err := s.transport.Me(ctx)
	if err != nil {
		return s.Snapshot(), err
	}

	s.mu.Lock()
	if gen == s.generation && s.state == StateAuthenticated {
		s.reconcileLocked(account)
	}
	return s.commit(), nil
}

// Close stops all timers. The store keeps its last state.
func (s *SessionStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.generation++
	s.stopTimerLocked()
	s.cancel()
}

func (s *SessionStore) poll(gen uint64) {
	s.mu.Lock()
	if gen != s.generation || s.state != StateAuthenticated || s.closed {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(s.ctx, s.pollInterval)
	account, err := s.transport.Me(ctx)
	cancel()

	s.mu.Lock()
	if gen != s.generation || s.state != StateAuthenticated || s.closed {
		s.mu.Unlock()
		return
	}

	if err != nil {
		// polling failures never sign the user out
		s.logger.Debug("session poll failed", "error", err)
		s.schedulePollLocked()
		s.mu.Unlock()
		return
	}

	s.reconcileLocked(account)
	s.commit()
}

func (s *SessionStore) reobserveBan(ctx context.Context, gen uint64) Snapshot {
	account, err := s.transport.Me(ctx)

	s.mu.Lock()
	if gen != s.generation || s.closed || s.state != StatePendingBanTransition {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap
	}

	if err != nil || account == nil || !account.IsBanned {
		// eviction is already scheduled
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap
	}

	s.refreshBanLocked(account)
	return s.commit()
}

func (s *SessionStore) expireGrace(gen uint64) {
	s.mu.Lock()
	if gen != s.generation || s.state != StatePendingBanTransition || s.closed {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(s.ctx, s.pollInterval)
	if err := s.transport.Logout(ctx); err != nil {
		s.logger.Debug("logout after ban failed", "error", err)
	}
	cancel()

	s.mu.Lock()
	if gen != s.generation || s.closed {
		s.mu.Unlock()
		return
	}
	s.generation++
	s.becomeAnonymousLocked()
	s.commit()
}

// reconcileLocked applies a successful resolution while authenticated
func (s *SessionStore) reconcileLocked(account *Account) {
	if account == nil {
		s.schedulePollLocked()
		return
	}

	if account.IsBanned {
		s.generation++
		s.stopTimerLocked()
		s.beginBanTransitionLocked(account)
		return
	}

	s.becomeAuthenticatedLocked(account)
}

func (s *SessionStore) becomeAuthenticatedLocked(account *Account) {
	s.state = StateAuthenticated
	s.account = account
	s.ban = nil
	s.schedulePollLocked()
}

func (s *SessionStore) becomeAnonymousLocked() {
	s.stopTimerLocked()
	s.state = StateAnonymous
	s.account = nil
	s.ban = nil
}

func (s *SessionStore) beginBanTransitionLocked(account *Account) {
	s.logger.Info("account banned, ending session", "username", account.Username)

	s.state = StatePendingBanTransition
	s.account = account
	s.ban = noticeFor(account)

	gen := s.generation
	s.replaceTimerLocked(s.grace, func() { s.expireGrace(gen) })
}

// refreshBanLocked updates the notice of a ban that is already pending
func (s *SessionStore) refreshBanLocked(account *Account) {
	s.account = account
	s.ban = noticeFor(account)
}

func (s *SessionStore) schedulePollLocked() {
	gen := s.generation
	s.replaceTimerLocked(s.pollInterval, func() { s.poll(gen) })
}

// replaceTimerLocked is the only place a timer is created
func (s *SessionStore) replaceTimerLocked(d time.Duration, f func()) {
	s.stopTimerLocked()
	if s.closed {
		return
	}
	s.timer = s.clock.AfterFunc(d, f)
}

func (s *SessionStore) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *SessionStore) snapshotLocked() Snapshot {
	return Snapshot{State: s.state, Account: s.account, Ban: s.ban}
}

// commit releases the lock and notifies subscribers. It must be called with
// s.mu held.
func (s *SessionStore) commit() Snapshot {
	snap := s.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(s.subscribers))
	for i := 0; i < s.nextSubID; i++ {
		if fn, ok := s.subscribers[i]; ok {
			subs = append(subs, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
	return snap
}
