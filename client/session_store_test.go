package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cinemalog/auth/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockTransport struct {
	mock.Mock
}

func (m *mockTransport) Me(ctx context.Context) (*Account, error) {
	args := m.Called(ctx)
	account, _ := args.Get(0).(*Account)
	return account, args.Error(1)
}

func (m *mockTransport) Login(ctx context.Context, email, password string) (*Account, error) {
	args := m.Called(ctx, email, password)
	account, _ := args.Get(0).(*Account)
	return account, args.Error(1)
}

func (m *mockTransport) Register(ctx context.Context, req RegisterRequest) (*Account, error) {
	args := m.Called(ctx, req)
	account, _ := args.Get(0).(*Account)
	return account, args.Error(1)
}

func (m *mockTransport) Logout(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func alice() *Account {
	return &Account{ID: 7, Username: "alice", Email: "alice@example.com", Role: "free"}
}

func bannedAlice(reason string) *Account {
	a := alice()
	a.IsBanned = true
	a.BanReason = &reason
	return a
}

func newTestStore(t *testing.T) (*SessionStore, *mockTransport, *clock.FakeClock) {
	t.Helper()
	transport := &mockTransport{}
	fake := clock.Fake(epoch)
	store := NewSessionStore(transport, WithClock(fake), WithLogger(nopLogger{}))
	t.Cleanup(store.Close)
	return store, transport, fake
}

func TestStartWithoutSessionIsAnonymous(t *testing.T) {
	store, transport, fake := newTestStore(t)
	transport.On("Me", mock.Anything).Return(nil, errors.New("401")).Once()

	assert.Equal(t, StateLoading, store.Snapshot().State)

	snap := store.Start(context.Background())

	assert.Equal(t, StateAnonymous, snap.State)
	assert.Nil(t, snap.Account)
	assert.Equal(t, 0, fake.PendingCount(), "anonymous sessions are not polled")
	transport.AssertExpectations(t)
}

func TestStartAuthenticatedPollsOnInterval(t *testing.T) {
	store, transport, fake := newTestStore(t)
	transport.On("Me", mock.Anything).Return(alice(), nil)

	snap := store.Start(context.Background())
	require.Equal(t, StateAuthenticated, snap.State)
	assert.Equal(t, "alice", snap.Account.Username)
	assert.Equal(t, 1, fake.PendingCount())

	fake.Advance(9 * time.Second)
	transport.AssertNumberOfCalls(t, "Me", 1)

	fake.Advance(time.Second)
	transport.AssertNumberOfCalls(t, "Me", 2)

	for i := 0; i < 3; i++ {
		fake.Advance(DefaultPollInterval)
	}
	transport.AssertNumberOfCalls(t, "Me", 5)
	assert.Equal(t, 1, fake.PendingCount(), "exactly one reconciliation timer is live")
}

func TestPollRefreshesAccount(t *testing.T) {
	store, transport, fake := newTestStore(t)

	promoted := alice()
	promoted.Role = "patron"

	transport.On("Me", mock.Anything).Return(alice(), nil).Once()
	transport.On("Me", mock.Anything).Return(promoted, nil)

	store.Start(context.Background())
	fake.Advance(DefaultPollInterval)

	snap := store.Snapshot()
	assert.Equal(t, StateAuthenticated, snap.State)
	assert.Equal(t, "patron", snap.Account.Role)
}

func TestPollErrorsAreSwallowed(t *testing.T) {
	store, transport, fake := newTestStore(t)

	transport.On("Me", mock.Anything).Return(alice(), nil).Once()
	transport.On("Me", mock.Anything).Return(nil, errors.New("network down")).Twice()
	transport.On("Me", mock.Anything).Return(alice(), nil)

	store.Start(context.Background())

	fake.Advance(DefaultPollInterval)
	assert.Equal(t, StateAuthenticated, store.Snapshot().State)
	assert.Equal(t, 1, fake.PendingCount(), "a failed poll is retried on the next tick")

	fake.Advance(DefaultPollInterval)
	fake.Advance(DefaultPollInterval)

	assert.Equal(t, StateAuthenticated, store.Snapshot().State)
	transport.AssertNumberOfCalls(t, "Me", 4)
}

func TestBanObservedStartsGracePeriod(t *testing.T) {
	store, transport, fake := newTestStore(t)

	transport.On("Me", mock.Anything).Return(alice(), nil).Once()
	transport.On("Me", mock.Anything).Return(bannedAlice("spam"), nil).Once()
	transport.On("Logout", mock.Anything).Return(nil).Once()

	var states []State
	store.Subscribe(func(s Snapshot) { states = append(states, s.State) })

	store.Start(context.Background())
	fake.Advance(DefaultPollInterval)

	snap := store.Snapshot()
	require.Equal(t, StatePendingBanTransition, snap.State)
	require.NotNil(t, snap.Ban)
	assert.Equal(t, "spam", *snap.Ban.Reason)
	assert.Equal(t, 1, fake.PendingCount(), "poll timer replaced by the grace timer")

	fake.Advance(3400 * time.Millisecond)
	assert.Equal(t, StatePendingBanTransition, store.Snapshot().State)
	transport.AssertNotCalled(t, "Logout", mock.Anything)

	fake.Advance(100 * time.Millisecond)

	snap = store.Snapshot()
	assert.Equal(t, StateAnonymous, snap.State)
	assert.Nil(t, snap.Account)
	assert.Nil(t, snap.Ban)
	assert.Equal(t, 0, fake.PendingCount())

	fake.Advance(time.Minute)
	transport.AssertNumberOfCalls(t, "Me", 2)
	transport.AssertExpectations(t)

	assert.Equal(t, []State{StateAuthenticated, StatePendingBanTransition, StateAnonymous}, states)
}

func TestGraceLogoutFailureStillEvicts(t *testing.T) {
	store, transport, fake := newTestStore(t)

	transport.On("Me", mock.Anything).Return(alice(), nil).Once()
	transport.On("Me", mock.Anything).Return(bannedAlice("abuse"), nil).Once()
	transport.On("Logout", mock.Anything).Return(errors.New("offline")).Once()

	store.Start(context.Background())
	fake.Advance(DefaultPollInterval)
	fake.Advance(DefaultBanGrace)

	assert.Equal(t, StateAnonymous, store.Snapshot().State)
	transport.AssertExpectations(t)
}

func TestStartWithBannedAccountEvicts(t *testing.T) {
	store, transport, fake := newTestStore(t)

	transport.On("Me", mock.Anything).Return(bannedAlice("spam"), nil).Once()
	transport.On("Logout", mock.Anything).Return(nil).Once()

	snap := store.Start(context.Background())
	assert.Equal(t, StatePendingBanTransition, snap.State)

	fake.Advance(DefaultBanGrace)
	assert.Equal(t, StateAnonymous, store.Snapshot().State)
}

func TestLoginWithBannedAccountIsAnError(t *testing.T) {
	store, transport, fake := newTestStore(t)

	transport.On("Me", mock.Anything).Return(nil, errors.New("401")).Once()
	transport.On("Login", mock.Anything, "alice@example.com", "secret").
		Return(bannedAlice("spam"), nil).Once()
	transport.On("Logout", mock.Anything).Return(nil).Once()

	store.Start(context.Background())

	account, err := store.Login(context.Background(), "alice@example.com", "secret")
	require.Error(t, err)
	assert.Nil(t, account)
	assert.True(t, IsBanned(err))
	assert.NotEqual(t, StateAuthenticated, store.Snapshot().State)

	fake.Advance(DefaultBanGrace)
	assert.Equal(t, StateAnonymous, store.Snapshot().State)
	transport.AssertExpectations(t)
}

func TestRegisterWithBannedAccountIsAnError(t *testing.T) {
	store, transport, _ := newTestStore(t)

	req := RegisterRequest{Email: "alice@example.com", Username: "alice", Password: "secret"}
	transport.On("Register", mock.Anything, req).Return(bannedAlice("dup"), nil).Once()

	_, err := store.Register(context.Background(), req)
	assert.True(t, IsBanned(err))
}

func TestLoginFailureKeepsState(t *testing.T) {
	store, transport, _ := newTestStore(t)

	transport.On("Me", mock.Anything).Return(nil, errors.New("401")).Once()
	transport.On("Login", mock.Anything, "alice@example.com", "wrong").
		Return(nil, errors.New("invalid credentials")).Once()

	store.Start(context.Background())

	_, err := store.Login(context.Background(), "alice@example.com", "wrong")
	assert.Error(t, err)
	assert.Equal(t, StateAnonymous, store.Snapshot().State)
}

func TestRepeatedLoginDoesNotLeakTimers(t *testing.T) {
	store, transport, fake := newTestStore(t)

	transport.On("Login", mock.Anything, "alice@example.com", "secret").Return(alice(), nil)
	transport.On("Me", mock.Anything).Return(alice(), nil)

	for i := 0; i < 3; i++ {
		account, err := store.Login(context.Background(), "alice@example.com", "secret")
		require.NoError(t, err)
		assert.Equal(t, "alice", account.Username)
		assert.Equal(t, 1, fake.PendingCount())
	}

	fake.Advance(DefaultPollInterval)
	transport.AssertNumberOfCalls(t, "Me", 1)
}

func TestLogoutIsAnonymousRegardlessOfOutcome(t *testing.T) {
	store, transport, fake := newTestStore(t)

	transport.On("Me", mock.Anything).Return(alice(), nil).Once()
	transport.On("Logout", mock.Anything).Return(errors.New("500")).Once()

	store.Start(context.Background())

	err := store.Logout(context.Background())
	assert.Error(t, err)
	assert.Equal(t, StateAnonymous, store.Snapshot().State)
	assert.Equal(t, 0, fake.PendingCount())

	fake.Advance(time.Minute)
	transport.AssertNumberOfCalls(t, "Me", 1)
}

func TestLogoutDuringGraceCancelsGraceTimer(t *testing.T) {
	store, transport, fake := newTestStore(t)

	transport.On("Me", mock.Anything).Return(bannedAlice("spam"), nil).Once()
	transport.On("Logout", mock.Anything).Return(nil).Once()

	store.Start(context.Background())
	require.NoError(t, store.Logout(context.Background()))

	fake.Advance(DefaultBanGrace)
	transport.AssertNumberOfCalls(t, "Logout", 1)
	assert.Equal(t, StateAnonymous, store.Snapshot().State)
}

func TestRefreshReportsErrors(t *testing.T) {
	store, transport, _ := newTestStore(t)

	transport.On("Me", mock.Anything).Return(alice(), nil).Once()
	transport.On("Me", mock.Anything).Return(nil, errors.New("timeout")).Once()
	transport.On("Me", mock.Anything).Return(bannedAlice("spam"), nil).Once()

	store.Start(context.Background())

	snap, err := store.Refresh(context.Background())
	assert.Error(t, err)
	assert.Equal(t, StateAuthenticated, snap.State)

	snap, err = store.Refresh(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, StatePendingBanTransition, snap.State)
}

func TestCloseStopsTimers(t *testing.T) {
	store, transport, fake := newTestStore(t)
	transport.On("Me", mock.Anything).Return(alice(), nil)

	store.Start(context.Background())
	store.Close()

	assert.Equal(t, 0, fake.PendingCount())
	fake.Advance(time.Minute)
	transport.AssertNumberOfCalls(t, "Me", 1)
}

func TestUnsubscribe(t *testing.T) {
	store, transport, _ := newTestStore(t)
	transport.On("Me", mock.Anything).Return(nil, errors.New("401"))

	calls := 0
	unsubscribe := store.Subscribe(func(Snapshot) { calls++ })

	store.Start(context.Background())
	unsubscribe()
	store.Start(context.Background())

	assert.Equal(t, 1, calls)
}

func TestBanObservationSequences(t *testing.T) {
	tests := []struct {
		name         string
		observations []*Account
		states       []State
	}{
		{
			name:         "ban seen on the third observation",
			observations: []*Account{alice(), alice(), bannedAlice("spam")},
			states:       []State{StateAuthenticated, StateAuthenticated, StatePendingBanTransition},
		},
		{
			name:         "ban seen twice",
			observations: []*Account{bannedAlice("spam"), bannedAlice("spam")},
			states:       []State{StatePendingBanTransition, StatePendingBanTransition},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, transport, fake := newTestStore(t)
			for _, account := range tt.observations {
				transport.On("Me", mock.Anything).Return(account, nil).Once()
			}

			entered := 0
			last := store.Snapshot().State
			store.Subscribe(func(s Snapshot) {
				if s.State == StatePendingBanTransition && last != StatePendingBanTransition {
					entered++
				}
				last = s.State
			})

			for i, want := range tt.states {
				switch {
				case i == 0:
					store.Start(context.Background())
				case store.Snapshot().State == StateAuthenticated:
					fake.Advance(DefaultPollInterval)
				default:
					store.Start(context.Background())
				}

				assert.Equal(t, want, store.Snapshot().State, "after observation %d", i+1)
				assert.Equal(t, 1, fake.PendingCount(), "after observation %d", i+1)
			}

			assert.Equal(t, 1, entered)
			transport.AssertNumberOfCalls(t, "Me", len(tt.observations))
		})
	}
}

func TestStartDuringGraceKeepsDeadline(t *testing.T) {
	store, transport, fake := newTestStore(t)

	transport.On("Me", mock.Anything).Return(bannedAlice("spam"), nil).Once()
	transport.On("Me", mock.Anything).Return(bannedAlice("spoilers"), nil).Once()
	transport.On("Logout", mock.Anything).Return(nil).Once()

	store.Start(context.Background())
	fake.Advance(2 * time.Second)

	snap := store.Start(context.Background())
	require.Equal(t, StatePendingBanTransition, snap.State)
	require.NotNil(t, snap.Ban)
	assert.Equal(t, "spoilers", *snap.Ban.Reason)

	fake.Advance(DefaultBanGrace - 2*time.Second)
	assert.Equal(t, StateAnonymous, store.Snapshot().State)
	transport.AssertExpectations(t)
}

func TestBannedLoginDuringGraceKeepsDeadline(t *testing.T) {
	store, transport, fake := newTestStore(t)

	transport.On("Me", mock.Anything).Return(bannedAlice("spam"), nil).Once()
	transport.On("Login", mock.Anything, "alice@example.com", "secret").
		Return(bannedAlice("spam"), nil).Once()
	transport.On("Logout", mock.Anything).Return(nil).Once()

	store.Start(context.Background())
	fake.Advance(3 * time.Second)

	_, err := store.Login(context.Background(), "alice@example.com", "secret")
	assert.True(t, IsBanned(err))
	assert.Equal(t, 1, fake.PendingCount())

	fake.Advance(500 * time.Millisecond)
	assert.Equal(t, StateAnonymous, store.Snapshot().State)
	transport.AssertExpectations(t)
}
