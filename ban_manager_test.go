package auth_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cinemalog/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBanFixture(t *testing.T) (auth.RepositoryManager, auth.BanManager, *capturingSink) {
	t.Helper()
	repo := newTestRepo(t)
	sink := &capturingSink{}
	bans := auth.NewBanManager(repo.Accounts(),
		auth.WithBanManagerActivitySink(sink),
		auth.WithBanManagerClock(func() time.Time { return testNow }),
		auth.WithBanManagerLogger(nopLogger{}),
	)
	return repo, bans, sink
}

func TestBanWithReasonAndExpiry(t *testing.T) {
	ctx := context.Background()
	repo, bans, sink := newBanFixture(t)

	boss := seedAccount(t, repo, "boss", auth.RoleOwner)
	alice := seedAccount(t, repo, "alice", auth.RolePro)
	until := testNow.Add(72 * time.Hour)

	updated, err := bans.Ban(ctx, auth.ActorFromAccount(boss), alice.ID,
		auth.WithBanReason("spam"),
		auth.WithBanExpiry(until),
	)
	require.NoError(t, err)
	assert.True(t, updated.IsBanned)
	require.NotNil(t, updated.BanReason)
	assert.Equal(t, "spam", *updated.BanReason)
	require.NotNil(t, updated.BanExpiresAt)
	assert.True(t, until.Equal(*updated.BanExpiresAt))
	assert.Equal(t, auth.RolePro, updated.Role, "bans leave the role untouched")

	stored, err := repo.Accounts().GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsBanned)

	require.Len(t, sink.events, 1)
	evt := sink.events[0]
	assert.Equal(t, auth.ActivityEventAccountBanned, evt.EventType)
	assert.Equal(t, boss.IDString(), evt.Actor.ID)
	assert.Equal(t, alice.ID, evt.AccountID)
	assert.Equal(t, "active", evt.From)
	assert.Equal(t, "banned", evt.To)
	assert.Equal(t, "spam", evt.Metadata["reason"])
	assert.Equal(t, testNow, evt.OccurredAt)
}

func TestBanPermanentByDefault(t *testing.T) {
	ctx := context.Background()
	repo, bans, _ := newBanFixture(t)

	alice := seedAccount(t, repo, "alice", auth.RoleFree)

	updated, err := bans.Ban(ctx, auth.ActorRef{Type: auth.ActorTypeSystem}, alice.ID)
	require.NoError(t, err)
	assert.True(t, updated.IsBanned)
	assert.Nil(t, updated.BanReason)
	assert.Nil(t, updated.BanExpiresAt)
}

func TestRebanOverwritesDetails(t *testing.T) {
	ctx := context.Background()
	repo, bans, _ := newBanFixture(t)

	alice := seedAccount(t, repo, "alice", auth.RoleFree)
	actor := auth.ActorRef{Type: auth.ActorTypeSystem}

	_, err := bans.Ban(ctx, actor, alice.ID, auth.WithBanReason("first"), auth.WithBanExpiry(testNow.Add(time.Hour)))
	require.NoError(t, err)

	updated, err := bans.Ban(ctx, actor, alice.ID, auth.WithBanReason("second"))
	require.NoError(t, err)
	require.NotNil(t, updated.BanReason)
	assert.Equal(t, "second", *updated.BanReason)
	assert.Nil(t, updated.BanExpiresAt)
}

func TestBanOwnerIsForbidden(t *testing.T) {
	ctx := context.Background()
	repo, bans, sink := newBanFixture(t)

	boss := seedAccount(t, repo, "boss", auth.RoleOwner)

	_, err := bans.Ban(ctx, auth.ActorFromAccount(boss), boss.ID)
	require.Error(t, err)
	assert.True(t, auth.HasTextCode(err, auth.TextCodeProtectedAccount))
	assert.Equal(t, 403, auth.HTTPStatus(err))
	assert.Empty(t, sink.events)

	stored, err := repo.Accounts().GetByID(ctx, boss.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsBanned)
}

func TestBanMissingAccount(t *testing.T) {
	_, bans, _ := newBanFixture(t)

	_, err := bans.Ban(context.Background(), auth.ActorRef{}, 404)
	assert.True(t, auth.HasTextCode(err, auth.TextCodeAccountNotFound))

	_, err = bans.Unban(context.Background(), auth.ActorRef{}, 404)
	assert.True(t, auth.HasTextCode(err, auth.TextCodeAccountNotFound))
}

func TestUnbanClearsEverything(t *testing.T) {
	ctx := context.Background()
	repo, bans, sink := newBanFixture(t)

	alice := seedAccount(t, repo, "alice", auth.RoleFree)
	actor := auth.ActorRef{Type: auth.ActorTypeSystem}

	_, err := bans.Ban(ctx, actor, alice.ID, auth.WithBanReason("spam"), auth.WithBanExpiry(testNow.Add(time.Hour)))
	require.NoError(t, err)

	updated, err := bans.Unban(ctx, actor, alice.ID)
	require.NoError(t, err)
	assert.False(t, updated.IsBanned)
	assert.Nil(t, updated.BanReason)
	assert.Nil(t, updated.BanExpiresAt)

	// unbanning an active account is not an error
	_, err = bans.Unban(ctx, actor, alice.ID)
	require.NoError(t, err)

	assert.Equal(t, []auth.ActivityEventType{
		auth.ActivityEventAccountBanned,
		auth.ActivityEventAccountUnbanned,
		auth.ActivityEventAccountUnbanned,
	}, sink.types())
	assert.Equal(t, "banned", sink.events[1].From)
	assert.Equal(t, "active", sink.events[2].From)
}

func TestExpiredBanStillApplies(t *testing.T) {
	ctx := context.Background()
	repo, bans, _ := newBanFixture(t)

	alice := seedAccount(t, repo, "alice", auth.RoleFree)
	_, err := bans.Ban(ctx, auth.ActorRef{}, alice.ID, auth.WithBanExpiry(testNow.Add(-time.Hour)))
	require.NoError(t, err)

	stored, err := repo.Accounts().GetByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsBanned, "nothing lifts a ban once its expiry passes")
}

func TestBanHooks(t *testing.T) {
	ctx := context.Background()
	repo, bans, sink := newBanFixture(t)
	alice := seedAccount(t, repo, "alice", auth.RoleFree)

	t.Run("before hook aborts", func(t *testing.T) {
		_, err := bans.Ban(ctx, auth.ActorRef{}, alice.ID, auth.WithBeforeBanHook(func(context.Context, auth.BanContext) error {
			return fmt.Errorf("nope")
		}))
		require.Error(t, err)

		stored, err := repo.Accounts().GetByID(ctx, alice.ID)
		require.NoError(t, err)
		assert.False(t, stored.IsBanned)
		assert.Empty(t, sink.events)
	})

	t.Run("hooks see transition", func(t *testing.T) {
		var before, after auth.BanContext
		_, err := bans.Ban(ctx, auth.ActorRef{}, alice.ID,
			auth.WithBanMetadata(map[string]any{"source": "test"}),
			auth.WithBeforeBanHook(func(_ context.Context, bc auth.BanContext) error {
				before = bc
				return nil
			}),
			auth.WithAfterBanHook(func(_ context.Context, bc auth.BanContext) error {
				after = bc
				return fmt.Errorf("after hooks only log")
			}),
		)
		require.NoError(t, err)

		assert.False(t, before.From.IsBanned)
		assert.True(t, before.To.IsBanned)
		assert.False(t, before.Account.IsBanned)
		assert.True(t, after.Account.IsBanned)

		require.NotEmpty(t, sink.events)
		assert.Equal(t, "test", sink.events[len(sink.events)-1].Metadata["source"])
	})
}
