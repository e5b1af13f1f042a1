package auth_test

import (
	"context"
	"testing"

	"github.com/cinemalog/auth"
	"github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInterpreter(t *testing.T) (*adminFixture, *auth.CommandInterpreter, *capturingSink) {
	t.Helper()
	f := newAdminFixture(t)
	commands := &capturingSink{}
	ci := auth.NewCommandInterpreter(f.admin,
		auth.WithCommandActivitySink(commands),
		auth.WithCommandLogger(nopLogger{}),
	)
	return f, ci, commands
}

func metadataOf(t *testing.T, err error) map[string]any {
	t.Helper()
	var richErr *errors.Error
	require.True(t, errors.As(err, &richErr), "expected a rich error, got %v", err)
	return richErr.Metadata
}

func TestCommandPromote(t *testing.T) {
	ctx := context.Background()
	f, ci, commands := newInterpreter(t)
	seedAccount(t, f.repo, "alice", auth.RoleFree)

	result, err := ci.Execute(ctx, f.owner, "/promote @alice patron")
	require.NoError(t, err)
	assert.Equal(t, "/promote", result.Command)
	assert.Equal(t, "Promoted @alice to patron", result.Message)
	require.NotNil(t, result.Account)
	assert.Equal(t, auth.RolePatron, result.Account.Role)

	require.Len(t, commands.events, 1)
	assert.Equal(t, auth.ActivityEventAdminCommand, commands.events[0].EventType)
	assert.Equal(t, "/promote", commands.events[0].Metadata["command"])
	assert.Equal(t, result.Account.ID, commands.events[0].AccountID)
}

func TestCommandNamesAreCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	f, ci, _ := newInterpreter(t)
	seedAccount(t, f.repo, "alice", auth.RoleFree)

	result, err := ci.Execute(ctx, f.owner, "  /PrOmOtE   alice   PRO ")
	require.NoError(t, err)
	assert.Equal(t, "/promote", result.Command)
	assert.Equal(t, "Promoted @alice to pro", result.Message)
}

func TestCommandDemote(t *testing.T) {
	ctx := context.Background()
	f, ci, _ := newInterpreter(t)
	seedAccount(t, f.repo, "alice", auth.RoleLifetime)

	result, err := ci.Execute(ctx, f.owner, "/demote @alice")
	require.NoError(t, err)
	assert.Equal(t, "Demoted @alice to free", result.Message)
	assert.Equal(t, auth.RoleFree, result.Account.Role)
}

func TestCommandBanUnban(t *testing.T) {
	ctx := context.Background()
	f, ci, _ := newInterpreter(t)
	seedAccount(t, f.repo, "alice", auth.RoleFree)

	result, err := ci.Execute(ctx, f.owner, "/ban @alice")
	require.NoError(t, err)
	assert.Equal(t, "Banned @alice", result.Message)
	assert.True(t, result.Account.IsBanned)
	assert.Nil(t, result.Account.BanReason)
	assert.Nil(t, result.Account.BanExpiresAt)

	result, err = ci.Execute(ctx, f.owner, "/unban alice")
	require.NoError(t, err)
	assert.Equal(t, "Unbanned @alice", result.Message)
	assert.False(t, result.Account.IsBanned)

	_, err = ci.Execute(ctx, f.owner, "/ban @boss")
	assert.True(t, auth.HasTextCode(err, auth.TextCodeProtectedAccount))

	_, err = ci.Execute(ctx, f.owner, "/ban @ghost")
	assert.True(t, auth.HasTextCode(err, auth.TextCodeAccountNotFound))
}

func TestCommandStats(t *testing.T) {
	f, ci, _ := newInterpreter(t)

	result, err := ci.Execute(context.Background(), f.owner, "/stats")
	require.NoError(t, err)
	assert.Equal(t, "Site statistics", result.Message)
	require.NotNil(t, result.Stats)
	assert.Equal(t, 1, result.Stats.TotalUsers)
	assert.Equal(t, 12, result.Stats.TotalFilms)
	assert.Nil(t, result.Account)
}

func TestCommandBroadcast(t *testing.T) {
	ctx := context.Background()
	f, ci, _ := newInterpreter(t)

	result, err := ci.Execute(ctx, f.owner, "/broadcast  Server   maintenance at noon")
	require.NoError(t, err)
	assert.Equal(t, "Broadcast sent successfully", result.Message)
	require.NotNil(t, result.Announcement)
	assert.Equal(t, auth.DefaultAnnouncementTitle, result.Announcement.Title)
	assert.Equal(t, "Server maintenance at noon", result.Announcement.Content)

	active, err := f.admin.ActiveAnnouncements(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestCommandUsageErrors(t *testing.T) {
	f, ci, commands := newInterpreter(t)

	for _, line := range []string{"/promote", "/promote @alice", "/demote", "/ban", "/unban", "/broadcast", "/broadcast   "} {
		t.Run(line, func(t *testing.T) {
			_, err := ci.Execute(context.Background(), f.owner, line)
			require.Error(t, err)
			assert.True(t, auth.HasTextCode(err, auth.TextCodeInvalidArgument))
			assert.Contains(t, err.Error(), "Usage:")
			assert.Equal(t, auth.AvailableCommands(), metadataOf(t, err)["available_commands"])
		})
	}

	assert.Empty(t, commands.events)
}

func TestCommandUnknown(t *testing.T) {
	f, ci, _ := newInterpreter(t)

	_, err := ci.Execute(context.Background(), f.owner, "/shrug now")
	require.Error(t, err)
	assert.True(t, auth.HasTextCode(err, auth.TextCodeUnknownCommand))
	assert.Equal(t, 400, auth.HTTPStatus(err))

	md := metadataOf(t, err)
	assert.Equal(t, "/shrug", md["command"])
	assert.Equal(t, auth.AvailableCommands(), md["available_commands"])

	_, err = ci.Execute(context.Background(), f.owner, "   ")
	assert.True(t, auth.HasTextCode(err, auth.TextCodeInvalidArgument))
}

func TestCommandRequiresAdminTier(t *testing.T) {
	f, ci, commands := newInterpreter(t)
	alice := seedAccount(t, f.repo, "alice", auth.RoleAdmin)

	_, err := ci.Execute(context.Background(), alice, "/stats")
	assert.True(t, auth.HasTextCode(err, auth.TextCodeForbidden))

	_, err = ci.Execute(context.Background(), nil, "/stats")
	assert.True(t, auth.HasTextCode(err, auth.TextCodeUnauthenticated))

	// unknown commands from non admins still report forbidden
	_, err = ci.Execute(context.Background(), alice, "/shrug")
	assert.True(t, auth.HasTextCode(err, auth.TextCodeForbidden))

	assert.Empty(t, commands.events)
}

func TestCommandInvalidRole(t *testing.T) {
	f, ci, _ := newInterpreter(t)
	seedAccount(t, f.repo, "alice", auth.RoleFree)

	_, err := ci.Execute(context.Background(), f.owner, "/promote @alice owner")
	require.Error(t, err)
	assert.True(t, auth.HasTextCode(err, auth.TextCodeInvalidArgument))
	assert.NotEmpty(t, metadataOf(t, err)["assignable_roles"])
}
