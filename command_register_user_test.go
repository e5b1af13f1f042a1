package auth_test

import (
	"context"
	"testing"

	"github.com/cinemalog/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAccountMessageValidate(t *testing.T) {
	valid := auth.RegisterAccountMessage{Email: "alice@example.com", Username: "alice", Password: "secret1"}
	require.NoError(t, valid.Validate())

	tests := map[string]func(*auth.RegisterAccountMessage){
		"missing email":  func(m *auth.RegisterAccountMessage) { m.Email = "" },
		"bad email":      func(m *auth.RegisterAccountMessage) { m.Email = "alice" },
		"short username": func(m *auth.RegisterAccountMessage) { m.Username = "al" },
		"long username":  func(m *auth.RegisterAccountMessage) { m.Username = "abcdefghijklmnopqrstuvwxyz012345" },
		"short password": func(m *auth.RegisterAccountMessage) { m.Password = "12345" },
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			msg := valid
			mutate(&msg)
			assert.Error(t, msg.Validate())
		})
	}
}

func TestRegisterAccount(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	handler := auth.NewRegisterAccountHandler(repo, " Owner@Example.com ")

	account, err := handler.Execute(ctx, auth.RegisterAccountMessage{
		Email:    "Alice@Example.com",
		Username: "alice",
		Password: "secret1",
	})
	require.NoError(t, err)
	assert.NotZero(t, account.ID)
	assert.Equal(t, "alice@example.com", account.Email)
	assert.Equal(t, auth.RoleFree, account.Role)
	assert.Equal(t, "alice", account.DisplayName)
	assert.False(t, account.IsBanned)
	require.NoError(t, auth.ComparePasswordAndHash("secret1", account.PasswordHash))

	owner, err := handler.Execute(ctx, auth.RegisterAccountMessage{
		Email:       "OWNER@example.com",
		Username:    "boss",
		Password:    "secret1",
		DisplayName: "The Boss",
	})
	require.NoError(t, err)
	assert.Equal(t, auth.RoleOwner, owner.Role)
	assert.Equal(t, "The Boss", owner.DisplayName)
}

func TestRegisterAccountWithoutOwnerEmail(t *testing.T) {
	repo := newTestRepo(t)
	handler := auth.NewRegisterAccountHandler(repo, "")

	account, err := handler.Execute(context.Background(), auth.RegisterAccountMessage{
		Email: "owner@example.com", Username: "boss", Password: "secret1",
	})
	require.NoError(t, err)
	assert.Equal(t, auth.RoleFree, account.Role)
}

func TestRegisterAccountDuplicates(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	handler := auth.NewRegisterAccountHandler(repo, "")

	_, err := handler.Execute(ctx, auth.RegisterAccountMessage{Email: "alice@example.com", Username: "alice", Password: "secret1"})
	require.NoError(t, err)

	_, err = handler.Execute(ctx, auth.RegisterAccountMessage{Email: "ALICE@example.com", Username: "alice2", Password: "secret1"})
	assert.True(t, auth.HasTextCode(err, auth.TextCodeEmailTaken))
	assert.Equal(t, 409, auth.HTTPStatus(err))

	_, err = handler.Execute(ctx, auth.RegisterAccountMessage{Email: "other@example.com", Username: "alice", Password: "secret1"})
	assert.True(t, auth.HasTextCode(err, auth.TextCodeUsernameTaken))

	n, err := repo.Accounts().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRegisterAccountInvalid(t *testing.T) {
	repo := newTestRepo(t)
	handler := auth.NewRegisterAccountHandler(repo, "")

	_, err := handler.Execute(context.Background(), auth.RegisterAccountMessage{Email: "nope", Username: "a", Password: "1"})
	require.Error(t, err)
	assert.Equal(t, 400, auth.HTTPStatus(err))
}

func TestRegisterAccountCancelled(t *testing.T) {
	repo := newTestRepo(t)
	handler := auth.NewRegisterAccountHandler(repo, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := handler.Execute(ctx, auth.RegisterAccountMessage{Email: "alice@example.com", Username: "alice", Password: "secret1"})
	assert.Error(t, err)
}
