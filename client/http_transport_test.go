package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		if body["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error":     "invalid credentials",
				"text_code": "INVALID_CREDENTIALS",
			})
			return
		}

		http.SetCookie(w, &http.Cookie{Name: "token", Value: "abc", Path: "/"})
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": "Login successful",
			"user":    map[string]any{"id": 7, "username": "alice", "role": "free"},
		})
	})
	mux.HandleFunc("/api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("token"); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{"error": "missing token"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user": map[string]any{"id": 7, "username": "alice", "role": "free", "isBanned": true, "banReason": "spam"},
		})
	})
	mux.HandleFunc("/api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "token", Value: "", Path: "/", MaxAge: -1})
		_ = json.NewEncoder(w).Encode(map[string]any{"message": "Logged out successfully"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPTransportCookieFlow(t *testing.T) {
	srv := newAuthServer(t)

	transport, err := NewHTTPTransport(srv.URL + "/api/")
	require.NoError(t, err)

	ctx := context.Background()

	_, err = transport.Me(ctx)
	require.Error(t, err)

	account, err := transport.Login(ctx, "alice@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "alice", account.Username)

	account, err = transport.Me(ctx)
	require.NoError(t, err)
	assert.True(t, account.IsBanned)
	require.NotNil(t, account.BanReason)
	assert.Equal(t, "spam", *account.BanReason)

	require.NoError(t, transport.Logout(ctx))

	_, err = transport.Me(ctx)
	assert.Error(t, err)
}

func TestHTTPTransportDecodesErrorEnvelope(t *testing.T) {
	srv := newAuthServer(t)

	transport, err := NewHTTPTransport(srv.URL + "/api")
	require.NoError(t, err)

	_, err = transport.Login(context.Background(), "alice@example.com", "nope")
	require.Error(t, err)

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, "INVALID_CREDENTIALS", richErr.TextCode)
	assert.Equal(t, http.StatusUnauthorized, richErr.Code)
	assert.Equal(t, goerrors.CategoryAuth, richErr.Category)
	assert.Equal(t, "invalid credentials", richErr.Message)
}
