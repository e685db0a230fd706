package oauth_test

import (
	"context"
	"testing"

	oauth "github.com/mmgonzalezc/oauth-service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, dir oauth.Directory) *oauth.Server {
	t.Helper()

	server, err := oauth.NewServer(newTestConfig(), dir)
	require.NoError(t, err)
	return server
}

func passwordRequest(username, password string) oauth.GrantRequest {
	return oauth.GrantRequest{
		GrantType:    oauth.GrantTypePassword,
		ClientID:     "web-client",
		ClientSecret: "client-secret",
		Username:     username,
		Password:     password,
	}
}

func TestServerPasswordGrant(t *testing.T) {
	ctx := context.Background()

	t.Run("first-try login issues a token without touching the counter", func(t *testing.T) {
		dir := newFakeDirectory(&oauth.User{
			ID:        2,
			Username:  "bob",
			Password:  mustHash("bobs-password"),
			FirstName: "Bob",
			Email:     "bob@example.com",
			Enabled:   true,
		})
		server := newTestServer(t, dir)

		resp, err := server.Token(ctx, passwordRequest("bob", "bobs-password"))
		require.NoError(t, err)

		assert.NotEmpty(t, resp.AccessToken)
		assert.NotEmpty(t, resp.RefreshToken)
		assert.Equal(t, oauth.TokenTypeBearer, resp.TokenType)
		assert.Equal(t, "read write", resp.Scope)
		assert.InDelta(t, 3600, resp.ExpiresIn, 5)
		assert.Equal(t, "bob@example.com", resp.Extra["email"])

		// Attempts never failed, so no update round-trip happened.
		assert.Zero(t, dir.updateCount())

		claims, err := server.CheckToken(resp.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, true, claims["active"])
		assert.Equal(t, "bob", claims["sub"])
		assert.Equal(t, "Bob", claims["first_name"])
	})

	t.Run("success resets a warned counter", func(t *testing.T) {
		dir := newFakeDirectory(&oauth.User{
			ID:       3,
			Username: "carol",
			Password: mustHash("carols-password"),
			Enabled:  true,
			Attempts: intPtr(2),
		})
		server := newTestServer(t, dir)

		_, err := server.Token(ctx, passwordRequest("carol", "carols-password"))
		require.NoError(t, err)

		assert.Equal(t, 0, dir.stored("carol").FailedAttempts())
	})

	t.Run("third wrong password locks the account", func(t *testing.T) {
		dir := newFakeDirectory(&oauth.User{
			ID:       1,
			Username: "alice",
			Password: mustHash("alices-password"),
			Enabled:  true,
			Attempts: intPtr(2),
		})
		server := newTestServer(t, dir)

		_, err := server.Token(ctx, passwordRequest("alice", "wrong-password"))
		assert.ErrorIs(t, err, oauth.ErrInvalidGrant)

		stored := dir.stored("alice")
		assert.Equal(t, 3, stored.FailedAttempts())
		assert.False(t, stored.Enabled)

		// Correct credentials no longer help once the account is locked,
		// and the caller cannot tell the lock from a bad password.
		_, err = server.Token(ctx, passwordRequest("alice", "alices-password"))
		assert.ErrorIs(t, err, oauth.ErrInvalidGrant)
		assert.NotErrorIs(t, err, oauth.ErrInvalidClient)
	})

	t.Run("unknown username is indistinguishable on the wire", func(t *testing.T) {
		dir := newFakeDirectory()
		server := newTestServer(t, dir)

		_, err := server.Token(ctx, passwordRequest("nobody", "whatever"))
		assert.ErrorIs(t, err, oauth.ErrInvalidGrant)
		assert.Zero(t, dir.updateCount())
	})

	t.Run("directory outage degrades to a failed login", func(t *testing.T) {
		dir := newFakeDirectory(&oauth.User{ID: 2, Username: "bob", Password: mustHash("x"), Enabled: true})
		dir.findErr = oauth.ErrDirectoryUnavailable
		server := newTestServer(t, dir)

		_, err := server.Token(ctx, passwordRequest("bob", "x"))
		assert.ErrorIs(t, err, oauth.ErrInvalidGrant)
		assert.Zero(t, dir.updateCount())
	})

	t.Run("missing credentials rejected before any lookup", func(t *testing.T) {
		dir := newFakeDirectory()
		server := newTestServer(t, dir)

		_, err := server.Token(ctx, passwordRequest("", ""))
		assert.ErrorIs(t, err, oauth.ErrInvalidGrant)
		assert.Zero(t, dir.lookupCount())
	})
}

func TestServerClientValidation(t *testing.T) {
	ctx := context.Background()

	t.Run("unregistered client rejected before any credential check", func(t *testing.T) {
		dir := newFakeDirectory(&oauth.User{ID: 2, Username: "bob", Password: mustHash("x"), Enabled: true})
		server := newTestServer(t, dir)

		req := passwordRequest("bob", "x")
		req.ClientID = "rogue-client"

		_, err := server.Token(ctx, req)
		assert.ErrorIs(t, err, oauth.ErrInvalidClient)
		assert.Zero(t, dir.lookupCount())
	})

	t.Run("wrong client secret rejected", func(t *testing.T) {
		server := newTestServer(t, newFakeDirectory())

		req := passwordRequest("bob", "x")
		req.ClientSecret = "wrong"

		_, err := server.Token(ctx, req)
		assert.ErrorIs(t, err, oauth.ErrInvalidClient)
	})

	t.Run("disallowed grant type rejected", func(t *testing.T) {
		server := newTestServer(t, newFakeDirectory())

		req := passwordRequest("bob", "x")
		req.GrantType = "client_credentials"

		_, err := server.Token(ctx, req)
		assert.ErrorIs(t, err, oauth.ErrInvalidClient)
	})

	t.Run("scope overreach rejected", func(t *testing.T) {
		dir := newFakeDirectory(&oauth.User{ID: 2, Username: "bob", Password: mustHash("x"), Enabled: true})
		server := newTestServer(t, dir)

		req := passwordRequest("bob", "x")
		req.Scope = []string{"admin"}

		_, err := server.Token(ctx, req)
		assert.ErrorIs(t, err, oauth.ErrInvalidClient)
		assert.Zero(t, dir.lookupCount())
	})
}

func TestServerRefreshGrant(t *testing.T) {
	ctx := context.Background()

	issue := func(t *testing.T, server *oauth.Server) *oauth.TokenResponse {
		t.Helper()
		resp, err := server.Token(ctx, passwordRequest("bob", "bobs-password"))
		require.NoError(t, err)
		return resp
	}

	bob := &oauth.User{
		ID:       2,
		Username: "bob",
		Password: mustHash("bobs-password"),
		Email:    "bob@example.com",
		Enabled:  true,
	}

	refreshRequest := func(token string) oauth.GrantRequest {
		return oauth.GrantRequest{
			GrantType:    oauth.GrantTypeRefreshToken,
			ClientID:     "web-client",
			ClientSecret: "client-secret",
			RefreshToken: token,
		}
	}

	t.Run("re-issues for the bound identity", func(t *testing.T) {
		dir := newFakeDirectory(bob)
		server := newTestServer(t, dir)
		first := issue(t, server)

		resp, err := server.Token(ctx, refreshRequest(first.RefreshToken))
		require.NoError(t, err)

		assert.NotEmpty(t, resp.AccessToken)
		assert.NotEqual(t, first.AccessToken, resp.AccessToken)
		assert.Equal(t, first.Scope, resp.Scope)
		assert.Equal(t, "bob@example.com", resp.Extra["email"])
	})

	t.Run("refresh is not a login", func(t *testing.T) {
		dir := newFakeDirectory(bob)
		server := newTestServer(t, dir)
		first := issue(t, server)

		events := new(MockLoginEvents)
		events.On("OnAuthenticationSuccess", mock.Anything, mock.Anything).Return()
		server.WithLoginEvents(events)

		_, err := server.Token(ctx, refreshRequest(first.RefreshToken))
		require.NoError(t, err)

		// Only the client-credential outcome fired; no user-login event.
		events.AssertNotCalled(t, "OnAuthenticationFailure", mock.Anything, mock.Anything, mock.Anything)
		events.AssertCalled(t, "OnAuthenticationSuccess", mock.Anything,
			oauth.Principal{Username: "web-client", Client: true})
		events.AssertNumberOfCalls(t, "OnAuthenticationSuccess", 1)
	})

	t.Run("access token cannot be used as a refresh token", func(t *testing.T) {
		dir := newFakeDirectory(bob)
		server := newTestServer(t, dir)
		first := issue(t, server)

		_, err := server.Token(ctx, refreshRequest(first.AccessToken))
		assert.ErrorIs(t, err, oauth.ErrInvalidGrant)
	})

	t.Run("garbage refresh token rejected", func(t *testing.T) {
		server := newTestServer(t, newFakeDirectory(bob))

		_, err := server.Token(ctx, refreshRequest("not-a-token"))
		assert.ErrorIs(t, err, oauth.ErrInvalidGrant)
	})
}

func TestServerOutcomeEventCoupling(t *testing.T) {
	ctx := context.Background()

	// Every credential check fires exactly one outcome event, whatever path
	// the check takes.
	cases := []struct {
		name     string
		user     *oauth.User
		username string
		password string
		method   string
	}{
		{
			name:     "success",
			user:     &oauth.User{ID: 2, Username: "bob", Password: mustHash("pw"), Enabled: true},
			username: "bob", password: "pw",
			method: "OnAuthenticationSuccess",
		},
		{
			name:     "wrong password",
			user:     &oauth.User{ID: 2, Username: "bob", Password: mustHash("pw"), Enabled: true},
			username: "bob", password: "nope",
			method: "OnAuthenticationFailure",
		},
		{
			name:     "unknown user",
			username: "ghost", password: "pw",
			method: "OnAuthenticationFailure",
		},
		{
			name:     "locked account",
			user:     &oauth.User{ID: 2, Username: "bob", Password: mustHash("pw"), Enabled: false, Attempts: intPtr(3)},
			username: "bob", password: "pw",
			method: "OnAuthenticationFailure",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var dir *fakeDirectory
			if tc.user != nil {
				dir = newFakeDirectory(tc.user)
			} else {
				dir = newFakeDirectory()
			}

			server := newTestServer(t, dir)
			events := new(MockLoginEvents)
			events.On("OnAuthenticationSuccess", mock.Anything, mock.Anything).Return()
			events.On("OnAuthenticationFailure", mock.Anything, mock.Anything, mock.Anything).Return()
			server.WithLoginEvents(events)

			_, _ = server.Token(ctx, passwordRequest(tc.username, tc.password))

			userEvents := 0
			for _, call := range events.Calls {
				if call.Method == "OnAuthenticationFailure" {
					userEvents++
					assert.Equal(t, "OnAuthenticationFailure", tc.method)
				}
				if call.Method == "OnAuthenticationSuccess" {
					principal := call.Arguments.Get(1).(oauth.Principal)
					if !principal.Client {
						userEvents++
						assert.Equal(t, "OnAuthenticationSuccess", tc.method)
					}
				}
			}
			assert.Equal(t, 1, userEvents)
		})
	}
}

func TestServerTokenKey(t *testing.T) {
	server := newTestServer(t, newFakeDirectory())

	key := server.TokenKey()
	assert.Equal(t, "HS256", key["alg"])
	assert.Equal(t, oauth.NormalizeSigningKey("some-raw-signing-key"), key["value"])
}

func TestNewServerValidation(t *testing.T) {
	t.Run("missing signing key", func(t *testing.T) {
		cfg := newTestConfig()
		cfg.signingKey = ""

		_, err := oauth.NewServer(cfg, newFakeDirectory())
		assert.Error(t, err)
	})

	t.Run("missing client id", func(t *testing.T) {
		cfg := newTestConfig()
		cfg.clientID = ""

		_, err := oauth.NewServer(cfg, newFakeDirectory())
		assert.Error(t, err)
	})
}
