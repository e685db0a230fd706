package oauth_test

import (
	"context"
	"sync"

	oauth "github.com/mmgonzalezc/oauth-service"
	"github.com/stretchr/testify/mock"
)

// fakeDirectory is an in-memory Directory. It hands out copies of its
// records so state only changes through Update, which lets tests assert the
// "no update call" properties directly.
type fakeDirectory struct {
	mu        sync.Mutex
	users     map[string]*oauth.User
	findErr   error
	updateErr error
	lookups   int
	updates   []oauth.User
}

func newFakeDirectory(users ...*oauth.User) *fakeDirectory {
	d := &fakeDirectory{users: map[string]*oauth.User{}}
	for _, u := range users {
		clone := *u
		d.users[u.Username] = &clone
	}
	return d
}

func (d *fakeDirectory) FindByUsername(ctx context.Context, username string) (*oauth.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.lookups++
	if d.findErr != nil {
		return nil, d.findErr
	}

	user, ok := d.users[username]
	if !ok {
		return nil, oauth.ErrUserNotFound
	}

	clone := *user
	return &clone, nil
}

func (d *fakeDirectory) Update(ctx context.Context, user *oauth.User) (*oauth.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.updateErr != nil {
		return nil, d.updateErr
	}

	d.updates = append(d.updates, *user)
	clone := *user
	d.users[user.Username] = &clone
	return user, nil
}

func (d *fakeDirectory) updateCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.updates)
}

func (d *fakeDirectory) lookupCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lookups
}

func (d *fakeDirectory) stored(username string) *oauth.User {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.users[username]
}

// MockLoginEvents implements oauth.LoginEvents
type MockLoginEvents struct {
	mock.Mock
}

func (m *MockLoginEvents) OnAuthenticationSuccess(ctx context.Context, principal oauth.Principal) {
	m.Called(ctx, principal)
}

func (m *MockLoginEvents) OnAuthenticationFailure(ctx context.Context, username string, cause error) {
	m.Called(ctx, username, cause)
}

// testConfig implements oauth.Config
type testConfig struct {
	clientID     string
	clientSecret string
	signingKey   string
	accessTTL    int
	refreshTTL   int
}

func newTestConfig() testConfig {
	return testConfig{
		clientID:     "web-client",
		clientSecret: "client-secret",
		signingKey:   "some-raw-signing-key",
		accessTTL:    3600,
		refreshTTL:   3600,
	}
}

func (c testConfig) GetClientID() string     { return c.clientID }
func (c testConfig) GetClientSecret() string { return c.clientSecret }
func (c testConfig) GetSigningKey() string   { return c.signingKey }
func (c testConfig) GetAccessTokenTTL() int  { return c.accessTTL }
func (c testConfig) GetRefreshTokenTTL() int { return c.refreshTTL }

func intPtr(n int) *int {
	return &n
}

func mustHash(password string) string {
	hash, err := oauth.HashPassword(password)
	if err != nil {
		panic(err)
	}
	return hash
}
