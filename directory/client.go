// Package directory implements the oauth.Directory boundary against the
// remote user-directory service over HTTP.
package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmgonzalezc/oauth-service"
)

const defaultTimeout = 10 * time.Second

// Client talks to the user-directory service. Both calls are synchronous
// request/response; the directory owns all concurrency control over user
// records, so the client performs no retries of its own.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

// WithHTTPClient swaps the underlying HTTP client, mainly so callers can
// control timeouts and transports.
func (c *Client) WithHTTPClient(client *http.Client) *Client {
	if client != nil {
		c.http = client
	}
	return c
}

var _ oauth.Directory = (*Client)(nil)

// FindByUsername looks a user up by its exact, case-sensitive username.
func (c *Client) FindByUsername(ctx context.Context, username string) (*oauth.User, error) {
	endpoint := fmt.Sprintf("%s/users/search/by-username?username=%s", c.baseURL, url.QueryEscape(username))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build lookup request: %v", oauth.ErrDirectoryUnavailable, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: lookup %q: %v", oauth.ErrDirectoryUnavailable, username, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return decodeUser(resp)
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %q", oauth.ErrUserNotFound, username)
	default:
		return nil, fmt.Errorf("%w: lookup %q returned %d", oauth.ErrDirectoryUnavailable, username, resp.StatusCode)
	}
}

// Update persists the full record by id and returns the stored result. This
// is the only mutation path for attempt counters and the enabled flag.
func (c *Client) Update(ctx context.Context, user *oauth.User) (*oauth.User, error) {
	body, err := json.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("%w: encode user %d: %v", oauth.ErrDirectoryUnavailable, user.ID, err)
	}

	endpoint := fmt.Sprintf("%s/users/%d", c.baseURL, user.ID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build update request: %v", oauth.ErrDirectoryUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: update %d: %v", oauth.ErrDirectoryUnavailable, user.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: update %d returned %d", oauth.ErrDirectoryUnavailable, user.ID, resp.StatusCode)
	}

	return decodeUser(resp)
}

func decodeUser(resp *http.Response) (*oauth.User, error) {
	user := new(oauth.User)
	if err := json.NewDecoder(resp.Body).Decode(user); err != nil {
		return nil, fmt.Errorf("%w: decode user payload: %v", oauth.ErrDirectoryUnavailable, err)
	}
	return user, nil
}
