package oauth

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
)

const (
	GrantTypePassword     = "password"
	GrantTypeRefreshToken = "refresh_token"

	ScopeRead  = "read"
	ScopeWrite = "write"
)

// DefaultTokenTTL matches the directory-wide agreement on token lifetimes.
const DefaultTokenTTL = 3600 * time.Second

// ClientDescriptor is the single statically-registered OAuth client. It is
// built once at startup and read-only afterwards, so concurrent grant
// requests may consult it without synchronization.
type ClientDescriptor struct {
	ID              string
	SecretHash      string
	Scopes          []string
	GrantTypes      []string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// NewClientDescriptor registers the client, hashing the shared secret the
// same way user passwords are hashed.
func NewClientDescriptor(id, secret string, accessTTL, refreshTTL time.Duration) (*ClientDescriptor, error) {
	hash, err := HashPassword(secret)
	if err != nil {
		return nil, err
	}

	if accessTTL <= 0 {
		accessTTL = DefaultTokenTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultTokenTTL
	}

	client := &ClientDescriptor{
		ID:              id,
		SecretHash:      hash,
		Scopes:          []string{ScopeRead, ScopeWrite},
		GrantTypes:      []string{GrantTypePassword, GrantTypeRefreshToken},
		AccessTokenTTL:  accessTTL,
		RefreshTokenTTL: refreshTTL,
	}

	if err := client.Validate(); err != nil {
		return nil, err
	}

	return client, nil
}

// Validate will run validation rules
func (c ClientDescriptor) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ID, validation.Required),
		validation.Field(&c.SecretHash, validation.Required),
		validation.Field(&c.Scopes, validation.Required),
		validation.Field(&c.GrantTypes, validation.Required),
	)
}

// Authenticate checks the presented client credentials against the
// registered descriptor.
func (c *ClientDescriptor) Authenticate(id, secret string) error {
	if id != c.ID {
		return ErrInvalidClient
	}
	if err := ComparePasswordAndHash(secret, c.SecretHash); err != nil {
		return ErrInvalidClient
	}
	return nil
}

// AllowsGrantType reports whether the client may use the given grant type.
func (c *ClientDescriptor) AllowsGrantType(grantType string) bool {
	for _, gt := range c.GrantTypes {
		if gt == grantType {
			return true
		}
	}
	return false
}

// GrantScopes resolves the requested scopes against the allowed set. An
// empty request grants every registered scope; any scope outside the allowed
// set rejects the whole request.
func (c *ClientDescriptor) GrantScopes(requested []string) ([]string, error) {
	if len(requested) == 0 {
		granted := make([]string, len(c.Scopes))
		copy(granted, c.Scopes)
		return granted, nil
	}

	for _, scope := range requested {
		if !c.allowsScope(scope) {
			return nil, ErrInvalidClient
		}
	}

	granted := make([]string, len(requested))
	copy(granted, requested)
	return granted, nil
}

func (c *ClientDescriptor) allowsScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}
