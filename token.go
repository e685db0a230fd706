package oauth

import (
	"encoding/json"
	"strings"
	"time"
)

const (
	TokenTypeBearer = "bearer"

	// typ claim values distinguishing access from refresh tokens
	TokenUseAccess  = "access"
	TokenUseRefresh = "refresh"
)

// Token is a token in progress: created per successful grant, threaded
// through the enhancer chain, and discarded after the response is written.
// Claims holds the additional claims injected by enhancers; the signing
// enhancer fills Value and RefreshValue last.
type Token struct {
	ID               string
	Subject          string
	ClientID         string
	Scopes           []string
	Use              string
	IssuedAt         time.Time
	ExpiresAt        time.Time
	RefreshExpiresAt time.Time
	Claims           map[string]any

	Value        string
	RefreshValue string
}

// Scope renders the granted scopes in OAuth2 wire form.
func (t *Token) Scope() string {
	return strings.Join(t.Scopes, " ")
}

// Response builds the wire payload for a fully enhanced token.
func (t *Token) Response() *TokenResponse {
	return &TokenResponse{
		AccessToken:  t.Value,
		TokenType:    TokenTypeBearer,
		ExpiresIn:    int64(time.Until(t.ExpiresAt).Seconds()),
		RefreshToken: t.RefreshValue,
		Scope:        t.Scope(),
		JTI:          t.ID,
		Extra:        t.Claims,
	}
}

// TokenResponse is the OAuth2 token endpoint payload. Extra carries the
// additional claims injected by the enhancer chain; they are flattened into
// the top level of the JSON object, with the named fields taking precedence.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
	JTI          string `json:"jti,omitempty"`

	Extra map[string]any `json:"-"`
}

func (r *TokenResponse) MarshalJSON() ([]byte, error) {
	type alias TokenResponse

	base, err := json.Marshal((*alias)(r))
	if err != nil || len(r.Extra) == 0 {
		return base, err
	}

	merged := map[string]any{}
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}

	for name, value := range r.Extra {
		if _, taken := merged[name]; taken {
			continue
		}
		merged[name] = value
	}

	return json.Marshal(merged)
}

// ErrorResponse is the OAuth2 error envelope. Internal lockout or directory
// state never leaks into it.
type ErrorResponse struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}
