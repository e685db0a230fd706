package oauth

import (
	"context"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// GrantRequest is a parsed token-endpoint request.
type GrantRequest struct {
	GrantType    string
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	RefreshToken string
	Scope        []string
}

// Validate will run validation rules for the fields owned by the requested
// grant type. Client and grant-type checks live on the ClientDescriptor.
func (r GrantRequest) Validate() error {
	rules := []*validation.FieldRules{
		validation.Field(&r.GrantType, validation.Required),
	}

	switch r.GrantType {
	case GrantTypePassword:
		rules = append(rules,
			validation.Field(&r.Username, validation.Required),
			validation.Field(&r.Password, validation.Required),
		)
	case GrantTypeRefreshToken:
		rules = append(rules,
			validation.Field(&r.RefreshToken, validation.Required),
		)
	}

	return validation.ValidateStruct(&r, rules...)
}

// Server is the authorization server core: it validates the client,
// delegates the credential check, fires the outcome event, and produces
// signed tokens through the enhancer chain.
type Server struct {
	client    *ClientDescriptor
	directory Directory
	events    LoginEvents
	chain     *EnhancerChain
	signer    *JWTEnhancer
	logger    Logger
}

// NewServer wires the default pipeline: a user-info enhancer followed by the
// signing enhancer, and the lockout login-event handler.
func NewServer(cfg Config, directory Directory) (*Server, error) {
	client, err := NewClientDescriptor(
		cfg.GetClientID(),
		cfg.GetClientSecret(),
		time.Duration(cfg.GetAccessTokenTTL())*time.Second,
		time.Duration(cfg.GetRefreshTokenTTL())*time.Second,
	)
	if err != nil {
		return nil, fmt.Errorf("register client: %w", err)
	}

	if cfg.GetSigningKey() == "" {
		return nil, fmt.Errorf("signing key is required")
	}

	signer := NewJWTEnhancer(cfg.GetSigningKey())

	return &Server{
		client:    client,
		directory: directory,
		events:    NewLoginEventHandler(directory),
		chain:     NewEnhancerChain(NewUserInfoEnhancer(directory), signer),
		signer:    signer,
		logger:    defLogger{},
	}, nil
}

func (s *Server) WithLogger(logger Logger) *Server {
	s.logger = logger
	return s
}

// WithLoginEvents replaces the login-outcome consumer.
func (s *Server) WithLoginEvents(events LoginEvents) *Server {
	s.events = events
	return s
}

// WithEnhancerChain replaces the token enhancer chain. The chain must still
// end in a signing enhancer.
func (s *Server) WithEnhancerChain(chain *EnhancerChain) *Server {
	s.chain = chain
	return s
}

// Client exposes the immutable registered client.
func (s *Server) Client() *ClientDescriptor {
	return s.client
}

// Token handles a grant request end to end. Protocol rejections come back
// as ErrInvalidClient or ErrInvalidGrant; directory faults never escape the
// lockout bookkeeping.
func (s *Server) Token(ctx context.Context, req GrantRequest) (*TokenResponse, error) {
	if err := s.client.Authenticate(req.ClientID, req.ClientSecret); err != nil {
		s.logger.Warn("client authentication failed for %q", req.ClientID)
		return nil, ErrInvalidClient
	}

	// The client itself authenticated; the event handler skips this one.
	s.events.OnAuthenticationSuccess(ctx, Principal{Username: req.ClientID, Client: true})

	if !s.client.AllowsGrantType(req.GrantType) {
		s.logger.Warn("grant type %q not allowed for client %q", req.GrantType, req.ClientID)
		return nil, ErrInvalidClient
	}

	scopes, err := s.client.GrantScopes(req.Scope)
	if err != nil {
		s.logger.Warn("scope overreach for client %q: %v", req.ClientID, req.Scope)
		return nil, err
	}

	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGrant, err)
	}

	switch req.GrantType {
	case GrantTypePassword:
		return s.passwordGrant(ctx, req, scopes)
	default:
		return s.refreshGrant(ctx, req)
	}
}

func (s *Server) passwordGrant(ctx context.Context, req GrantRequest, scopes []string) (*TokenResponse, error) {
	user, err := s.authenticate(ctx, req.Username, req.Password)
	if err != nil {
		// Collapse every rejection cause into invalid_grant so the wire
		// response cannot be used for username enumeration.
		return nil, ErrInvalidGrant
	}

	token := s.newToken(user.Username, scopes)
	if err := s.chain.Enhance(ctx, user, token); err != nil {
		s.logger.Error("token enhancement failed for %q: %v", user.Username, err)
		return nil, err
	}

	return token.Response(), nil
}

// authenticate runs the credential check and fires exactly one outcome
// event, whatever path the check takes.
func (s *Server) authenticate(ctx context.Context, username, password string) (*User, error) {
	user, err := s.directory.FindByUsername(ctx, username)
	if err != nil {
		s.events.OnAuthenticationFailure(ctx, username, err)
		return nil, ErrInvalidGrant
	}

	if !user.Enabled {
		s.logger.Warn("login rejected: account %q is locked", username)
		s.events.OnAuthenticationFailure(ctx, username, ErrAccountLocked)
		return nil, ErrAccountLocked
	}

	if err := ComparePasswordAndHash(password, user.Password); err != nil {
		s.events.OnAuthenticationFailure(ctx, username, ErrMismatchedHashAndPassword)
		return nil, ErrInvalidGrant
	}

	s.events.OnAuthenticationSuccess(ctx, Principal{Username: username})
	return user, nil
}

// refreshGrant re-issues tokens for the identity bound to the presented
// refresh token. Refresh is not a login: no outcome event fires.
func (s *Server) refreshGrant(ctx context.Context, req GrantRequest) (*TokenResponse, error) {
	presented, err := s.signer.Parse(req.RefreshToken)
	if err != nil {
		s.logger.Warn("refresh token rejected: %v", err)
		return nil, ErrInvalidGrant
	}

	if presented.Use != TokenUseRefresh {
		s.logger.Warn("refresh grant presented a non-refresh token for %q", presented.Subject)
		return nil, ErrInvalidGrant
	}

	token := s.newToken(presented.Subject, presented.Scopes)
	if err := s.chain.Enhance(ctx, nil, token); err != nil {
		s.logger.Error("token enhancement failed for %q: %v", presented.Subject, err)
		return nil, err
	}

	return token.Response(), nil
}

// CheckToken verifies an issued token and returns its claims for
// introspection, with the standard active marker.
func (s *Server) CheckToken(raw string) (map[string]any, error) {
	claims, err := s.signer.Decode(raw)
	if err != nil {
		return nil, err
	}

	result := map[string]any{"active": true}
	for name, value := range claims {
		result[name] = value
	}

	return result, nil
}

// TokenKey publishes the signing key material so downstream services can
// verify tokens locally. The normalized form is what verifiers must use.
func (s *Server) TokenKey() map[string]string {
	return map[string]string{
		"alg":   jwt.SigningMethodHS256.Alg(),
		"value": s.signer.Key(),
	}
}

func (s *Server) newToken(subject string, scopes []string) *Token {
	now := time.Now()
	return &Token{
		ID:               uuid.NewString(),
		Subject:          subject,
		ClientID:         s.client.ID,
		Scopes:           scopes,
		IssuedAt:         now,
		ExpiresAt:        now.Add(s.client.AccessTokenTTL),
		RefreshExpiresAt: now.Add(s.client.RefreshTokenTTL),
		Claims:           map[string]any{},
	}
}
