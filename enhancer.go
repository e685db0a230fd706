package oauth

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// reservedClaims are protocol claims owned by the server. Enhancer-injected
// claims with these names are discarded rather than merged.
var reservedClaims = map[string]bool{
	"sub":       true,
	"exp":       true,
	"iat":       true,
	"jti":       true,
	"ati":       true,
	"typ":       true,
	"scope":     true,
	"client_id": true,
}

// NormalizeSigningKey re-encodes the configured raw key into the padded
// base64 text form that is used as the actual HS256 secret. Any consumer
// verifying tokens independently must apply the identical encoding to
// reconstruct the same secret.
func NormalizeSigningKey(raw string) string {
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

// TokenEnhancerFunc adapts a function into a TokenEnhancer.
type TokenEnhancerFunc func(ctx context.Context, user *User, token *Token) error

// Enhance satisfies the TokenEnhancer interface.
func (f TokenEnhancerFunc) Enhance(ctx context.Context, user *User, token *Token) error {
	if f == nil {
		return nil
	}
	return f(ctx, user, token)
}

// EnhancerChain applies enhancers left to right. Order matters: claim
// injection has to run before the signing enhancer so injected claims are
// part of the signed payload. After every step the chain checks that no
// reserved protocol claim was rewritten.
type EnhancerChain struct {
	enhancers []TokenEnhancer
}

func NewEnhancerChain(enhancers ...TokenEnhancer) *EnhancerChain {
	return &EnhancerChain{enhancers: enhancers}
}

func (c *EnhancerChain) Enhance(ctx context.Context, user *User, token *Token) error {
	snap := captureReservedClaims(token)

	for _, enhancer := range c.enhancers {
		if err := enhancer.Enhance(ctx, user, token); err != nil {
			return err
		}
		if err := snap.validate(token); err != nil {
			return err
		}
	}

	return nil
}

type reservedClaimsSnapshot struct {
	id        string
	subject   string
	clientID  string
	scope     string
	expiresAt time.Time
}

func captureReservedClaims(token *Token) reservedClaimsSnapshot {
	return reservedClaimsSnapshot{
		id:        token.ID,
		subject:   token.Subject,
		clientID:  token.ClientID,
		scope:     token.Scope(),
		expiresAt: token.ExpiresAt,
	}
}

func (snap reservedClaimsSnapshot) validate(token *Token) error {
	if token.Subject != snap.subject {
		return reservedClaimViolation("sub")
	}
	if token.ID != snap.id {
		return reservedClaimViolation("jti")
	}
	if token.ClientID != snap.clientID {
		return reservedClaimViolation("client_id")
	}
	if token.Scope() != snap.scope {
		return reservedClaimViolation("scope")
	}
	if !token.ExpiresAt.Equal(snap.expiresAt) {
		return reservedClaimViolation("exp")
	}
	return nil
}

func reservedClaimViolation(claim string) error {
	return fmt.Errorf("%w: %s", ErrReservedClaimMutation, claim)
}

// UserInfoEnhancer injects directory-owned attributes of the authenticated
// user as additional claims. On the password grant the server hands it the
// record it already fetched; on refresh it resolves the token subject
// itself. A directory fault only costs the extra claims, never the token.
type UserInfoEnhancer struct {
	directory Directory
	logger    Logger
}

func NewUserInfoEnhancer(directory Directory) *UserInfoEnhancer {
	return &UserInfoEnhancer{directory: directory, logger: defLogger{}}
}

func (e *UserInfoEnhancer) WithLogger(logger Logger) *UserInfoEnhancer {
	e.logger = logger
	return e
}

func (e *UserInfoEnhancer) Enhance(ctx context.Context, user *User, token *Token) error {
	if user == nil {
		var err error
		if user, err = e.directory.FindByUsername(ctx, token.Subject); err != nil {
			e.logger.Error("user info enhancer lookup %q: %v", token.Subject, err)
			return nil
		}
	}

	token.Claims["user_id"] = user.ID
	token.Claims["first_name"] = user.FirstName
	token.Claims["last_name"] = user.LastName
	token.Claims["email"] = user.Email
	if len(user.Roles) > 0 {
		token.Claims["authorities"] = user.Roles
	}

	return nil
}

// JWTEnhancer is the terminal enhancer: it encodes the token in progress as
// an HS256 JWT, plus a refresh JWT bound to the same identity and scopes.
type JWTEnhancer struct {
	key []byte
}

// NewJWTEnhancer derives the signing secret from the raw configured key via
// NormalizeSigningKey.
func NewJWTEnhancer(rawKey string) *JWTEnhancer {
	return &JWTEnhancer{key: []byte(NormalizeSigningKey(rawKey))}
}

// Key exposes the normalized signing secret for the token key endpoint.
func (e *JWTEnhancer) Key() string {
	return string(e.key)
}

func (e *JWTEnhancer) Enhance(ctx context.Context, user *User, token *Token) error {
	claims := jwt.MapClaims{}
	for name, value := range token.Claims {
		if reservedClaims[name] {
			continue
		}
		claims[name] = value
	}

	claims["sub"] = token.Subject
	claims["client_id"] = token.ClientID
	claims["scope"] = token.Scope()
	claims["iat"] = token.IssuedAt.Unix()
	claims["exp"] = token.ExpiresAt.Unix()
	claims["jti"] = token.ID
	claims["typ"] = TokenUseAccess

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(e.key)
	if err != nil {
		return fmt.Errorf("sign access token: %w", err)
	}
	token.Value = signed

	if token.RefreshExpiresAt.IsZero() {
		return nil
	}

	refresh := jwt.MapClaims{
		"sub":       token.Subject,
		"client_id": token.ClientID,
		"scope":     token.Scope(),
		"iat":       token.IssuedAt.Unix(),
		"exp":       token.RefreshExpiresAt.Unix(),
		"jti":       uuid.NewString(),
		"ati":       token.ID,
		"typ":       TokenUseRefresh,
	}

	if token.RefreshValue, err = jwt.NewWithClaims(jwt.SigningMethodHS256, refresh).SignedString(e.key); err != nil {
		return fmt.Errorf("sign refresh token: %w", err)
	}

	return nil
}

// Decode parses and verifies a token issued by this enhancer, returning its
// raw claim set.
func (e *JWTEnhancer) Decode(raw string) (jwt.MapClaims, error) {
	parsed, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return e.key, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenMalformed
	}

	return claims, nil
}

// Parse rebuilds the identity bound to a verified token, as needed by the
// refresh grant.
func (e *JWTEnhancer) Parse(raw string) (*Token, error) {
	claims, err := e.Decode(raw)
	if err != nil {
		return nil, err
	}

	token := &Token{
		ID:       claimString(claims, "jti"),
		Subject:  claimString(claims, "sub"),
		ClientID: claimString(claims, "client_id"),
		Scopes:   strings.Fields(claimString(claims, "scope")),
		Use:      claimString(claims, "typ"),
		Claims:   map[string]any{},
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		token.ExpiresAt = exp.Time
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		token.IssuedAt = iat.Time
	}

	return token, nil
}

func claimString(claims jwt.MapClaims, name string) string {
	if value, ok := claims[name].(string); ok {
		return value
	}
	return ""
}
