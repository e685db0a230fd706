package oauth

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Directory is the outbound boundary to the remote user-directory service.
// It is the only mutation path for failed-attempt counters and the enabled
// flag; implementations report lookup misses as ErrUserNotFound and
// transport faults as ErrDirectoryUnavailable.
type Directory interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
	Update(ctx context.Context, user *User) (*User, error)
}

// LoginEvents consumes authentication outcomes. The Server fires exactly one
// event per credential check, success or failure.
type LoginEvents interface {
	OnAuthenticationSuccess(ctx context.Context, principal Principal)
	OnAuthenticationFailure(ctx context.Context, username string, cause error)
}

// TokenEnhancer mutates a token in progress before it is returned to the
// caller. Enhancers run in order; exactly one of them performs signing.
type TokenEnhancer interface {
	Enhance(ctx context.Context, user *User, token *Token) error
}

// Config holds the startup surface of the authorization server.
type Config interface {
	GetClientID() string
	GetClientSecret() string
	GetSigningKey() string
	GetAccessTokenTTL() int
	GetRefreshTokenTTL() int
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] OAUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] OAUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] OAUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] OAUTH "+newline(format), args...)
}

func newline(format string) string {
	if len(format) == 0 || format[len(format)-1] != '\n' {
		return format + "\n"
	}
	return format
}
