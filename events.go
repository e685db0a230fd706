package oauth

import (
	"context"
	"errors"
)

// DefaultMaxLoginAttempts is the consecutive-failure threshold after which
// an account is disabled.
const DefaultMaxLoginAttempts = 3

// LoginEventHandler drives the lockout state machine against the remote
// user directory. Per username the state is implicit in the record itself:
// fresh (0 attempts) -> warned (1..2) -> locked (>=3, disabled). Locked is
// terminal here; re-enabling is owned by an external actor.
//
// The handler is best-effort on purpose. Lockout bookkeeping is a hardening
// feature, not a correctness-critical path: every directory fault is logged
// and swallowed so token issuance and rejection decisions are never blocked.
type LoginEventHandler struct {
	directory   Directory
	logger      Logger
	maxAttempts int
}

func NewLoginEventHandler(directory Directory) *LoginEventHandler {
	return &LoginEventHandler{
		directory:   directory,
		logger:      defLogger{},
		maxAttempts: DefaultMaxLoginAttempts,
	}
}

func (h *LoginEventHandler) WithLogger(logger Logger) *LoginEventHandler {
	h.logger = logger
	return h
}

func (h *LoginEventHandler) WithMaxAttempts(max int) *LoginEventHandler {
	if max > 0 {
		h.maxAttempts = max
	}
	return h
}

// OnAuthenticationSuccess resets the failed-attempt counter of the user that
// just logged in. Client-credential outcomes are skipped: those are not user
// logins and must not touch any counter.
func (h *LoginEventHandler) OnAuthenticationSuccess(ctx context.Context, principal Principal) {
	if principal.Client {
		return
	}

	h.logger.Info("successful login: %s", principal.Username)

	user, err := h.directory.FindByUsername(ctx, principal.Username)
	if err != nil {
		h.logger.Error("could not load %q to reset attempt counter: %v", principal.Username, err)
		return
	}

	if user.FailedAttempts() == 0 {
		return
	}

	user.SetFailedAttempts(0)
	if _, err := h.directory.Update(ctx, user); err != nil {
		h.logger.Error("could not reset attempt counter for %q: %v", principal.Username, err)
	}
}

// OnAuthenticationFailure increments the failed-attempt counter for a known
// username and disables the account once the threshold is reached. Unknown
// usernames are noted and left alone; no record is fabricated.
func (h *LoginEventHandler) OnAuthenticationFailure(ctx context.Context, username string, cause error) {
	h.logger.Error("login failed for %q: %v", username, cause)

	user, err := h.directory.FindByUsername(ctx, username)
	if errors.Is(err, ErrUserNotFound) {
		h.logger.Info("unknown user %q attempted login", username)
		return
	}
	if err != nil {
		h.logger.Error("could not load %q to track failed attempt: %v", username, err)
		return
	}

	attempts := user.FailedAttempts() + 1
	user.SetFailedAttempts(attempts)
	h.logger.Info("failed attempts for %q now at %d", username, attempts)

	if attempts >= h.maxAttempts {
		user.Enabled = false
		h.logger.Warn("user %q disabled after %d failed login attempts", username, attempts)
	}

	if _, err := h.directory.Update(ctx, user); err != nil {
		h.logger.Error("could not persist attempt counter for %q: %v", username, err)
	}
}
