package oauth

import "errors"

// ErrInvalidClient rejects bad client credentials, disallowed grant types and
// scope overreach. Always rejected, never retried.
var ErrInvalidClient = errors.New("invalid client")

// ErrInvalidGrant rejects bad user credentials or an expired refresh token.
// It deliberately does not distinguish the username from the password as the
// cause, to avoid username-enumeration leakage.
var ErrInvalidGrant = errors.New("invalid grant")

// ErrAccountLocked marks an account disabled after too many failed logins.
// On the wire it surfaces as invalid_grant; it exists as a distinct value so
// the server can log it separately.
var ErrAccountLocked = errors.New("account locked")

// ErrUserNotFound is returned by the directory for unknown usernames
var ErrUserNotFound = errors.New("user not found in directory")

// ErrDirectoryUnavailable is a transient directory transport fault
var ErrDirectoryUnavailable = errors.New("user directory unavailable")

// ErrMismatchedHashAndPassword is the failed-closed outcome of a credential check
var ErrMismatchedHashAndPassword = errors.New("mismatched password and hash")

// ErrNoEmptyString rejects empty plaintext passwords before hashing
var ErrNoEmptyString = errors.New("password must not be empty")

// ErrReservedClaimMutation is raised when an enhancer rewrites a protocol claim
var ErrReservedClaimMutation = errors.New("reserved claim mutated")

// ErrTokenMalformed covers unparseable or badly signed tokens
var ErrTokenMalformed = errors.New("token is malformed")

// ErrTokenExpired covers tokens past their expiry
var ErrTokenExpired = errors.New("token is expired")

// ErrorCode maps an issuance error to its OAuth2 wire error code. Account
// lockout is intentionally folded into invalid_grant so the response does not
// reveal whether the password or the lock caused the rejection.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidClient):
		return "invalid_client"
	case errors.Is(err, ErrInvalidGrant), errors.Is(err, ErrAccountLocked):
		return "invalid_grant"
	default:
		return "server_error"
	}
}
