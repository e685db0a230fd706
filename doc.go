// Package oauth implements a password-grant OAuth2 authorization server
// backed by a remote user-directory service.
//
// Token issuance:
//   - Server validates the statically configured client, delegates the
//     username/password check to the user directory plus the bcrypt hasher,
//     and builds tokens through an ordered EnhancerChain. Custom claims are
//     injected before the signing enhancer runs so they end up inside the
//     signed payload.
//
// Lockout bookkeeping:
//   - Every credential check fires exactly one outcome event into the
//     LoginEventHandler, which tracks consecutive failed attempts on the
//     remote user record and disables the account after three failures.
//     The handler is best-effort: directory faults are logged and swallowed
//     so a directory outage degrades to "no lockout tracking", never to
//     "no login possible".
//
// Signing key:
//   - The configured raw key is base64-encoded before it is used as the
//     HS256 secret. Downstream services verifying tokens on their own must
//     apply the same encoding; see NormalizeSigningKey.
package oauth
