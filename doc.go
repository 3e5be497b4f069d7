// Package authcore is an authentication engine: HS256 access tokens paired
// with stored refresh tokens, TOTP second factor with backup codes, email
// verification, password reset and OpenID Connect sign-in.
//
// Engine methods are safe to call from multiple goroutines after
// [Builder.Build]. Accounts, refresh tokens and one-time secrets live in a
// [store.Store]; rate-limit counters, the revocation index and pending
// sign-in state live in Redis so every instance sees them.
//
// # Errors
//
// Every failure returned by an Engine method matches one of the Err*
// values under errors.Is. Unexpected failures are logged and returned as
// ErrInternal; [Public] gives the form that is safe to show a client.
//
// # What this package must NOT do
//
//   - Expose Redis clients or record encodings in its public API.
//   - Import packages that import authcore (middleware, exporters).
package authcore
