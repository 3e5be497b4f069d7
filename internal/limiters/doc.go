// Package limiters binds the engine's named request policies to the
// internal/rate fixed-window counter.
//
// # Policies
//
//   - register: per client IP
//   - login: attempts per username and IP, counted before the password check
//     and cleared on success
//   - forgot-password: per email
//   - reset-password: per reset token hash
//   - password-change, email-verification-send, refresh, 2fa: per account
//
// A nil [Set] allows everything. Rejections are returned as [*ExceededError],
// which unwraps to [ErrExceeded].
package limiters
