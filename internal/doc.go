// Package internal holds helpers private to authcore: opaque token and
// one-time code generation, plus token hashing.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: pure-function orchestrators behind every Engine operation
//   - limiters: named rate policies (login, register, reset, 2FA, ...)
//   - metrics: lock-free counters and the verification latency histogram
//   - rate: the Redis fixed-window counter
//   - stores: Redis-backed OAuth state and revocation index
//   - totp: TOTP secrets and backup codes
//
// Nothing here appears in the public authcore API except through aliases in
// the root package.
package internal
