// Package stores provides the Redis-backed records that must be shared by
// every engine instance: pending OAuth sign-in state and the access-token
// revocation index.
//
// # Design
//
// OAuth state is a versioned binary record written with SET NX and a TTL and
// consumed with GETDEL, so a state value is honoured at most once on any
// instance. Revoked token ids and the per-account "valid since" marker carry
// a TTL equal to the engine's revocation TTL. Positive revocation hits may be
// cached in process through an expirable LRU; misses are never cached.
//
// This package does not decide whether a request is authorized. The flows in
// internal/flows combine these lookups with token claims.
package stores
