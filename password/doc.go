// Package password implements credential hashing with Argon2id.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Hasher] also verifies bcrypt hashes ($2a$, $2b$, $2y$) and reports them,
// along with Argon2id hashes made with weaker parameters, through
// [Hasher.NeedsUpgrade] so the caller can rehash on the next successful login.
//
// # Boundaries
//
// This package owns hashing and verification only. Password shape rules are
// enforced by the engine flows. It never logs plaintext or stores hashes.
package password
