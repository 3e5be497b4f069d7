// Package rate implements the atomic fixed-window counter behind every
// request limit in the engine.
//
// # Window semantics
//
// A single Lua script runs INCR, sets PEXPIRE when the increment created the
// key, and returns the count with the remaining PTTL. Running both steps in one
// script keeps concurrent first hits from each starting their own window.
//
// Keys are "<prefix>:rl:<policy>:<key>".
//
// # Store failures
//
// When Redis cannot be reached the limiter fails open: the request is allowed,
// a warning is logged and the OnFailOpen hook fires so the gap shows up in
// metrics. Policy choices (which key, which ceiling) live in internal/limiters.
package rate
