// Package middleware adapts an authcore Engine to net/http.
//
// Guard verifies the bearer access token and puts the claims on the request
// context, where authcore.ClaimsFromContext finds them. ClientIP records the
// caller address that the Engine keys rate limits and audit events on.
// Authentication decisions stay in the Engine.
package middleware
