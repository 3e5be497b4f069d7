// Package jwt signs and parses the HS256 access and refresh tokens issued by
// the engine. Each kind has its own secret and lifetime, and the "typ" claim
// is checked on parse so a refresh token is never accepted as an access token.
package jwt
