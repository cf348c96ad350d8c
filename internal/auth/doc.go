// Package auth protects the HTTP API with a bearer token.
//
// Two modes are supported:
//   - "none": no authentication (default)
//   - "token": every non-public request must carry "Authorization: Bearer <token>"
//
// Only a bcrypt hash of the token is configured, so the plaintext never sits in
// the environment of the server:
//
//	AUTH_MODE=token
//	AUTH_API_TOKEN_HASH=$2a$12$...   # printed by `mimeroute token`
//
// Repeated failures from one client IP are locked out by RateLimiter.
package auth
