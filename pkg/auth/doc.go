// Package auth provides pluggable bearer-token authentication and per-subject
// rate limiting for the ormodeler HTTP API.
//
// Authentication uses a chain-of-responsibility pattern with three-outcome
// voting: each authenticator returns Yes (identity found), No (credentials
// invalid), or Abstain (can't handle). A configurable default voter decides
// when all authenticators abstain.
//
// Auth is implemented as HTTP middleware, keeping it decoupled from engine
// logic.
package auth
