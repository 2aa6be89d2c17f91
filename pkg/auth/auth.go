package auth

import (
	"context"
	"errors"
	"net/http"
)

// AuthDecision represents the three possible outcomes of authentication.
type AuthDecision int

const (
	// Yes means credentials are valid. The chain stops and the identity is used.
	Yes AuthDecision = iota

	// No means credentials are present but invalid. The chain stops and the
	// request is rejected.
	No

	// Abstain means this authenticator cannot handle the credentials type.
	// The chain continues to the next authenticator.
	Abstain
)

// AuthResult carries the outcome of an authentication attempt.
type AuthResult struct {
	Decision AuthDecision
	Identity *Identity // populated only when Decision == Yes
	Err      error     // populated only when Decision == No
}

// Identity represents an authenticated caller.
type Identity struct {
	// Subject is the unique identifier (required, non-empty). Rate limits
	// are tracked per subject.
	Subject string

	// ServiceTier selects the rate limit applied to the subject.
	ServiceTier string

	// Scopes lists the authorization scopes granted.
	Scopes []string
}

// Anonymous is the identity used when every authenticator abstains and the
// chain accepts by default.
func Anonymous() *Identity {
	return &Identity{Subject: "anonymous", ServiceTier: "default"}
}

// Authenticator examines request credentials and returns a three-outcome vote.
type Authenticator interface {
	Authenticate(ctx context.Context, r *http.Request) AuthResult
}

// Sentinel errors.
var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrTooManyRequests = errors.New("rate limit exceeded")
)

// AuthChain evaluates authenticators in order using three-outcome voting.
type AuthChain struct {
	// Authenticators are evaluated left to right.
	Authenticators []Authenticator

	// DefaultDecision is used when all authenticators abstain.
	// Yes admits the caller as Anonymous; No rejects the request.
	DefaultDecision AuthDecision
}

// Authenticate runs the chain. Stops on the first Yes or No.
// If all abstain, returns the default decision.
func (c *AuthChain) Authenticate(ctx context.Context, r *http.Request) AuthResult {
	for _, authn := range c.Authenticators {
		result := authn.Authenticate(ctx, r)
		if result.Decision != Abstain {
			return result
		}
	}

	if c.DefaultDecision == Yes {
		return AuthResult{Decision: Yes, Identity: Anonymous()}
	}

	return AuthResult{
		Decision: No,
		Err:      ErrUnauthenticated,
	}
}

// BearerToken extracts the token of an "Authorization: Bearer" header.
// ok is false when the header is missing or uses another scheme, in which
// case authenticators should abstain.
func BearerToken(r *http.Request) (token string, ok bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) < len(prefix) || header[:len(prefix)] != prefix {
		return "", false
	}
	return header[len(prefix):], true
}
