// Package jwt provides a JWT authenticator that validates HMAC-signed
// bearer tokens against a shared secret.
//
// Issuer and audience are checked when configured; the subject, service
// tier and scopes are read from configurable claims.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/rhuss/ormodeler/pkg/auth"
)

// Config holds the JWT authenticator configuration.
type Config struct {
	// Secret is the HMAC signing key (required).
	Secret []byte

	// Issuer is the expected JWT issuer (iss claim). If empty, issuer is not validated.
	Issuer string

	// Audience is the expected JWT audience (aud claim). If empty, audience is not validated.
	Audience string

	// UserClaim is the JWT claim used as the identity subject. Default: "sub".
	UserClaim string

	// TierClaim is the JWT claim used as the service tier. Default: "tier".
	TierClaim string

	// ScopesClaim is the JWT claim used for authorization scopes. Default: "scope".
	// The value can be a space-separated string or a JSON array.
	ScopesClaim string
}

func (c *Config) applyDefaults() {
	if c.UserClaim == "" {
		c.UserClaim = "sub"
	}
	if c.TierClaim == "" {
		c.TierClaim = "tier"
	}
	if c.ScopesClaim == "" {
		c.ScopesClaim = "scope"
	}
}

// Authenticator validates HMAC-signed JWT bearer tokens.
type Authenticator struct {
	config Config
	parser *jwtlib.Parser
}

// New creates a JWT authenticator. It fails when no secret is configured.
func New(cfg Config) (*Authenticator, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("jwt: secret is required")
	}
	cfg.applyDefaults()

	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwtlib.WithAudience(cfg.Audience))
	}

	return &Authenticator{config: cfg, parser: jwtlib.NewParser(opts...)}, nil
}

// Authenticate validates the bearer token of r.
//
// Decision outcomes:
//   - Abstain: no Authorization header or not a Bearer scheme
//   - No: bearer token present but invalid (expired, wrong issuer, bad signature, etc.)
//   - Yes: valid JWT with populated Identity
func (a *Authenticator) Authenticate(_ context.Context, r *http.Request) auth.AuthResult {
	tokenStr, ok := auth.BearerToken(r)
	if !ok {
		return auth.AuthResult{Decision: auth.Abstain}
	}
	if tokenStr == "" {
		return auth.AuthResult{Decision: auth.No, Err: errors.New("empty bearer token")}
	}

	claims := jwtlib.MapClaims{}
	_, err := a.parser.ParseWithClaims(tokenStr, claims, func(*jwtlib.Token) (interface{}, error) {
		return a.config.Secret, nil
	})
	if err != nil {
		slog.Debug("JWT validation failed", "error", err)
		return auth.AuthResult{Decision: auth.No, Err: fmt.Errorf("invalid JWT: %w", err)}
	}

	subject := claimString(claims, a.config.UserClaim)
	if subject == "" {
		return auth.AuthResult{
			Decision: auth.No,
			Err:      fmt.Errorf("JWT missing %q claim", a.config.UserClaim),
		}
	}

	identity := &auth.Identity{
		Subject:     subject,
		ServiceTier: claimString(claims, a.config.TierClaim),
		Scopes:      extractScopes(claims, a.config.ScopesClaim),
	}
	if identity.ServiceTier == "" {
		identity.ServiceTier = "default"
	}

	return auth.AuthResult{Decision: auth.Yes, Identity: identity}
}

// claimString returns a string claim, or "" when missing or not a string.
func claimString(claims jwtlib.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}

// extractScopes reads a space-separated string or a JSON array of strings.
func extractScopes(claims jwtlib.MapClaims, key string) []string {
	switch v := claims[key].(type) {
	case string:
		if parts := strings.Fields(v); len(parts) > 0 {
			return parts
		}
	case []interface{}:
		var scopes []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				scopes = append(scopes, s)
			}
		}
		return scopes
	}
	return nil
}
