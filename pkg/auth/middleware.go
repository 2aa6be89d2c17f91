package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/rhuss/ormodeler/pkg/api"
	"github.com/rhuss/ormodeler/pkg/debug"
	"github.com/rhuss/ormodeler/pkg/observability"
	"github.com/rhuss/ormodeler/pkg/transport"
)

// Middleware creates HTTP middleware from an AuthChain and optional RateLimiter.
// It checks the bypass list, runs authentication, enforces rate limits and
// stores the identity in the request context.
func Middleware(chain *AuthChain, limiter RateLimiter, bypassEndpoints []string) func(http.Handler) http.Handler {
	bypass := make(map[string]bool, len(bypassEndpoints))
	for _, ep := range bypassEndpoints {
		bypass[ep] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if bypass[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			result := chain.Authenticate(r.Context(), r)

			if result.Decision != Yes || result.Identity == nil {
				slog.Warn("authentication failed",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"error", result.Err,
				)
				transport.WriteErrorResponse(w,
					api.NewInvalidRequestError("authorization", "authentication required"),
					http.StatusUnauthorized,
				)
				return
			}

			if result.Identity.Subject == "" {
				slog.Error("authenticator returned identity with empty subject")
				transport.WriteAPIError(w, api.NewServerError("internal authentication error"))
				return
			}

			debug.Log("auth", "authenticated",
				"subject", result.Identity.Subject,
				"path", r.URL.Path,
			)

			if limiter != nil {
				if err := limiter.Allow(r.Context(), result.Identity); err != nil {
					slog.Warn("rate limit exceeded",
						"subject", result.Identity.Subject,
						"tier", result.Identity.ServiceTier,
					)
					observability.RateLimitRejectedTotal.Inc()
					transport.WriteAPIError(w, api.NewTooManyRequestsError("rate limit exceeded"))
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(SetIdentity(r.Context(), result.Identity)))
		})
	}
}

// DefaultBypassEndpoints lists endpoints that skip authentication.
var DefaultBypassEndpoints = []string{"/healthz", "/metrics"}

type identityKey struct{}

// SetIdentity stores the authenticated identity in the context.
func SetIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity stored by the middleware, or nil.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	return id
}
