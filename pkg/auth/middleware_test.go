package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/rhuss/ormodeler/pkg/api"
	"github.com/rhuss/ormodeler/pkg/observability"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serve(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("POST", path, nil))
	return rec
}

func TestMiddleware_BypassEndpoint(t *testing.T) {
	chain := &AuthChain{DefaultDecision: No}
	handler := Middleware(chain, nil, DefaultBypassEndpoints)(okHandler())

	for _, path := range []string{"/healthz", "/metrics"} {
		if rec := serve(handler, path); rec.Code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", path, rec.Code)
		}
	}
}

func TestMiddleware_NoAuth_Rejects(t *testing.T) {
	chain := &AuthChain{DefaultDecision: No}
	handler := Middleware(chain, nil, DefaultBypassEndpoints)(okHandler())

	rec := serve(handler, "/v1/formulate")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	var resp api.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error.Type != api.ErrorTypeInvalidRequest || resp.Error.Message != "authentication required" {
		t.Errorf("error = %+v", resp.Error)
	}
}

func TestMiddleware_EmptySubject(t *testing.T) {
	chain := &AuthChain{
		Authenticators: []Authenticator{
			&mockAuthn{result: AuthResult{Decision: Yes, Identity: &Identity{}}},
		},
	}
	handler := Middleware(chain, nil, nil)(okHandler())

	if rec := serve(handler, "/v1/render"); rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestMiddleware_ValidAuth_Passes(t *testing.T) {
	chain := &AuthChain{
		Authenticators: []Authenticator{
			&mockAuthn{result: AuthResult{Decision: Yes, Identity: &Identity{Subject: "alice"}}},
		},
		DefaultDecision: No,
	}

	var got *Identity
	handler := Middleware(chain, nil, DefaultBypassEndpoints)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	if rec := serve(handler, "/v1/formulate"); rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if got == nil || got.Subject != "alice" {
		t.Errorf("identity in context = %+v, want alice", got)
	}
}

func TestMiddleware_RateLimit_Exceeded(t *testing.T) {
	chain := &AuthChain{
		Authenticators: []Authenticator{
			&mockAuthn{result: AuthResult{
				Decision: Yes,
				Identity: &Identity{Subject: "alice", ServiceTier: "limited"},
			}},
		},
		DefaultDecision: No,
	}
	limiter := NewSubjectLimiter(100, map[string]int{"limited": 2})
	handler := Middleware(chain, limiter, DefaultBypassEndpoints)(okHandler())

	before := counterValue(t, observability.RateLimitRejectedTotal)

	for i := 0; i < 2; i++ {
		if rec := serve(handler, "/v1/executions"); rec.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}
	if rec := serve(handler, "/v1/executions"); rec.Code != http.StatusTooManyRequests {
		t.Errorf("rate limited request: status = %d, want 429", rec.Code)
	}

	if delta := counterValue(t, observability.RateLimitRejectedTotal) - before; delta != 1 {
		t.Errorf("rejected counter delta = %f, want 1", delta)
	}
}

func TestMiddleware_NoLimiter_AllAllowed(t *testing.T) {
	chain := &AuthChain{DefaultDecision: Yes}
	handler := Middleware(chain, nil, DefaultBypassEndpoints)(okHandler())

	for i := 0; i < 100; i++ {
		if rec := serve(handler, "/v1/normalize"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		t.Fatalf("writing counter metric: %v", err)
	}
	return m.GetCounter().GetValue()
}
