package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

// ExecuteRequest is the body of POST /execute on a sandbox server.
type ExecuteRequest struct {
	Code           string `json:"code"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// TimeoutSeconds rounds a timeout up to whole seconds for the wire.
func TimeoutSeconds(timeout time.Duration) int {
	if timeout <= 0 {
		return 0
	}
	return int(math.Ceil(timeout.Seconds()))
}

// ResponseMargin is added to an execution timeout to get the deadline for
// the whole exchange with a sandbox server: process teardown, output
// draining and the round trip.
const ResponseMargin = 30 * time.Second

// Client runs code on a remote sandbox server. It satisfies Runner: any
// failure to reach the server or to understand its answer is reported as
// a spawn failure, never as an error.
type Client struct {
	baseURL    string
	httpClient *http.Client
	margin     time.Duration
}

var _ Runner = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.httpClient = c }
}

// WithResponseMargin replaces ResponseMargin for this client.
func WithResponseMargin(d time.Duration) ClientOption {
	return func(cl *Client) { cl.margin = d }
}

// NewClient creates a client for the sandbox server at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{},
		margin:     ResponseMargin,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute sends code to the server and returns its result. The server
// enforces the execution timeout; the request itself is bounded by the
// timeout plus the response margin so a hung server reads as a spawn failure.
func (c *Client) Execute(ctx context.Context, code string, timeout time.Duration) *Result {
	start := time.Now()
	limit := timeout
	if limit <= 0 {
		limit = DefaultTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, limit+c.margin)
	defer cancel()

	r, err := c.execute(reqCtx, code, timeout)
	if err != nil {
		// Cancellation reads the same as with a local Executor; the server
		// kills the process when the connection goes away.
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(ctxErr, context.DeadlineExceeded) {
			return CancelledResult(ctxErr, time.Since(start))
		}
		return spawnFailure(err, time.Since(start))
	}
	return r
}

func (c *Client) execute(ctx context.Context, code string, timeout time.Duration) (*Result, error) {
	body, err := json.Marshal(ExecuteRequest{Code: code, TimeoutSeconds: TimeoutSeconds(timeout)})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/execute", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sandbox request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("sandbox at capacity (HTTP 429)")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sandbox returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var result Result
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	switch result.ExitReason {
	case ExitSuccess, ExitNonzero, ExitTimeout, ExitSpawnFailure:
	default:
		return nil, fmt.Errorf("decode response: unknown exit reason %q", result.ExitReason)
	}
	// Rebuild derived fields rather than trusting the server's.
	result.Failed = result.ExitReason != ExitSuccess
	result.CombinedLog = CombinedLog(result.Stdout, result.Stderr)
	return &result, nil
}
