// Package openai implements provider.Generator on top of an OpenAI-compatible
// Chat Completions endpoint (OpenAI, vLLM, LiteLLM, Ollama and others).
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/rhuss/ormodeler/pkg/api"
	"github.com/rhuss/ormodeler/pkg/debug"
	"github.com/rhuss/ormodeler/pkg/observability"
	"github.com/rhuss/ormodeler/pkg/provider"
)

const providerName = "openai"

// Config holds the backend connection settings.
type Config struct {
	// BaseURL of the API including the version prefix, e.g.
	// "http://localhost:8000/v1". Empty uses api.openai.com.
	BaseURL string

	APIKey string

	// Model is used when a request does not name one.
	Model string

	Temperature float32
	MaxTokens   int

	// Timeout bounds a single request. Default: 120s.
	Timeout time.Duration

	// HTTPClient replaces the default client; Timeout is ignored when set.
	HTTPClient *http.Client
}

// Generator sends prompts to a Chat Completions backend.
type Generator struct {
	client *goopenai.Client
	cfg    Config
}

var _ provider.Generator = (*Generator)(nil)

// New creates a Generator for cfg.
func New(cfg Config) *Generator {
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	} else {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Generator{
		client: goopenai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
	}
}

// Name implements provider.Generator.
func (g *Generator) Name() string { return providerName }

// Generate sends req as a system plus user message pair and returns the
// first choice. Backend failures are returned as *api.APIError.
func (g *Generator) Generate(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	chatReq := g.chatRequest(req)

	debug.Log("provider", "chat completion request",
		"model", chatReq.Model,
		"json", req.JSON,
		"prompt", debug.Truncate(req.Prompt, 200),
	)

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, chatReq)
	if err != nil && chatReq.ResponseFormat != nil && unsupportedResponseFormat(err) {
		debug.Log("provider", "backend rejected response_format, retrying without it", "model", chatReq.Model)
		chatReq.ResponseFormat = nil
		resp, err = g.client.CreateChatCompletion(ctx, chatReq)
	}
	elapsed := time.Since(start)

	observability.ProviderLatency.WithLabelValues(providerName, chatReq.Model).Observe(elapsed.Seconds())

	if err != nil {
		apiErr := mapError(err)
		observability.ProviderRequestsTotal.WithLabelValues(providerName, chatReq.Model, statusLabel(err)).Inc()
		slog.Warn("provider request failed",
			"model", chatReq.Model,
			"error", err,
			"duration_ms", elapsed.Milliseconds(),
		)
		return nil, apiErr
	}
	observability.ProviderRequestsTotal.WithLabelValues(providerName, chatReq.Model, "200").Inc()
	observability.ProviderTokensTotal.WithLabelValues(providerName, chatReq.Model, "input").Add(float64(resp.Usage.PromptTokens))
	observability.ProviderTokensTotal.WithLabelValues(providerName, chatReq.Model, "output").Add(float64(resp.Usage.CompletionTokens))

	if len(resp.Choices) == 0 {
		return nil, api.NewModelError("backend returned no choices")
	}

	text := resp.Choices[0].Message.Content
	debug.Log("provider", "chat completion response",
		"model", resp.Model,
		"finish_reason", resp.Choices[0].FinishReason,
		"input_tokens", resp.Usage.PromptTokens,
		"output_tokens", resp.Usage.CompletionTokens,
		"duration_ms", elapsed.Milliseconds(),
	)
	debug.Trace("provider", "completion text", "text", text)

	model := resp.Model
	if model == "" {
		model = chatReq.Model
	}
	return &provider.Response{
		Text:  text,
		Model: model,
		Usage: provider.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

func (g *Generator) chatRequest(req *provider.Request) goopenai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = g.cfg.Model
	}
	temperature := g.cfg.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := g.cfg.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	var messages []goopenai.ChatCompletionMessage
	if req.System != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser, Content: req.Prompt})

	chatReq := goopenai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
	if req.JSON {
		chatReq.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return chatReq
}

// mapError converts a go-openai error into an *api.APIError. Upstream rate
// limiting stays distinguishable; credential problems are server errors
// because the caller cannot fix them; everything else is a model error.
func mapError(err error) *api.APIError {
	status, message := httpStatus(err)
	if message == "" {
		message = err.Error()
	}

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return api.NewModelError("backend request cancelled: " + err.Error())
	case status == http.StatusTooManyRequests:
		return api.NewTooManyRequestsError("backend rate limit exceeded: " + message)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return api.NewServerError("backend authentication failed: " + message)
	case status != 0:
		return api.NewModelError(fmt.Sprintf("backend error (HTTP %d): %s", status, message))
	default:
		return api.NewModelError("backend connection error: " + message)
	}
}

// httpStatus extracts the HTTP status code and backend message, if any.
func httpStatus(err error) (int, string) {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode, apiErr.Message
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode, strings.TrimSpace(string(reqErr.Body))
	}
	return 0, ""
}

func statusLabel(err error) string {
	if status, _ := httpStatus(err); status != 0 {
		return strconv.Itoa(status)
	}
	return "error"
}

// unsupportedResponseFormat reports whether the backend refused the JSON
// response format rather than the request itself.
func unsupportedResponseFormat(err error) bool {
	status, message := httpStatus(err)
	return status == http.StatusBadRequest && strings.Contains(strings.ToLower(message), "response_format")
}
