package api

import (
	"fmt"
	"strings"
	"time"
)

// ValidationConfig holds configurable limits for request validation.
type ValidationConfig struct {
	MaxTextSize int
	MaxCodeSize int
	MaxTimeout  time.Duration
}

// DefaultValidationConfig returns a ValidationConfig with sensible defaults.
func DefaultValidationConfig() ValidationConfig {
	return ValidationConfig{
		MaxTextSize: 1 << 20,
		MaxCodeSize: 1 << 20,
		MaxTimeout:  10 * time.Minute,
	}
}

// ValidateNormalize checks a NormalizeRequest. Empty text is valid: the
// normalizer reports it inside the returned model.
func ValidateNormalize(req *NormalizeRequest, cfg ValidationConfig) *APIError {
	return checkSize("text", req.Text, cfg.MaxTextSize)
}

// ValidateRender checks a RenderRequest.
func ValidateRender(req *RenderRequest) *APIError {
	if req.Model == nil {
		return NewInvalidRequestError("model", "model is required")
	}
	switch req.Format {
	case "", FormatLaTeX, FormatOutline:
		return nil
	default:
		return NewInvalidRequestError("format",
			fmt.Sprintf("format must be %q or %q, got %q", FormatLaTeX, FormatOutline, req.Format))
	}
}

// ValidateFormulate checks a FormulateRequest.
func ValidateFormulate(req *FormulateRequest, cfg ValidationConfig) *APIError {
	if strings.TrimSpace(req.Statement) == "" {
		return NewInvalidRequestError("statement", "statement is required")
	}
	return checkSize("statement", req.Statement, cfg.MaxTextSize)
}

// ValidateCode checks a CodeRequest.
func ValidateCode(req *CodeRequest, cfg ValidationConfig) *APIError {
	if strings.TrimSpace(req.Outline) == "" && req.Model == nil {
		return NewInvalidRequestError("outline", "outline or model is required")
	}
	return checkSize("outline", req.Outline, cfg.MaxTextSize)
}

// ValidateExecution checks an ExecutionRequest.
func ValidateExecution(req *ExecutionRequest, cfg ValidationConfig) *APIError {
	if req.ID != "" && !ValidateExecutionID(req.ID) {
		return NewInvalidRequestError("id", "malformed execution ID")
	}
	if strings.TrimSpace(req.Code) == "" {
		return NewInvalidRequestError("code", "code is required")
	}
	if apiErr := checkSize("code", req.Code, cfg.MaxCodeSize); apiErr != nil {
		return apiErr
	}
	if req.TimeoutSeconds < 0 {
		return NewInvalidRequestError("timeout_seconds", "timeout_seconds must not be negative")
	}
	if cfg.MaxTimeout > 0 && time.Duration(req.TimeoutSeconds)*time.Second > cfg.MaxTimeout {
		return NewInvalidRequestError("timeout_seconds",
			fmt.Sprintf("timeout_seconds exceeds maximum of %d", int(cfg.MaxTimeout.Seconds())))
	}
	return nil
}

func checkSize(param, value string, limit int) *APIError {
	if limit > 0 && len(value) > limit {
		return NewInvalidRequestError(param,
			fmt.Sprintf("%s exceeds maximum size of %d bytes", param, limit))
	}
	return nil
}
