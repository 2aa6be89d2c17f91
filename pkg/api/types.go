package api

import (
	"github.com/rhuss/ormodeler/pkg/model"
	"github.com/rhuss/ormodeler/pkg/sandbox"
)

// Render formats accepted by RenderRequest.
const (
	FormatLaTeX   = "latex"
	FormatOutline = "outline"
)

// NormalizeRequest is the body of POST /v1/normalize.
type NormalizeRequest struct {
	// Text is the raw output of the generation service.
	Text string `json:"text"`
}

// NormalizeResponse carries the normalized model. Parse failures are
// reported inside the model (error and raw_output), not as an HTTP error.
type NormalizeResponse struct {
	Model *model.Model `json:"model"`
}

// RenderRequest is the body of POST /v1/render.
type RenderRequest struct {
	Model *model.Model `json:"model"`
	// Format selects "latex" or "outline"; empty renders both.
	Format string `json:"format,omitempty"`
}

// RenderResponse holds the requested renderings.
type RenderResponse struct {
	LaTeX   string `json:"latex,omitempty"`
	Outline string `json:"outline,omitempty"`
}

// FormulateRequest is the body of POST /v1/formulate.
type FormulateRequest struct {
	Statement string `json:"statement"`
	// Refine rephrases the statement before formulating it.
	Refine bool `json:"refine,omitempty"`
}

// FormulateResponse is the result of a formulation.
type FormulateResponse struct {
	Statement string       `json:"statement"`
	Refined   string       `json:"refined_statement,omitempty"`
	Model     *model.Model `json:"model"`
	LaTeX     string       `json:"latex"`
	Outline   string       `json:"outline"`
}

// CodeRequest is the body of POST /v1/code. Either Outline or Model must
// be set; a model is rendered to its outline first.
type CodeRequest struct {
	Outline string       `json:"outline,omitempty"`
	Model   *model.Model `json:"model,omitempty"`
}

// CodeResponse carries generated solver code with fences removed.
type CodeResponse struct {
	Code string `json:"code"`
}

// ExecutionRequest is the body of POST /v1/executions.
type ExecutionRequest struct {
	// ID optionally names the execution so that it can be cancelled with
	// DELETE /v1/executions/{id} while it runs. Generated when empty.
	ID             string `json:"id,omitempty"`
	Code           string `json:"code"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

// ExecutionResponse wraps a sandbox result with an identifier for log
// correlation. A failed run is still a 200 response.
type ExecutionResponse struct {
	ID     string          `json:"id"`
	Result *sandbox.Result `json:"result"`
}
