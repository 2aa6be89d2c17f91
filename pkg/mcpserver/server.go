package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/tidwall/gjson"

	"github.com/rhuss/ormodeler/pkg/api"
	"github.com/rhuss/ormodeler/pkg/debug"
	"github.com/rhuss/ormodeler/pkg/model"
	"github.com/rhuss/ormodeler/pkg/render"
	"github.com/rhuss/ormodeler/pkg/sandbox"
)

// Tool names.
const (
	ToolNormalize = "normalize_model"
	ToolRender    = "render_model"
	ToolExecute   = "execute_code"
)

// Service is the backend of the tools. *engine.Engine implements it.
type Service interface {
	Normalize(raw string) *model.Model
	Execute(ctx context.Context, code string, timeout time.Duration) (*sandbox.Result, error)
}

// Options configures the MCP server.
type Options struct {
	Name    string
	Version string

	// MaxTimeout caps the timeout execute_code accepts. Zero means no cap.
	MaxTimeout time.Duration
}

// NormalizeInput is the argument of normalize_model.
type NormalizeInput struct {
	Text string `json:"text" jsonschema:"raw output of a model formulation request, JSON possibly wrapped in markdown fences"`
}

// ExecuteInput is the argument of execute_code.
type ExecuteInput struct {
	Code           string `json:"code" jsonschema:"Python solver code to run"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty" jsonschema:"wall-clock limit in seconds, server default when omitted"`
}

// renderInputSchema is declared by hand: the model argument keeps its key
// order, so it is read from the raw arguments instead of a Go map.
var renderInputSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"model": map[string]any{
			"type":        "object",
			"description": "model representation with sets, parameters, variables, objective, constraints and data",
		},
		"format": map[string]any{
			"type":        "string",
			"enum":        []string{api.FormatLaTeX, api.FormatOutline},
			"description": "rendering to produce, both when omitted",
		},
	},
	"required": []string{"model"},
}

// New creates an MCP server with the modeling tools registered.
func New(svc Service, opts Options) *mcp.Server {
	if opts.Name == "" {
		opts.Name = "ormodeler"
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	server := mcp.NewServer(&mcp.Implementation{Name: opts.Name, Version: opts.Version}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolNormalize,
		Description: "Parse raw model-generation output into a structured optimization model. Parse failures are reported in the model's error field.",
	}, func(_ context.Context, _ *mcp.CallToolRequest, in NormalizeInput) (*mcp.CallToolResult, any, error) {
		m := svc.Normalize(in.Text)
		debug.Log("mcp", "normalize_model", "parse_error", m.HasError())
		return nil, m, nil
	})

	server.AddTool(&mcp.Tool{
		Name:        ToolRender,
		Description: "Render a structured optimization model as a LaTeX document and/or a plain-text outline.",
		InputSchema: renderInputSchema,
	}, renderTool)

	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolExecute,
		Description: "Run Python solver code in the sandbox with a wall-clock limit and return its output streams and exit classification.",
	}, func(ctx context.Context, _ *mcp.CallToolRequest, in ExecuteInput) (*mcp.CallToolResult, *sandbox.Result, error) {
		if in.Code == "" {
			return nil, nil, fmt.Errorf("code is required")
		}
		if in.TimeoutSeconds < 0 {
			return nil, nil, fmt.Errorf("timeout_seconds must not be negative")
		}
		timeout := time.Duration(in.TimeoutSeconds) * time.Second
		if opts.MaxTimeout > 0 && timeout > opts.MaxTimeout {
			timeout = opts.MaxTimeout
		}

		result, err := svc.Execute(ctx, in.Code, timeout)
		if err != nil {
			return nil, nil, err
		}
		debug.Log("mcp", "execute_code", "exit_reason", result.ExitReason)

		if !result.Failed {
			return nil, result, nil
		}
		return &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{
				Text: fmt.Sprintf("execution failed (%s): %s", result.ExitReason, result.Diagnostic),
			}},
		}, result, nil
	})

	return server
}

// renderTool handles render_model. Invalid arguments are tool errors so the
// calling model can correct them.
func renderTool(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.Params.Arguments
	if !json.Valid(args) {
		return toolError("arguments must be a JSON object"), nil
	}

	raw := gjson.GetBytes(args, "model")
	if !raw.IsObject() {
		return toolError("model must be an object"), nil
	}
	m, err := model.Parse(raw.Raw)
	if err != nil {
		return toolError("invalid model: " + err.Error()), nil
	}

	format := gjson.GetBytes(args, "format").String()
	if apiErr := api.ValidateRender(&api.RenderRequest{Model: m, Format: format}); apiErr != nil {
		return toolError(apiErr.Message), nil
	}

	var content []mcp.Content
	if format == "" || format == api.FormatLaTeX {
		content = append(content, &mcp.TextContent{Text: render.Document(m)})
	}
	if format == "" || format == api.FormatOutline {
		content = append(content, &mcp.TextContent{Text: render.Outline(m)})
	}
	return &mcp.CallToolResult{Content: content}, nil
}

func toolError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
	}
}

// Handler serves server over the streamable HTTP transport.
func Handler(server *mcp.Server) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return server
	}, nil)
}
