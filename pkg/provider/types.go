package provider

// Request is a single prompt for the generation service.
type Request struct {
	// System is the optional system instruction.
	System string `json:"system,omitempty"`

	// Prompt is the user message.
	Prompt string `json:"prompt"`

	// Model overrides the generator's configured model.
	Model string `json:"model,omitempty"`

	// Temperature overrides the configured sampling temperature.
	Temperature *float32 `json:"temperature,omitempty"`

	// MaxTokens caps the completion length; zero uses the configured value.
	MaxTokens int `json:"max_tokens,omitempty"`

	// JSON asks the backend for a JSON object response when it supports it.
	JSON bool `json:"json,omitempty"`
}

// Response is the completion returned by a Generator.
type Response struct {
	Text  string `json:"text"`
	Model string `json:"model,omitempty"`
	Usage Usage  `json:"usage"`
}

// Usage reports token consumption of one request.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}
