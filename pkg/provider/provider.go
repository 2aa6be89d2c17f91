package provider

import "context"

// Generator abstracts the text-generation service. Implementations must be
// safe for concurrent use by multiple goroutines.
type Generator interface {
	// Name returns the provider identifier (e.g., "openai").
	Name() string

	// Generate returns the completion for a single prompt.
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// GeneratorFunc adapts an ordinary function to the Generator interface.
// Tests use it for deterministic stubs.
type GeneratorFunc func(ctx context.Context, req *Request) (*Response, error)

// Name implements Generator.
func (f GeneratorFunc) Name() string { return "func" }

// Generate calls f(ctx, req).
func (f GeneratorFunc) Generate(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Text returns a GeneratorFunc that always answers with text. Handy for
// tests and for replaying recorded output.
func Text(text string) GeneratorFunc {
	return func(ctx context.Context, req *Request) (*Response, error) {
		return &Response{Text: text}, nil
	}
}
