// Package normalize extracts a structured model from text returned by a
// text-generation backend.
//
// The backend is asked for JSON but is not bound to produce it. Its answer
// may be wrapped in code fences, surrounded by prose, carry LaTeX commands
// with unescaped backslashes, or escape currency symbols inconsistently.
// [Normalizer.Normalize] runs an ordered list of recovery strategies until
// one yields a model, and always returns a value: when nothing can be
// parsed the result is a model with Error set, carrying whatever structure
// could be salvaged and the raw text for diagnostics.
package normalize
