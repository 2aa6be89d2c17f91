// Package api defines the wire types of the ormodeler HTTP surface.
//
// Core types:
//   - [NormalizeRequest], [RenderRequest], [FormulateRequest], [CodeRequest]
//     and [ExecutionRequest] with their responses
//   - [APIError]: Structured error with type, code, param, and message
//
// Validation helpers return an *APIError describing the first problem
// found, or nil. The package performs no I/O.
package api
