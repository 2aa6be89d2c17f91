// Package transport provides the HTTP middleware chain and JSON error
// helpers shared by the ormodeler servers.
//
// Built-in middleware provides panic recovery, request ID assignment
// (X-Request-ID), and structured access logging via log/slog. Errors are
// written as {"error": {...}} bodies with a status derived from the
// api.ErrorType.
//
// The route handlers live in pkg/transport/http.
package transport
