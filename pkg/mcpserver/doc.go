// Package mcpserver exposes the modeling operations as Model Context
// Protocol tools: normalize_model, render_model and execute_code.
//
// The server is mounted next to the HTTP API over the streamable HTTP
// transport, so MCP clients can drive the same engine the REST routes use.
package mcpserver
