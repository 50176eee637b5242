// Package server holds the process-wide state of the calbridge MCP server
// and the HTTP plumbing around it.
//
// ServerContext carries the single authorized calendar bridge that every tool
// call goes through, the store identity, the search defaults and the
// telemetry sinks.
//
// HTTPServer serves the MCP protocol over streamable HTTP (/mcp) or SSE
// (/sse, /message) next to the health endpoints (/healthz, /readyz,
// /healthz/detailed). MetricsServer serves /metrics on a separate port.
package server
