// Package instrumentation wires OpenTelemetry metrics, tracing and the tool
// audit log of the calbridge MCP server.
//
// # Metrics
//
// HTTP (streamable-http transport only):
//   - http_requests_total, http_request_duration_seconds
//
// Native calendar store:
//   - calendar_store_operations_total{store,operation,status}
//   - calendar_store_operation_duration_seconds
//   - calendar_store_mutations_total{store,operation,span}
//   - calendar_authorization_total{store,result}
//
// MCP tools:
//   - mcp_tool_invocations_total{tool,status[,calendar]}
//   - mcp_tool_duration_seconds
//
// The calendar label is only attached with METRICS_DETAILED_LABELS=true.
//
// # Tracing
//
// Tool calls open tool.<name> server spans, store calls open
// store.<store>.<operation> client spans. Tracing is off unless
// TRACING_EXPORTER is otlp or stdout.
//
// # Resource
//
// Besides service.name, service.version and service.instance.id every
// export carries calbridge.store and, for CalDAV, calbridge.account.hash.
//
// # Configuration
//
//   - INSTRUMENTATION_ENABLED (default true)
//   - METRICS_EXPORTER: prometheus, otlp, stdout (default prometheus)
//   - TRACING_EXPORTER: otlp, stdout, none (default none)
//   - OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_EXPORTER_OTLP_INSECURE
//   - OTEL_TRACES_SAMPLER_ARG (default 0.1)
//   - OTEL_SERVICE_NAME (default calbridge)
//   - AUDIT_LOGGING_ENABLED, AUDIT_LOGGING_INCLUDE_PII
//
// # Example
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(context.Background())
//
//	provider.Metrics().RecordToolInvocation(ctx, "calendar_list_events", instrumentation.StatusSuccess, "", time.Since(start))
package instrumentation
