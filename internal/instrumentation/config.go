package instrumentation

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

// Config holds the OpenTelemetry settings of the MCP server
type Config struct {
	// ServiceName defaults to calbridge
	ServiceName    string
	ServiceVersion string

	// ServiceInstanceID defaults to the hostname
	ServiceInstanceID string

	// Enabled turns metrics and tracing on. INSTRUMENTATION_ENABLED=false
	// disables both.
	Enabled bool

	// MetricsExporter is one of prometheus (default), otlp, stdout
	MetricsExporter string

	// TracingExporter is one of otlp, stdout, none (default)
	TracingExporter string

	// OTLPEndpoint is host:port without scheme, e.g. localhost:4318
	OTLPEndpoint string

	// OTLPInsecure disables TLS towards the collector. Development only.
	OTLPInsecure bool

	// TraceSamplingRate is between 0.0 and 1.0, default 0.1
	TraceSamplingRate float64

	PrometheusEndpoint string

	// DetailedLabels adds the calendar name to tool metrics. Calendar names
	// are user data, so this is off by default.
	DetailedLabels bool

	AuditLogging AuditLoggingConfig

	// Store and Account describe the calendar store in the telemetry
	// resource. Account is hashed before export.
	Store   string
	Account string

	// StdoutWriter receives the output of the stdout exporters; nil means
	// os.Stdout
	StdoutWriter io.Writer
}

// AuditLoggingConfig controls the tool audit log
type AuditLoggingConfig struct {
	Enabled bool

	// IncludePII logs the CalDAV account name in clear instead of a hash
	IncludePII bool

	LogLevel string
}

// DefaultConfig reads the configuration from the environment
func DefaultConfig() Config {
	return Config{
		ServiceName:        getEnvOrDefault("OTEL_SERVICE_NAME", "calbridge"),
		ServiceVersion:     "unknown",
		ServiceInstanceID:  getEnvOrDefault("OTEL_SERVICE_INSTANCE_ID", ""),
		Enabled:            getEnvBoolOrDefault("INSTRUMENTATION_ENABLED", true),
		MetricsExporter:    getEnvOrDefault("METRICS_EXPORTER", ExporterPrometheus),
		TracingExporter:    getEnvOrDefault("TRACING_EXPORTER", ExporterNone),
		OTLPEndpoint:       getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTLPInsecure:       getEnvBoolOrDefault("OTEL_EXPORTER_OTLP_INSECURE", false),
		TraceSamplingRate:  getEnvFloatOrDefault("OTEL_TRACES_SAMPLER_ARG", 0.1),
		PrometheusEndpoint: getEnvOrDefault("PROMETHEUS_ENDPOINT", "/metrics"),
		DetailedLabels:     getEnvBoolOrDefault("METRICS_DETAILED_LABELS", false),
		AuditLogging: AuditLoggingConfig{
			Enabled:    getEnvBoolOrDefault("AUDIT_LOGGING_ENABLED", true),
			IncludePII: getEnvBoolOrDefault("AUDIT_LOGGING_INCLUDE_PII", false),
			LogLevel:   getEnvOrDefault("AUDIT_LOGGING_LEVEL", "info"),
		},
	}
}

// Validate checks exporter names, the sampling rate and OTLP requirements
func (c *Config) Validate() error {
	if c.TraceSamplingRate < 0 || c.TraceSamplingRate > 1 {
		return fmt.Errorf("trace sampling rate must be between 0.0 and 1.0, got %f", c.TraceSamplingRate)
	}

	switch c.MetricsExporter {
	case "", ExporterPrometheus, ExporterOTLP, ExporterStdout:
	default:
		return fmt.Errorf("invalid metrics exporter %q, must be one of: prometheus, otlp, stdout", c.MetricsExporter)
	}

	switch c.TracingExporter {
	case "", ExporterOTLP, ExporterStdout, ExporterNone:
	default:
		return fmt.Errorf("invalid tracing exporter %q, must be one of: otlp, stdout, none", c.TracingExporter)
	}

	if c.OTLPEndpoint == "" && (c.TracingExporter == ExporterOTLP || c.MetricsExporter == ExporterOTLP) {
		return fmt.Errorf("OTLP endpoint is required when using an OTLP exporter")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// Metric label values
const (
	StatusSuccess = "success"
	StatusError   = "error"

	// Authorization handshake outcomes
	AuthGranted = "granted"
	AuthDenied  = "denied"
	AuthTimeout = "timeout"

	// Store operations
	OperationCalendars       = "calendars"
	OperationDefaultCalendar = "default_calendar"
	OperationEventsMatching  = "events_matching"
	OperationEventByID       = "event_by_id"
	OperationSave            = "save"
	OperationRemove          = "remove"

	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"

	DefaultMetricInterval = 10 * time.Second
)
