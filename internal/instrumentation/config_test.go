package instrumentation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	for _, key := range []string{"OTEL_SERVICE_NAME", "INSTRUMENTATION_ENABLED", "METRICS_EXPORTER", "TRACING_EXPORTER", "OTEL_TRACES_SAMPLER_ARG"} {
		t.Setenv(key, "")
	}

	config := DefaultConfig()

	assert.Equal(t, "calbridge", config.ServiceName)
	assert.True(t, config.Enabled)
	assert.Equal(t, ExporterPrometheus, config.MetricsExporter)
	assert.Equal(t, ExporterNone, config.TracingExporter)
	assert.InDelta(t, 0.1, config.TraceSamplingRate, 1e-9)
	assert.False(t, config.DetailedLabels)
	assert.True(t, config.AuditLogging.Enabled)
	assert.False(t, config.AuditLogging.IncludePII)
	require.NoError(t, config.Validate())
}

func TestDefaultConfig_FromEnv(t *testing.T) {
	t.Setenv("OTEL_SERVICE_NAME", "calbridge-test")
	t.Setenv("INSTRUMENTATION_ENABLED", "false")
	t.Setenv("METRICS_EXPORTER", "stdout")
	t.Setenv("TRACING_EXPORTER", "stdout")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.5")
	t.Setenv("METRICS_DETAILED_LABELS", "true")
	t.Setenv("AUDIT_LOGGING_INCLUDE_PII", "not-a-bool")

	config := DefaultConfig()

	assert.Equal(t, "calbridge-test", config.ServiceName)
	assert.False(t, config.Enabled)
	assert.Equal(t, ExporterStdout, config.MetricsExporter)
	assert.Equal(t, ExporterStdout, config.TracingExporter)
	assert.InDelta(t, 0.5, config.TraceSamplingRate, 1e-9)
	assert.True(t, config.DetailedLabels)
	assert.False(t, config.AuditLogging.IncludePII, "unparsable bool falls back to the default")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "empty exporters", mutate: func(c *Config) { c.MetricsExporter, c.TracingExporter = "", "" }},
		{name: "sampling too low", mutate: func(c *Config) { c.TraceSamplingRate = -0.1 }, wantErr: "sampling rate"},
		{name: "sampling too high", mutate: func(c *Config) { c.TraceSamplingRate = 1.5 }, wantErr: "sampling rate"},
		{name: "bad metrics exporter", mutate: func(c *Config) { c.MetricsExporter = "statsd" }, wantErr: "invalid metrics exporter"},
		{name: "bad tracing exporter", mutate: func(c *Config) { c.TracingExporter = "zipkin" }, wantErr: "invalid tracing exporter"},
		{name: "otlp tracing without endpoint", mutate: func(c *Config) { c.TracingExporter = ExporterOTLP }, wantErr: "OTLP endpoint"},
		{name: "otlp metrics without endpoint", mutate: func(c *Config) { c.MetricsExporter = ExporterOTLP }, wantErr: "OTLP endpoint"},
		{name: "otlp with endpoint", mutate: func(c *Config) {
			c.TracingExporter = ExporterOTLP
			c.OTLPEndpoint = "localhost:4318"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := Config{
				ServiceName:       "calbridge",
				MetricsExporter:   ExporterPrometheus,
				TracingExporter:   ExporterNone,
				TraceSamplingRate: 0.1,
			}
			tt.mutate(&config)

			err := config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("CALBRIDGE_TEST_STRING", "value")
	t.Setenv("CALBRIDGE_TEST_BOOL", "true")
	t.Setenv("CALBRIDGE_TEST_FLOAT", "0.25")
	t.Setenv("CALBRIDGE_TEST_BAD", "nope")

	assert.Equal(t, "value", getEnvOrDefault("CALBRIDGE_TEST_STRING", "default"))
	assert.Equal(t, "default", getEnvOrDefault("CALBRIDGE_TEST_UNSET", "default"))

	assert.True(t, getEnvBoolOrDefault("CALBRIDGE_TEST_BOOL", false))
	assert.True(t, getEnvBoolOrDefault("CALBRIDGE_TEST_BAD", true))
	assert.False(t, getEnvBoolOrDefault("CALBRIDGE_TEST_UNSET", false))

	assert.InDelta(t, 0.25, getEnvFloatOrDefault("CALBRIDGE_TEST_FLOAT", 1), 1e-9)
	assert.InDelta(t, 1.0, getEnvFloatOrDefault("CALBRIDGE_TEST_BAD", 1), 1e-9)
}
