package observability

import (
	"testing"

	"github.com/smallbiznis/importduty/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestLoadConfigNormalizes(t *testing.T) {
	cfg := LoadConfig(config.Config{
		AppVersion:   " 1.2.0 ",
		Environment:  "Production",
		OTLPEndpoint: "collector:4318",
		Telemetry: config.TelemetryConfig{
			LogLevel:       "WARNING",
			LogFormat:      "text",
			OtelEnabled:    true,
			OtelProtocol:   "grpc",
			TracesProtocol: "http/protobuf",
			SamplingRatio:  4,
		},
	})

	assert.Equal(t, "importduty", cfg.ServiceName)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "1.2.0", cfg.Version)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.True(t, cfg.OtelEnabled)
	assert.Equal(t, "http", cfg.OtelExporterProtocol)
	assert.Equal(t, 1.0, cfg.OtelSamplingRatio)
	assert.False(t, cfg.Debug())
}

func TestLoadConfigDisablesOtelWithoutEndpoint(t *testing.T) {
	cfg := LoadConfig(config.Config{
		Environment: "local",
		Telemetry: config.TelemetryConfig{
			OtelEnabled:   true,
			SamplingRatio: -1,
		},
	})

	assert.False(t, cfg.OtelEnabled)
	assert.Equal(t, "grpc", cfg.OtelExporterProtocol)
	assert.Equal(t, defaultSamplingRatio, cfg.OtelSamplingRatio)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.Debug())
}
