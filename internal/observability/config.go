package observability

import (
	"math"
	"strings"

	"github.com/smallbiznis/importduty/internal/config"
)

// Config is the normalized telemetry view shared by the logger, tracer and
// meter providers.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

const defaultSamplingRatio = 0.1

// LoadConfig derives the telemetry settings from the application config.
// Unknown levels, formats and protocols fall back to info, json and grpc.
func LoadConfig(cfg config.Config) Config {
	t := cfg.Telemetry

	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = "importduty"
	}

	protocol := t.OtelProtocol
	if strings.TrimSpace(t.TracesProtocol) != "" {
		protocol = t.TracesProtocol
	}

	return Config{
		ServiceName:          serviceName,
		Environment:          strings.ToLower(strings.TrimSpace(cfg.Environment)),
		Version:              strings.TrimSpace(cfg.AppVersion),
		LogLevel:             normalizeLevel(t.LogLevel),
		LogFormat:            normalizeFormat(t.LogFormat),
		OtelEnabled:          t.OtelEnabled && strings.TrimSpace(cfg.OTLPEndpoint) != "",
		OtelExporterEndpoint: strings.TrimSpace(cfg.OTLPEndpoint),
		OtelExporterProtocol: normalizeProtocol(protocol),
		OtelSamplingRatio:    clampRatio(t.SamplingRatio),
	}
}

// Debug enables verbose logging and stack traces outside production.
func (c Config) Debug() bool {
	if c.LogLevel == "debug" {
		return true
	}
	switch c.Environment {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

func normalizeLevel(level string) string {
	level = strings.ToLower(strings.TrimSpace(level))
	switch level {
	case "debug", "info", "warn", "error":
		return level
	case "warning":
		return "warn"
	}
	return "info"
}

func normalizeFormat(format string) string {
	if strings.EqualFold(strings.TrimSpace(format), "console") {
		return "console"
	}
	return "json"
}

func normalizeProtocol(protocol string) string {
	switch p := strings.ToLower(strings.TrimSpace(protocol)); p {
	case "http", "http/protobuf":
		return "http"
	}
	return "grpc"
}

func clampRatio(ratio float64) float64 {
	if math.IsNaN(ratio) || ratio < 0 {
		return defaultSamplingRatio
	}
	return math.Min(ratio, 1)
}
