package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewRatesConfigHolder),
)

// Config holds application configuration.
type Config struct {
	AppName       string
	AppVersion    string
	Environment   string
	HTTPAddr      string
	AuthJWTSecret string

	AuthAdminName     string
	AuthAdminEmail    string
	AuthAdminPassword string

	OTLPEndpoint string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Redis       RedisConfig
	RateLimit   RateLimitConfig
	Kafka       KafkaConfig
	Exchange    ExchangeConfig
	MetricsPush MetricsPushConfig
	Telemetry   TelemetryConfig

	BulkUpdateWorkers   int
	DefaultRateCurrency string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a redis address is configured.
func (c RedisConfig) Enabled() bool {
	return strings.TrimSpace(c.Addr) != ""
}

type RateLimitConfig struct {
	Enabled              bool
	ExchangeRefreshRate  float64
	ExchangeRefreshBurst int
	BulkLockTTLSeconds   int
}

type KafkaConfig struct {
	Brokers       []string
	VehiclesTopic string
}

type ExchangeConfig struct {
	RatesURL       string
	TimeoutSeconds int
}

// Timeout returns the HTTP timeout for the rates source.
func (c ExchangeConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// MetricsPushConfig points batch jobs at a Pushgateway or remote_write
// endpoint. An empty exporter disables pushing.
type MetricsPushConfig struct {
	Exporter  string
	Endpoint  string
	AuthToken string
}

// TelemetryConfig carries the raw logging and OTLP settings.
type TelemetryConfig struct {
	LogLevel       string
	LogFormat      string
	OtelEnabled    bool
	OtelProtocol   string
	TracesProtocol string
	SamplingRatio  float64
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:           getenv("APP_SERVICE", "importduty"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       getenv("ENVIRONMENT", "development"),
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		AuthJWTSecret:     strings.TrimSpace(getenv("AUTH_JWT_SECRET", "")),
		AuthAdminName:     getenv("AUTH_ADMIN_NAME", "Administrator"),
		AuthAdminEmail:    strings.TrimSpace(getenv("AUTH_ADMIN_EMAIL", "")),
		AuthAdminPassword: getenv("AUTH_ADMIN_PASSWORD", ""),
		OTLPEndpoint:      getenv("OTEL_EXPORTER_OTLP_ENDPOINT", getenv("OTLP_ENDPOINT", "localhost:4317")),
		DBType:            strings.ToLower(getenv("DATABASE_TYPE", "postgres")),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "importduty"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "importduty.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 10),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 50),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),
		Redis: RedisConfig{
			Addr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			Password: strings.TrimSpace(getenv("REDIS_PASSWORD", "")),
			DB:       getenvInt("REDIS_DB", 0),
		},
		RateLimit: RateLimitConfig{
			Enabled:              getenvBool("RATE_LIMIT_ENABLED", false),
			ExchangeRefreshRate:  getenvFloat("RATE_LIMIT_EXCHANGE_REFRESH_RATE", 0.1),
			ExchangeRefreshBurst: getenvInt("RATE_LIMIT_EXCHANGE_REFRESH_BURST", 2),
			BulkLockTTLSeconds:   getenvInt("RATE_LIMIT_BULK_LOCK_TTL_SECONDS", 120),
		},
		Kafka: KafkaConfig{
			Brokers:       splitList(getenv("KAFKA_BROKERS", "")),
			VehiclesTopic: getenv("KAFKA_VEHICLES_TOPIC", "importduty.vehicles"),
		},
		Exchange: ExchangeConfig{
			RatesURL:       strings.TrimSpace(getenv("EXCHANGE_RATES_URL", "")),
			TimeoutSeconds: getenvInt("EXCHANGE_RATES_TIMEOUT_SECONDS", 10),
		},
		MetricsPush: MetricsPushConfig{
			Exporter:  strings.ToLower(strings.TrimSpace(getenv("METRICS_PUSH_EXPORTER", ""))),
			Endpoint:  strings.TrimSpace(getenv("METRICS_PUSH_ENDPOINT", "")),
			AuthToken: strings.TrimSpace(getenv("METRICS_PUSH_AUTH_TOKEN", "")),
		},
		Telemetry: TelemetryConfig{
			LogLevel:       getenv("LOG_LEVEL", "info"),
			LogFormat:      getenv("LOG_FORMAT", "json"),
			OtelEnabled:    getenvBool("OTEL_ENABLED", true),
			OtelProtocol:   getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"),
			TracesProtocol: getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", ""),
			SamplingRatio:  getenvFloat("OTEL_SAMPLING_RATIO", 0.1),
		},
		BulkUpdateWorkers:   getenvInt("BULK_UPDATE_WORKERS", 8),
		DefaultRateCurrency: strings.ToUpper(getenv("DEFAULT_RATE_CURRENCY", "JPY")),
	}

	return cfg
}

// IsProduction reports whether the service runs in production.
func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
