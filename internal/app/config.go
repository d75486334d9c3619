package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/yungbote/dosegate-backend/internal/data/db"
	"github.com/yungbote/dosegate-backend/internal/observability"
)

// ConfigFileEnv names an optional env-format file read before the
// environment. Environment variables win over the file.
const ConfigFileEnv = "DOSEGATE_CONFIG"

type Config struct {
	Environment string
	LogMode     string
	Port        string

	DB db.Config

	RedisAddr string
	LockTTL   time.Duration
	LockWait  time.Duration

	JWTSecretKey string
	JWTIssuer    string
	TokenTTL     time.Duration

	CORSOrigins []string

	ClinicalConstantsPath string

	Otel        observability.OtelConfig
	Metrics     observability.MetricsConfig
	MetricsAddr string

	ShutdownTimeout time.Duration
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("LOG_MODE", "development")
	v.SetDefault("PORT", "8080")

	v.SetDefault("DB_DRIVER", db.DriverPostgres)
	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", "5432")
	v.SetDefault("POSTGRES_USER", "postgres")
	v.SetDefault("POSTGRES_PASSWORD", "")
	v.SetDefault("POSTGRES_NAME", "dosegate")
	v.SetDefault("POSTGRES_SSLMODE", "disable")
	v.SetDefault("SQLITE_PATH", "dosegate.db")

	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("LOCK_TTL_SECONDS", 30)
	v.SetDefault("LOCK_WAIT_SECONDS", 5)

	v.SetDefault("JWT_SECRET_KEY", "")
	v.SetDefault("JWT_ISSUER", "dosegate")
	v.SetDefault("ACCESS_TOKEN_TTL", 3600)

	v.SetDefault("CORS_ALLOWED_ORIGINS", "")
	v.SetDefault("CLINICAL_CONSTANTS_PATH", "")

	v.SetDefault("OTEL_ENABLED", false)
	v.SetDefault("OTEL_SERVICE_NAME", "dosegate")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_HEADERS", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_INSECURE", false)
	v.SetDefault("OTEL_SAMPLER_RATIO", 0.1)
	v.SetDefault("SERVICE_VERSION", "dev")

	v.SetDefault("METRICS_ENABLED", false)
	v.SetDefault("METRICS_ADDR", ":9090")
	v.SetDefault("METRICS_SCRAPE_INTERVAL_SECONDS", 10)

	v.SetDefault("SHUTDOWN_TIMEOUT_SECONDS", 15)
}

// LoadConfig reads defaults, then the optional DOSEGATE_CONFIG file, then
// the environment.
func LoadConfig() (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if path := strings.TrimSpace(os.Getenv(ConfigFileEnv)); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return fromViper(v), nil
}

func fromViper(v *viper.Viper) Config {
	seconds := func(key string) time.Duration {
		return time.Duration(v.GetInt(key)) * time.Second
	}
	return Config{
		Environment: v.GetString("ENVIRONMENT"),
		LogMode:     v.GetString("LOG_MODE"),
		Port:        v.GetString("PORT"),
		DB: db.Config{
			Driver:           strings.ToLower(v.GetString("DB_DRIVER")),
			PostgresHost:     v.GetString("POSTGRES_HOST"),
			PostgresPort:     v.GetString("POSTGRES_PORT"),
			PostgresUser:     v.GetString("POSTGRES_USER"),
			PostgresPassword: v.GetString("POSTGRES_PASSWORD"),
			PostgresName:     v.GetString("POSTGRES_NAME"),
			PostgresSSLMode:  v.GetString("POSTGRES_SSLMODE"),
			SQLitePath:       v.GetString("SQLITE_PATH"),
		},
		RedisAddr:             strings.TrimSpace(v.GetString("REDIS_ADDR")),
		LockTTL:               seconds("LOCK_TTL_SECONDS"),
		LockWait:              seconds("LOCK_WAIT_SECONDS"),
		JWTSecretKey:          v.GetString("JWT_SECRET_KEY"),
		JWTIssuer:             v.GetString("JWT_ISSUER"),
		TokenTTL:              seconds("ACCESS_TOKEN_TTL"),
		CORSOrigins:           splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		ClinicalConstantsPath: strings.TrimSpace(v.GetString("CLINICAL_CONSTANTS_PATH")),
		Otel: observability.OtelConfig{
			Enabled:     v.GetBool("OTEL_ENABLED"),
			ServiceName: v.GetString("OTEL_SERVICE_NAME"),
			Environment: v.GetString("ENVIRONMENT"),
			Version:     v.GetString("SERVICE_VERSION"),
			Endpoint:    v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT"),
			Insecure:    v.GetBool("OTEL_EXPORTER_OTLP_INSECURE"),
			Headers:     v.GetString("OTEL_EXPORTER_OTLP_HEADERS"),
			SampleRatio: v.GetFloat64("OTEL_SAMPLER_RATIO"),
		},
		Metrics: observability.MetricsConfig{
			Enabled:        v.GetBool("METRICS_ENABLED"),
			ScrapeInterval: seconds("METRICS_SCRAPE_INTERVAL_SECONDS"),
		},
		MetricsAddr:     v.GetString("METRICS_ADDR"),
		ShutdownTimeout: seconds("SHUTDOWN_TIMEOUT_SECONDS"),
	}
}

// ValidateServe checks what the HTTP server needs beyond the defaults.
func (c Config) ValidateServe() error {
	if strings.TrimSpace(c.JWTSecretKey) == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if c.LockWait <= 0 || c.LockTTL <= 0 {
		return fmt.Errorf("LOCK_WAIT_SECONDS and LOCK_TTL_SECONDS must be positive")
	}
	if c.LockTTL <= c.LockWait {
		return fmt.Errorf("LOCK_TTL_SECONDS (%s) must exceed LOCK_WAIT_SECONDS (%s)", c.LockTTL, c.LockWait)
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
