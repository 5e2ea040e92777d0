package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	ServiceName    = "stocktrack-backend"
	ServiceVersion = "1.0.0"

	defaultDSN         = "host=localhost user=postgres password=postgres dbname=stocktrack port=5432 sslmode=disable"
	defaultCORSOrigins = "http://localhost:3000"
)

type Config struct {
	HTTPPort    string `yaml:"http_port"`
	DatabaseDSN string `yaml:"database_dsn"`
	JWTSecret   string `yaml:"jwt_secret"`
	CORSOrigins string `yaml:"cors_allowed_origins"`

	// Roles that receive inventory_update and low_stock_alert pushes.
	NotifyRoles  []string `yaml:"notify_roles"`
	NotifyBuffer int      `yaml:"notify_buffer"`
	ClientBuffer int      `yaml:"client_buffer"`

	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`

	OtelEndpoint   string `yaml:"otel_endpoint"`
	OtelAuthHeader string `yaml:"otel_auth_header"`

	LogLevel string `yaml:"log_level"`
}

// Warning is a non-fatal configuration finding, logged at startup.
type Warning string

func defaults() *Config {
	return &Config{
		HTTPPort:     "5001",
		DatabaseDSN:  defaultDSN,
		CORSOrigins:  defaultCORSOrigins,
		NotifyRoles:  []string{"manager"},
		NotifyBuffer: 256,
		ClientBuffer: 32,
		KafkaTopic:   "inventory-events",
		LogLevel:     "info",
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// STOCKTRACK_CONFIG, and environment variables, in that order of precedence.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("STOCKTRACK_CONFIG"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.HTTPPort = getEnv("HTTP_PORT", cfg.HTTPPort)
	cfg.DatabaseDSN = getEnv("DATABASE_DSN", cfg.DatabaseDSN)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.CORSOrigins = getEnv("CORS_ALLOWED_ORIGINS", cfg.CORSOrigins)
	cfg.NotifyRoles = getEnvList("NOTIFY_ROLES", cfg.NotifyRoles)
	cfg.NotifyBuffer = getEnvInt("NOTIFY_BUFFER", cfg.NotifyBuffer)
	cfg.ClientBuffer = getEnvInt("CLIENT_BUFFER", cfg.ClientBuffer)
	cfg.KafkaBrokers = getEnvList("KAFKA_BROKERS", cfg.KafkaBrokers)
	cfg.KafkaTopic = getEnv("KAFKA_TOPIC", cfg.KafkaTopic)
	cfg.OtelEndpoint = getEnv("OTEL_ENDPOINT", cfg.OtelEndpoint)
	cfg.OtelAuthHeader = getEnv("OTEL_AUTH_HEADER", cfg.OtelAuthHeader)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	return nil
}

// Validate enforces the settings the server cannot run without.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	if len(c.JWTSecret) < 32 {
		return errors.New("JWT_SECRET must be at least 32 characters")
	}
	if c.NotifyBuffer <= 0 || c.ClientBuffer <= 0 {
		return errors.New("NOTIFY_BUFFER and CLIENT_BUFFER must be positive")
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

// Warnings reports defaults that are fine locally but wrong in production.
func (c *Config) Warnings() []Warning {
	var out []Warning
	if c.DatabaseDSN == defaultDSN {
		out = append(out, "DATABASE_DSN uses the default value, set your own Postgres DSN for production")
	}
	if c.CORSOrigins == defaultCORSOrigins {
		out = append(out, "CORS_ALLOWED_ORIGINS uses the default value, set your own origin for production")
	}
	return out
}

// Origins returns the CORS origins with whitespace trimmed.
func (c *Config) Origins() []string {
	return splitList(c.CORSOrigins)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return splitList(v)
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
