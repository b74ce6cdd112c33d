// Package config loads the gate's process configuration from the
// environment and its review policy from YAML.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Mindburn-Labs/plangate/pkg/artifacts"
)

// Config holds process configuration.
type Config struct {
	LogLevel string

	// DatabaseURL selects the store backend. Empty keeps everything in
	// memory.
	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	TenantID   string
	PolicyFile string
	Snapshots  artifacts.Config

	TelemetryEnabled bool
	OTLPEndpoint     string

	EscalationStatsWindow time.Duration
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		LogLevel:      getenv("LOG_LEVEL", "INFO"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		TenantID:      getenv("GATE_TENANT_ID", "default"),
		PolicyFile:    os.Getenv("GATE_POLICY_FILE"),
		Snapshots: artifacts.Config{
			Type:       artifacts.StoreType(os.Getenv("SNAPSHOT_STORAGE_TYPE")),
			DataDir:    getenv("DATA_DIR", "data"),
			S3Bucket:   os.Getenv("SNAPSHOT_S3_BUCKET"),
			S3Region:   firstNonEmpty(os.Getenv("SNAPSHOT_S3_REGION"), os.Getenv("AWS_REGION")),
			S3Endpoint: os.Getenv("SNAPSHOT_S3_ENDPOINT"),
			S3Prefix:   os.Getenv("SNAPSHOT_S3_PREFIX"),
			GCSBucket:  os.Getenv("SNAPSHOT_GCS_BUCKET"),
			GCSPrefix:  os.Getenv("SNAPSHOT_GCS_PREFIX"),
		},
		TelemetryEnabled:      os.Getenv("TELEMETRY_ENABLED") == "true",
		OTLPEndpoint:          getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		EscalationStatsWindow: 7 * 24 * time.Hour,
	}

	if v := os.Getenv("REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil || db < 0 {
			return nil, fmt.Errorf("config: REDIS_DB %q is not a database number", v)
		}
		cfg.RedisDB = db
	}
	if v := os.Getenv("ESCALATION_STATS_WINDOW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("config: ESCALATION_STATS_WINDOW: %w", err)
		}
		cfg.EscalationStatsWindow = d
	}
	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	l, _ := ParseLevel(c.LogLevel)
	return l
}

// ParseLevel maps DEBUG, INFO, WARN and ERROR (any case) to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "", "INFO":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("config: unknown LOG_LEVEL %q", s)
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
