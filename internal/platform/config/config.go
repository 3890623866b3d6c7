// Package config builds runtime configuration from the environment so main
// stays lean. Missing required external configuration is a startup-fatal
// configuration error, never a per-request failure.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	dErrors "verity/pkg/domain-errors"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	// MaxUploadBytes bounds multipart image uploads.
	MaxUploadBytes int64
}

// Redis captures connection settings for the Redis-backed record store.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// AWS captures settings for the analyzer clients and the S3 image store.
type AWS struct {
	Region string
	// S3Bucket holds image blobs. Empty means the in-memory image store.
	S3Bucket string
}

// Kafka captures the audit event sink settings. Empty brokers disable Kafka
// and audit events stay on the in-memory store.
type Kafka struct {
	Brokers    []string
	AuditTopic string
}

// Retention controls the background reaper. Records and image blobs age out
// on independent clocks.
type Retention struct {
	RecordMaxAge time.Duration
	ImageMaxAge  time.Duration
	Interval     time.Duration
}

// RateLimit bounds verification starts per user per window.
type RateLimit struct {
	Limit  int
	Window time.Duration
}

// Config is the root configuration for the service.
type Config struct {
	Server      Server
	Redis       Redis
	AWS         AWS
	Kafka       Kafka
	Retention   Retention
	RateLimit   RateLimit
	PostgresURL string
	LogLevel    string
}

// FromEnv builds a Config from environment variables. It returns a
// configuration-coded error when required external settings are absent.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Server: Server{
			Addr:           envOr("VERITY_ADDR", ":8080"),
			JWTSigningKey:  os.Getenv("JWT_SIGNING_KEY"),
			MaxUploadBytes: envInt64("VERITY_MAX_UPLOAD_BYTES", 10<<20),
		},
		Redis: Redis{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		AWS: AWS{
			Region:   os.Getenv("AWS_REGION"),
			S3Bucket: os.Getenv("VERITY_S3_BUCKET"),
		},
		Kafka: Kafka{
			Brokers:    splitNonEmpty(os.Getenv("KAFKA_BROKERS")),
			AuditTopic: envOr("KAFKA_AUDIT_TOPIC", "verity.audit"),
		},
		Retention: Retention{
			RecordMaxAge: time.Duration(envInt("VERITY_RECORD_RETENTION_DAYS", 90)) * 24 * time.Hour,
			ImageMaxAge:  time.Duration(envInt("VERITY_IMAGE_RETENTION_DAYS", 7)) * 24 * time.Hour,
			Interval:     envDuration("VERITY_RETENTION_INTERVAL", time.Hour),
		},
		RateLimit: RateLimit{
			Limit:  envInt("VERITY_RATE_LIMIT", 10),
			Window: envDuration("VERITY_RATE_WINDOW", time.Minute),
		},
		PostgresURL: os.Getenv("POSTGRES_URL"),
		LogLevel:    envOr("LOG_LEVEL", "info"),
	}

	if cfg.AWS.Region == "" {
		return nil, dErrors.New(dErrors.CodeConfiguration, "AWS_REGION is required for the analyzer clients")
	}
	if cfg.Server.JWTSigningKey == "" {
		return nil, dErrors.New(dErrors.CodeConfiguration, "JWT_SIGNING_KEY is required")
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
