// Package config builds runtime configuration from the environment so main
// stays lean.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config captures everything the server needs to start.
type Config struct {
	Addr          string
	LogLevel      string
	JWTSigningKey string

	DatabaseURL string
	RedisURL    string

	ProviderBaseURL string
	ProviderToken   string
	ProviderTimeout time.Duration

	PendingImportTTL time.Duration

	KafkaBrokers    string
	KafkaAuditTopic string
}

// FromEnv loads .env when present and reads configuration from environment
// variables with development defaults.
func FromEnv() Config {
	// Missing .env is fine; containers inject real env vars.
	_ = godotenv.Load()

	return Config{
		Addr:          getenv("LISTOU_ADDR", ":8080"),
		LogLevel:      getenv("LISTOU_LOG_LEVEL", "info"),
		JWTSigningKey: getenv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		ProviderBaseURL: getenv("NFCE_PROVIDER_URL", "https://api.infosimples.com/api/v2/consultas/sefaz/nfce"),
		ProviderToken:   os.Getenv("NFCE_PROVIDER_TOKEN"),
		ProviderTimeout: getduration("NFCE_PROVIDER_TIMEOUT", 30*time.Second),

		PendingImportTTL: getduration("PENDING_IMPORT_TTL", 15*time.Minute),

		KafkaBrokers:    os.Getenv("KAFKA_BROKERS"),
		KafkaAuditTopic: getenv("KAFKA_AUDIT_TOPIC", "listou.audit"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getduration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
