package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures server-level configuration. Everything is env-driven so
// main stays lean and deployments stay twelve-factor.
type Config struct {
	Addr          string
	DatabaseURL   string // empty runs on in-memory stores (local dev, tests)
	RedisURL      string // empty disables the lookup cache
	KafkaBrokers  []string
	KafkaTopic    string
	JWTSigningKey string

	CacheTTL time.Duration
	// TransactionsPerPrisoner tunes the approximate per-subject grouped count
	// for the financial transactions kind.
	TransactionsPerPrisoner int64
}

// FromEnv builds the config from environment variables with development
// defaults.
func FromEnv() Config {
	cfg := Config{
		Addr:                    envOr("MAPPING_ADDR", ":8080"),
		DatabaseURL:             os.Getenv("DATABASE_URL"),
		RedisURL:                os.Getenv("REDIS_URL"),
		KafkaTopic:              envOr("KAFKA_TOPIC", "mapping-registry-events"),
		JWTSigningKey:           envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		CacheTTL:                envDuration("MAPPING_CACHE_TTL", 10*time.Minute),
		TransactionsPerPrisoner: envInt64("TRANSACTIONS_PER_PRISONER", 75),
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
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

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
