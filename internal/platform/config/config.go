package config

import (
	"os"
	"strings"
	"time"
)

// Server captures process level configuration. Values come from the
// environment so main stays lean; development defaults keep a local run
// working with zero setup.
type Server struct {
	Addr string

	// Admin surface credentials (HTTP basic auth).
	AdminUsername string
	AdminPassword string

	// Session token signing secret (HS256).
	SessionTokenSecret string
	SessionTTL         time.Duration
	QuoteTTL           time.Duration

	// Hex-encoded 32 byte seeds for the four key roles.
	AuthenticationSeed string
	AssertionSeed      string
	KeyAgreementSeed   string
	PayerSeed          string

	// Optional backing services; empty values select in-memory fallbacks.
	RedisURL     string
	DatabaseURL  string
	KafkaBrokers []string
	KafkaTopic   string
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	cfg := Server{
		Addr:               envOr("ATTESTER_ADDR", ":3000"),
		AdminUsername:      envOr("ATTESTER_ADMIN_USERNAME", "admin"),
		AdminPassword:      envOr("ATTESTER_ADMIN_PASSWORD", "admin"),
		SessionTokenSecret: envOr("ATTESTER_SESSION_SECRET", "dev-secret-change-in-production"),
		SessionTTL:         time.Hour,
		QuoteTTL:           5 * time.Hour,

		AuthenticationSeed: envOr("ATTESTER_AUTHENTICATION_SEED", devAuthenticationSeed),
		AssertionSeed:      envOr("ATTESTER_ASSERTION_SEED", devAssertionSeed),
		KeyAgreementSeed:   envOr("ATTESTER_KEY_AGREEMENT_SEED", devKeyAgreementSeed),
		PayerSeed:          envOr("ATTESTER_PAYER_SEED", devPayerSeed),

		RedisURL:    os.Getenv("ATTESTER_REDIS_URL"),
		DatabaseURL: os.Getenv("ATTESTER_DATABASE_URL"),
		KafkaTopic:  envOr("ATTESTER_KAFKA_TOPIC", "attester.audit"),
	}

	if brokers := os.Getenv("ATTESTER_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	if ttl := os.Getenv("ATTESTER_SESSION_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			cfg.SessionTTL = d
		}
	}
	if ttl := os.Getenv("ATTESTER_QUOTE_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			cfg.QuoteTTL = d
		}
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Development seeds. Every deployment must override these; they exist so a
// fresh checkout can run the full claim flow locally.
const (
	devAuthenticationSeed = "1f8c3e7a9d2b4f60a1c5e8d3b7f92046c3a1d5e9f2b60487a9c1e3d5f7b90284"
	devAssertionSeed      = "2a9d4f71b3c5e806d2f4a6c8e0b3d5f7a9c1e3d5f7b9028461f8c3e7a9d2b4f6"
	devKeyAgreementSeed   = "3b0e5a82c4d6f917e3a5b7d9f1c4e6a8b0d2f4a6c8e0b3d5f72046c3a1d5e9f2"
	devPayerSeed          = "4c1f6b93d5e70a28f4b6c8e0a2d5f7b9c1e3d5f7b90284a6c8e0b3d5f7a9c1e3"
)
