package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr                string
	DatabaseURL         string
	Redis               RedisConfig
	Kafka               KafkaConfig
	Auth                AuthConfig
	// GovernanceAuthority, when set, initializes governance at startup with
	// the parameters from GovernanceFile.
	GovernanceAuthority string
	GovernanceFile      string
	LogLevel            string
	// DevFaucet enables the /dev faucet routes. Never set it in production.
	DevFaucet           bool
	IdempotencyTTL      time.Duration
	TxTimeout           time.Duration
	RateLimit           RateLimitConfig
}

// RateLimitConfig bounds commands per caller. Zero Commands disables it.
type RateLimitConfig struct {
	Commands int
	Window   time.Duration
}

// RedisConfig configures the idempotency cache. An empty URL disables Redis.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the audit stream. No brokers disables Kafka.
type KafkaConfig struct {
	Brokers           []string
	AuditTopic        string
	Partitions        int32
	ReplicationFactor int16
}

// AuthConfig holds credentials for verifying callers.
type AuthConfig struct {
	// CallerJWTSigningKey verifies HS256 bearer tokens whose subject is the
	// caller's account address.
	CallerJWTSigningKey string
	// AdminTokenHash is a bcrypt hash of the X-Admin-Token value accepted on
	// authority endpoints.
	AdminTokenHash string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	signingKey := os.Getenv("CALLER_JWT_SIGNING_KEY")
	if signingKey == "" {
		// Development default; override in any shared environment.
		signingKey = "dev-secret-key-change-in-production"
	}

	return Server{
		Addr:        envOr("KNOMEE_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:           splitList(os.Getenv("KAFKA_BROKERS")),
			AuditTopic:        envOr("KAFKA_AUDIT_TOPIC", "knomee.audit"),
			Partitions:        int32(envInt("KAFKA_AUDIT_PARTITIONS", 3)),
			ReplicationFactor: int16(envInt("KAFKA_AUDIT_REPLICATION", 1)),
		},
		Auth: AuthConfig{
			CallerJWTSigningKey: signingKey,
			AdminTokenHash:      os.Getenv("ADMIN_TOKEN_HASH"),
		},
		GovernanceAuthority: os.Getenv("GOVERNANCE_AUTHORITY"),
		GovernanceFile:      os.Getenv("GOVERNANCE_FILE"),
		LogLevel:            envOr("LOG_LEVEL", "info"),
		DevFaucet:           os.Getenv("DEV_FAUCET") == "true",
		IdempotencyTTL:      envDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		TxTimeout:           envDuration("TX_TIMEOUT", 5*time.Second),
		RateLimit: RateLimitConfig{
			Commands: envInt("RATE_LIMIT_COMMANDS", 60),
			Window:   envDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
