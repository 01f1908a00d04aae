package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures gateway node configuration.
type Server struct {
	Addr             string
	MetricsAddr      string
	DatabaseURL      string
	Redis            RedisConfig
	Kafka            KafkaConfig
	JWTSigningKey    string
	RequestTimeout   time.Duration
	MaxCommitRetries int
	AuditBufferSize  int
}

// RedisConfig holds Redis connection tuning for the verification cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	VerifyTTL    time.Duration
}

// KafkaConfig holds audit sink configuration.
type KafkaConfig struct {
	Brokers         string
	AuditTopic      string
	Acks            string
	Retries         int
	DeliveryTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:          envOr("EDULEDGER_ADDR", ":8080"),
		MetricsAddr:   envOr("EDULEDGER_METRICS_ADDR", ":9090"),
		DatabaseURL:   os.Getenv("EDULEDGER_DATABASE_URL"),
		JWTSigningKey: envOr("EDULEDGER_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		Redis: RedisConfig{
			URL:          os.Getenv("EDULEDGER_REDIS_URL"),
			PoolSize:     envInt("EDULEDGER_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("EDULEDGER_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("EDULEDGER_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("EDULEDGER_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("EDULEDGER_REDIS_WRITE_TIMEOUT", 3*time.Second),
			VerifyTTL:    envDuration("EDULEDGER_VERIFY_CACHE_TTL", time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers:         os.Getenv("EDULEDGER_KAFKA_BROKERS"),
			AuditTopic:      envOr("EDULEDGER_AUDIT_TOPIC", "eduledger.audit"),
			Acks:            envOr("EDULEDGER_KAFKA_ACKS", "all"),
			Retries:         envInt("EDULEDGER_KAFKA_RETRIES", 5),
			DeliveryTimeout: envDuration("EDULEDGER_KAFKA_DELIVERY_TIMEOUT", 10*time.Second),
		},
		RequestTimeout:   envDuration("EDULEDGER_REQUEST_TIMEOUT", 30*time.Second),
		MaxCommitRetries: envInt("EDULEDGER_MAX_COMMIT_RETRIES", 3),
		AuditBufferSize:  envInt("EDULEDGER_AUDIT_BUFFER_SIZE", 256),
	}
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

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
