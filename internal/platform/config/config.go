package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr string
}

// RedisConfig holds connection settings for the shared Redis backend. An empty
// URL means Redis is not configured and components fall back to their
// in-process implementations.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds broker settings for the outbound publisher. An empty seed
// list disables publishing (TryPublish reports failure, the retry queue keeps
// the events).
type KafkaConfig struct {
	Seeds []string
	// DeclareTopics lists topics ensured on first connect so events are not
	// dropped when no consumer has created the topology yet.
	DeclareTopics []string
	Partitions    int32
}

// PostgresConfig holds the DSN for the durable idempotency store. Empty DSN
// selects the in-memory store.
type PostgresConfig struct {
	DSN string
}

// WorkerConfig controls the retry drain loop.
type WorkerConfig struct {
	PollInterval time.Duration
}

// Config is the full application configuration.
type Config struct {
	Server   Server
	Redis    RedisConfig
	Kafka    KafkaConfig
	Postgres PostgresConfig
	Worker   WorkerConfig
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Server: Server{
			Addr: envOr("ORDERFLOW_ADDR", ":8080"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Seeds:         splitNonEmpty(os.Getenv("KAFKA_SEEDS")),
			DeclareTopics: splitNonEmpty(envOr("KAFKA_DECLARE_TOPICS", "order.created")),
			Partitions:    int32(envInt("KAFKA_TOPIC_PARTITIONS", 1)),
		},
		Postgres: PostgresConfig{
			DSN: os.Getenv("POSTGRES_DSN"),
		},
		Worker: WorkerConfig{
			PollInterval: envDuration("RETRY_POLL_INTERVAL", 30*time.Second),
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
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitNonEmpty(csv string) []string {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
