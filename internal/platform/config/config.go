// Package config builds process configuration from environment variables so
// main stays lean.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	strutil "tessera/pkg/platform/strings"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr     string
	AdminKey string

	Redis    Redis
	Postgres Postgres
	Kafka    Kafka
	Oracle   Oracle
}

// Redis configures the optional shared snapshot cache.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Postgres configures the optional durable store. Empty DSN runs everything
// on in-memory stores.
type Postgres struct {
	DSN string
}

// Kafka configures the optional event mirror.
type Kafka struct {
	Brokers []string
	Topic   string
}

// Oracle configures attestation verification and staleness policy.
type Oracle struct {
	// FeedSecrets maps feed id to its HMAC secret, parsed from
	// "feed=secret,feed=secret" form.
	FeedSecrets        map[string]string
	StalenessThreshold time.Duration
	UpdateFeeMinor     int64
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	addr := os.Getenv("TESSERA_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	return Server{
		Addr:     addr,
		AdminKey: os.Getenv("TESSERA_ADMIN_KEY"),
		Redis: Redis{
			URL:          os.Getenv("TESSERA_REDIS_URL"),
			PoolSize:     envInt("TESSERA_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("TESSERA_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("TESSERA_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("TESSERA_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("TESSERA_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Postgres: Postgres{
			DSN: os.Getenv("TESSERA_POSTGRES_DSN"),
		},
		Kafka: Kafka{
			Brokers: envList("TESSERA_KAFKA_BROKERS"),
			Topic:   envDefault("TESSERA_KAFKA_TOPIC", "tessera.domain-events"),
		},
		Oracle: Oracle{
			FeedSecrets:        envPairs("TESSERA_ORACLE_FEED_SECRETS"),
			StalenessThreshold: envDuration("TESSERA_ORACLE_STALENESS", 10*time.Minute),
			UpdateFeeMinor:     int64(envInt("TESSERA_ORACLE_UPDATE_FEE", 1)),
		},
	}
}

func envDefault(key, fallback string) string {
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

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	return strutil.DedupeAndTrim(strings.Split(v, ","))
}

func envPairs(key string) map[string]string {
	out := make(map[string]string)
	for _, pair := range envList(key) {
		name, secret, ok := strings.Cut(pair, "=")
		if ok && name != "" && secret != "" {
			out[name] = secret
		}
	}
	return out
}
