// Package config builds process configuration from environment variables so
// main stays lean.
package config

import (
	"os"
	"strings"
	"time"
)

// Config captures everything the server needs at startup.
type Config struct {
	Addr          string
	DatabaseURL   string
	RedisURL      string
	KafkaBrokers  []string
	JWTSigningKey string

	Directory DirectoryConfig
	Sync      SyncConfig
}

// DirectoryConfig points at the external directory provider.
type DirectoryConfig struct {
	BaseURL string
	Token   string
	// Namespace is the managed-namespace prefix; only directory groups whose
	// name carries this prefix are treated as sector/department groups.
	Namespace string
	Timeout   time.Duration
}

// SyncConfig tunes the reconciliation engine.
type SyncConfig struct {
	// Interval between scheduled runs. Zero disables the scheduler; runs can
	// still be triggered through the API.
	Interval time.Duration
	// FetchConcurrency bounds the parallel per-group member fetches.
	FetchConcurrency int
	// LockTTL bounds how long a crashed instance can hold the run lock.
	LockTTL time.Duration
}

// FromEnv builds a Config from environment variables with dev defaults.
func FromEnv() Config {
	cfg := Config{
		Addr:          getenv("HIVE_ADDR", ":8080"),
		DatabaseURL:   os.Getenv("HIVE_DATABASE_URL"),
		RedisURL:      os.Getenv("HIVE_REDIS_URL"),
		JWTSigningKey: getenv("HIVE_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		Directory: DirectoryConfig{
			BaseURL:   os.Getenv("HIVE_DIRECTORY_URL"),
			Token:     os.Getenv("HIVE_DIRECTORY_TOKEN"),
			Namespace: getenv("HIVE_DIRECTORY_NAMESPACE", "org-"),
			Timeout:   getenvDuration("HIVE_DIRECTORY_TIMEOUT", 30*time.Second),
		},
		Sync: SyncConfig{
			Interval:         getenvDuration("HIVE_SYNC_INTERVAL", 0),
			FetchConcurrency: 4,
			LockTTL:          getenvDuration("HIVE_SYNC_LOCK_TTL", 15*time.Minute),
		},
	}
	if brokers := os.Getenv("HIVE_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
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
