// Package config centralizes how GramVault reads environment variables and
// exposes them as typed values.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config represents runtime configuration for the service. The standalone
// server only needs the first block; the queue-driven deployment also reads
// the Redis, database, and object-storage settings.
type Config struct {
	Address       string
	Password      string
	Workers       int
	WorkDir       string
	SessionTTL    time.Duration
	SweepInterval time.Duration
	SigningSecret []byte
	SignedURLTTL  time.Duration

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	S3Endpoint    string
	S3AccessKey   string
	S3SecretKey   string
	S3UseSSL      bool
	S3Region      string
	ArchiveBucket string
}

const (
	defaultAddress       = ":8080"
	defaultWorkerCount   = 2
	defaultSessionTTL    = 24 * time.Hour
	defaultSweepInterval = time.Hour
	defaultSignedTTL     = 5 * time.Minute
	defaultRedisAddr     = "localhost:6379"
	defaultS3Region      = "us-east-1"
	defaultBucket        = "gramvault-archives"
)

// Load reads configuration from environment variables falling back to
// defaults. The shared password has no default: the gate would otherwise be
// open.
func Load() (*Config, error) {
	password := readEnv("GRAMVAULT_PASSWORD", "")
	if password == "" {
		return nil, errors.New("GRAMVAULT_PASSWORD is required")
	}
	cfg := &Config{
		Address:       readEnv("GRAMVAULT_ADDRESS", defaultAddress),
		Password:      password,
		Workers:       parseInt("GRAMVAULT_WORKERS", defaultWorkerCount),
		WorkDir:       readEnv("GRAMVAULT_WORK_DIR", filepath.Join(os.TempDir(), "gramvault")),
		SessionTTL:    parseDuration("GRAMVAULT_SESSION_TTL", defaultSessionTTL),
		SweepInterval: parseDuration("GRAMVAULT_SWEEP_INTERVAL", defaultSweepInterval),
		SigningSecret: parseSecret("GRAMVAULT_SIGNING_SECRET"),
		SignedURLTTL:  parseDuration("GRAMVAULT_SIGNED_TTL", defaultSignedTTL),

		DatabaseURL:   readEnv("GRAMVAULT_DATABASE_URL", ""),
		RedisAddr:     readEnv("GRAMVAULT_REDIS_ADDR", defaultRedisAddr),
		RedisPassword: readEnv("GRAMVAULT_REDIS_PASSWORD", ""),
		RedisDB:       parseInt("GRAMVAULT_REDIS_DB", 0),
		S3Endpoint:    readEnv("GRAMVAULT_S3_ENDPOINT", ""),
		S3AccessKey:   readEnv("GRAMVAULT_S3_ACCESS_KEY", ""),
		S3SecretKey:   readEnv("GRAMVAULT_S3_SECRET_KEY", ""),
		S3UseSSL:      parseBool("GRAMVAULT_S3_USE_SSL", false),
		S3Region:      readEnv("GRAMVAULT_S3_REGION", defaultS3Region),
		ArchiveBucket: readEnv("GRAMVAULT_S3_BUCKET", defaultBucket),
	}
	if cfg.SigningSecret == nil {
		cfg.SigningSecret = randomSecret()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkerCount
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaultSweepInterval
	}
	if cfg.SignedURLTTL <= 0 {
		cfg.SignedURLTTL = defaultSignedTTL
	}
	return cfg, nil
}

func readEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func parseInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseSecret(key string) []byte {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return []byte(v)
	}
	return nil
}

func randomSecret() []byte {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return []byte(hex.EncodeToString([]byte("fallbacksecret")))
	}
	return buf
}
