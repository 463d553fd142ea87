// Package config loads application configuration from environment variables.
package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable; token durations stay as strings because the
// duration format ("15m", "7d") is part of the API contract and is parsed
// by the token codec.
type Config struct {
	Env  string // application environment (dev/test/prod)
	Port string // HTTP port to listen on

	DBUser string // database username
	DBPass string // database password (optional)
	DBHost string // database host address
	DBPort string // database port number
	DBName string // database name

	AccessSecret  string // secret signing access tokens
	RefreshSecret string // secret signing refresh tokens, must differ from AccessSecret
	AccessTTL     string // access token lifetime, e.g. "15m"
	RefreshTTL    string // refresh token lifetime, e.g. "7d"
	BcryptCost    int    // bcrypt cost factor

	CleanupEnabled  bool          // whether the token sweep job runs
	CleanupInterval time.Duration // interval between token sweeps
}

// Load reads configuration from the environment.  Missing required
// variables, or access/refresh secrets that do not differ, abort startup.
func Load() Config {
	cfg := Config{
		Env:             getenv("APP_ENV", "dev"),
		Port:            getenv("APP_PORT", "5000"),
		DBUser:          must("DB_USER"),
		DBPass:          os.Getenv("DB_PASS"),
		DBHost:          must("DB_HOST"),
		DBPort:          must("DB_PORT"),
		DBName:          must("DB_NAME"),
		AccessSecret:    must("JWT_SECRET"),
		RefreshSecret:   must("JWT_REFRESH_SECRET"),
		AccessTTL:       getenv("ACCESS_TOKEN_TTL", "15m"),
		RefreshTTL:      getenv("REFRESH_TOKEN_TTL", "7d"),
		BcryptCost:      getenvInt("BCRYPT_COST", 12),
		CleanupEnabled:  getenv("CLEANUP_ENABLED", "true") == "true",
		CleanupInterval: getenvDur("CLEANUP_INTERVAL", 24*time.Hour),
	}
	// Key separation between the two token classes is deliberate; a shared
	// secret would let either token forge the other.
	if cfg.AccessSecret == cfg.RefreshSecret {
		log.Fatal("JWT_SECRET and JWT_REFRESH_SECRET must differ")
	}
	return cfg
}

// must retrieves a required environment variable or exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, v)
	}
	return n
}

func getenvDur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("invalid duration for %s: %q", key, v)
	}
	return d
}
