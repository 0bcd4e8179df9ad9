package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr                  string
	DatabaseURL           string
	MaxConcurrentCompares int64
	StoreTimeout          time.Duration
	ShutdownTimeout       time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	cfg := Server{
		Addr:                  ":8080",
		MaxConcurrentCompares: 8,
		StoreTimeout:          2 * time.Second,
		ShutdownTimeout:       10 * time.Second,
	}
	if addr := os.Getenv("KEYMINT_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	cfg.DatabaseURL = os.Getenv("KEYMINT_DATABASE_URL")
	if v := os.Getenv("KEYMINT_MAX_CONCURRENT_COMPARES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.MaxConcurrentCompares = n
		}
	}
	if v := os.Getenv("KEYMINT_STORE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.StoreTimeout = d
		}
	}
	return cfg
}
