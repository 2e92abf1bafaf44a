// Package config loads runtime configuration from the environment, with
// optional .env file support for local runs.
package config

import (
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config holds the gateway configuration.
type Config struct {
	ListenAddr string `env:"APILINK_LISTEN_ADDR,default=:8080"`
	// BasePath is the URL prefix the bridge strips before simulation.
	BasePath string `env:"APILINK_BASE_PATH,default=/api"`
	// BaseURL is where the HTTP transport sends operation calls.
	BaseURL string `env:"APILINK_BASE_URL,default=http://localhost:8080"`

	LogLevel string `env:"APILINK_LOG_LEVEL,default=info"`
	LogJSON  bool   `env:"APILINK_LOG_JSON,default=false"`

	// JWTSecret enables bearer auth on the served router when non-empty.
	JWTSecret string `env:"APILINK_JWT_SECRET"`

	RequestTimeout     time.Duration `env:"APILINK_REQUEST_TIMEOUT,default=30s"`
	ShutdownTimeout    time.Duration `env:"APILINK_SHUTDOWN_TIMEOUT,default=10s"`
	RateLimitPerSecond int           `env:"APILINK_RATE_LIMIT,default=50"`
	RateLimitBurst     int           `env:"APILINK_RATE_BURST,default=100"`

	AllowedOrigins []string `env:"APILINK_ALLOWED_ORIGINS"`

	// RouteManifest optionally points at a YAML route table.
	RouteManifest string `env:"APILINK_ROUTE_MANIFEST"`
}

// Load reads configuration from the environment. A .env file in the working
// directory is honored when present.
func Load() (*Config, error) {
	_ = godotenv.Load() // allow .env for local runs

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}
