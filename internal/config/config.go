// Package config loads settings from ECHO_* environment variables.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every environment variable name.
const Prefix = "ECHO"

// Server holds the echo server configuration.
type Server struct {
	Port         string `envconfig:"PORT" default:"8080"`
	DBPath       string `envconfig:"DB_PATH" default:"data/messages.db"`
	HistoryLimit int    `envconfig:"HISTORY_LIMIT" default:"5"`
	LogLevel     string `envconfig:"LOG_LEVEL" default:"info"`
	LogPretty    bool   `envconfig:"LOG_PRETTY" default:"false"`

	// AllowedOrigins is a comma separated browser origin allowlist. Empty allows all.
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS"`
}

// Client holds the terminal client configuration.
type Client struct {
	URL         string `envconfig:"URL" default:"ws://localhost:8080/ws"`
	JournalPath string `envconfig:"JOURNAL"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"warn"`
}

// LoadServer reads the server configuration.
func LoadServer() (*Server, error) {
	var cfg Server
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load server config: %w", err)
	}
	if cfg.HistoryLimit <= 0 {
		return nil, fmt.Errorf("invalid history limit %d: must be positive", cfg.HistoryLimit)
	}
	return &cfg, nil
}

// LoadClient reads the client configuration.
func LoadClient() (*Client, error) {
	var cfg Client
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load client config: %w", err)
	}
	return &cfg, nil
}
