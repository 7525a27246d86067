// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/webhook-chat/internal/lifecycle"
)

// Config holds all application configuration.
type Config struct {
	Port           string
	FrontendURL    string
	AllowedOrigins []string
	DBPath         string
	Relay          RelayConfig
	Session        SessionConfig
	WidgetConfig   string // optional YAML presentation override
}

// RelayConfig controls the webhook relay.
type RelayConfig struct {
	// WebhookURL is the backend address. It never leaves the server.
	WebhookURL  string
	Timeout     time.Duration // 0 = no timeout
	MaxBodySize int64
}

// SessionConfig controls page sessions and their persisted records.
type SessionConfig struct {
	CompletionMarker string
	MountAckTimeout  time.Duration
	Retention        time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		FrontendURL:    getEnv("FRONTEND_URL", ""),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"*"}),
		DBPath:         getEnv("DB_PATH", "./data/sessions.db"),
		Relay: RelayConfig{
			WebhookURL:  strings.TrimSpace(getEnv("N8N_WEBHOOK_URL", "")),
			Timeout:     getEnvDuration("RELAY_TIMEOUT", 0),
			MaxBodySize: int64(getEnvInt("RELAY_MAX_BODY_BYTES", 1<<20)),
		},
		Session: SessionConfig{
			CompletionMarker: getEnv("COMPLETION_MARKER", lifecycle.DefaultMarkerHost),
			MountAckTimeout:  getEnvDuration("MOUNT_ACK_TIMEOUT", 30*time.Second),
			Retention:        getEnvDuration("SESSION_RETENTION", 30*24*time.Hour),
		},
		WidgetConfig: getEnv("WIDGET_CONFIG_PATH", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set. A missing
// webhook URL is not an error: the relay fails closed per request instead.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Relay.Timeout < 0 {
		return fmt.Errorf("RELAY_TIMEOUT cannot be negative")
	}
	if c.Relay.MaxBodySize <= 0 {
		return fmt.Errorf("RELAY_MAX_BODY_BYTES must be > 0")
	}
	if strings.TrimSpace(c.Session.CompletionMarker) == "" {
		return fmt.Errorf("COMPLETION_MARKER cannot be empty")
	}
	if c.Session.MountAckTimeout <= 0 {
		return fmt.Errorf("MOUNT_ACK_TIMEOUT must be > 0")
	}
	if c.Session.Retention <= 0 {
		return fmt.Errorf("SESSION_RETENTION must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
