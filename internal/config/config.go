// Package config loads the reachability service configuration from an optional
// YAML file overlaid with environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/toska-mesh/reachability/internal/reachability"
)

// Config holds all service runtime configuration.
type Config struct {
	Port        string `yaml:"port"`
	GRPCPort    string `yaml:"grpc_port"`
	ConsulAddr  string `yaml:"consul_address"` // empty disables registration
	// ConsulDeregisterAfter lets Consul drop the registration after its check
	// stays critical this long. Zero never drops it.
	ConsulDeregisterAfter time.Duration `yaml:"consul_deregister_critical_after"`
	RabbitURL   string `yaml:"rabbitmq_url"`   // empty uses a no-op publisher
	ServiceName string `yaml:"service_name"`
	ServiceID   string `yaml:"service_id"`
	HistorySize int    `yaml:"history_size"`

	Monitor    reachability.Config `yaml:"monitor"`
	CORS       CORSConfig          `yaml:"cors"`
	ResetLimit RateLimitConfig     `yaml:"reset_rate_limit"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	AllowAnyOrigin bool     `yaml:"allow_any_origin"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	AllowedMethods []string `yaml:"allowed_methods"`
}

// RateLimitConfig limits manual resets per client IP.
type RateLimitConfig struct {
	Enabled   bool `yaml:"enabled"`
	PerMinute int  `yaml:"per_minute"`
	Burst     int  `yaml:"burst"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "local"
	}

	return Config{
		Port:        "8090",
		GRPCPort:    "8091",
		ServiceName: "reachability",
		ServiceID:   "reachability-" + hostname,
		HistorySize: 100,
		Monitor:     reachability.DefaultConfig(),
		CORS: CORSConfig{
			AllowAnyOrigin: true,
			AllowedHeaders: []string{"Content-Type"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		},
		ResetLimit: RateLimitConfig{
			Enabled:   true,
			PerMinute: 6,
			Burst:     2,
		},
	}
}

// Load reads configuration from a YAML file. A missing file or empty path
// falls back to defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables read through getenv onto cfg.
func ApplyEnv(cfg *Config, getenv func(string) string) {
	if v := getenv("REACHABILITY_PORT"); v != "" {
		cfg.Port = v
	}
	if v := getenv("REACHABILITY_GRPC_PORT"); v != "" {
		cfg.GRPCPort = v
	}
	if v := getenv("CONSUL_ADDRESS"); v != "" {
		cfg.ConsulAddr = v
	}
	if v := getenv("RABBITMQ_URL"); v != "" {
		cfg.RabbitURL = v
	}
	if v := getenv("REACHABILITY_SERVICE_NAME"); v != "" {
		cfg.ServiceName = v
	}
	if v := getenv("REACHABILITY_SERVICE_ID"); v != "" {
		cfg.ServiceID = v
	}
	if v, err := strconv.Atoi(getenv("CONSUL_DEREGISTER_CRITICAL_AFTER_SECONDS")); err == nil && v >= 0 {
		cfg.ConsulDeregisterAfter = time.Duration(v) * time.Second
	}
	if v, err := strconv.Atoi(getenv("REACHABILITY_HISTORY_SIZE")); err == nil && v > 0 {
		cfg.HistorySize = v
	}

	// Monitor.
	if v := getenv("REACHABILITY_ENDPOINT"); v != "" {
		cfg.Monitor.Endpoint = v
	}
	if v := getenv("REACHABILITY_BASE_URL"); v != "" {
		cfg.Monitor.BaseURL = v
	}
	if v, err := strconv.Atoi(getenv("REACHABILITY_INTERVAL_MS")); err == nil && v > 0 {
		cfg.Monitor.Interval = time.Duration(v) * time.Millisecond
	}
	if v, err := strconv.Atoi(getenv("REACHABILITY_MAX_INTERVAL_MS")); err == nil && v >= 0 {
		cfg.Monitor.MaxInterval = time.Duration(v) * time.Millisecond
	}
	if v, err := strconv.ParseBool(getenv("REACHABILITY_DOUBLE_INTERVAL_ON_FAILURE")); err == nil {
		cfg.Monitor.DoubleIntervalOnFailure = v
	}
	if v, err := strconv.Atoi(getenv("REACHABILITY_HTTP_TIMEOUT_SECONDS")); err == nil && v > 0 {
		cfg.Monitor.HTTPTimeout = time.Duration(v) * time.Second
	}
	if v, err := strconv.Atoi(getenv("REACHABILITY_TCP_TIMEOUT_SECONDS")); err == nil && v > 0 {
		cfg.Monitor.TCPTimeout = time.Duration(v) * time.Second
	}
	if v, err := strconv.Atoi(getenv("REACHABILITY_NOTIFY_TIMEOUT_SECONDS")); err == nil && v >= 0 {
		cfg.Monitor.NotifyTimeout = time.Duration(v) * time.Second
	}
	if v := getenv("REACHABILITY_HTTP_HEADERS"); v != "" {
		cfg.Monitor.HTTPHeaders = parseHeaders(v)
	}

	// CORS.
	if getenv("REACHABILITY_CORS_ALLOW_ANY_ORIGIN") == "false" {
		cfg.CORS.AllowAnyOrigin = false
	}
	if v := getenv("REACHABILITY_CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.CORS.AllowedOrigins = splitComma(v)
	}

	// Reset rate limit.
	if getenv("REACHABILITY_RESET_RATE_LIMIT_ENABLED") == "false" {
		cfg.ResetLimit.Enabled = false
	}
	if v, err := strconv.Atoi(getenv("REACHABILITY_RESET_RATE_LIMIT_PER_MINUTE")); err == nil && v > 0 {
		cfg.ResetLimit.PerMinute = v
	}
	if v, err := strconv.Atoi(getenv("REACHABILITY_RESET_RATE_LIMIT_BURST")); err == nil && v > 0 {
		cfg.ResetLimit.Burst = v
	}
}

// Validate reports configuration the service cannot start with.
func (c Config) Validate() error {
	if err := validPort(c.Port); err != nil {
		return fmt.Errorf("port: %w", err)
	}
	if err := validPort(c.GRPCPort); err != nil {
		return fmt.Errorf("grpc port: %w", err)
	}
	if c.ServiceName == "" {
		return errors.New("service name must be set")
	}
	if c.ResetLimit.Enabled && c.ResetLimit.PerMinute <= 0 {
		return errors.New("reset rate limit must be positive when enabled")
	}
	if err := c.Monitor.Validate(); err != nil {
		return fmt.Errorf("monitor: %w", err)
	}
	return nil
}

func validPort(port string) error {
	if port == "" {
		return errors.New("must be set")
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("%q is not a TCP port", port)
	}
	return nil
}

// parseHeaders reads "Name=value" pairs separated by commas.
func parseHeaders(s string) map[string]string {
	headers := make(map[string]string)
	for _, pair := range splitComma(s) {
		name, value, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			continue
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers
}

func splitComma(s string) []string {
	parts := make([]string, 0)
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}
