package reachability

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Endpoint != "/api/is-reachable" {
		t.Errorf("Endpoint = %q, want /api/is-reachable", cfg.Endpoint)
	}
	if cfg.Interval != 10*time.Second {
		t.Errorf("Interval = %v, want 10s", cfg.Interval)
	}
	if !cfg.DoubleIntervalOnFailure {
		t.Error("DoubleIntervalOnFailure should default to true")
	}
	if cfg.MaxInterval != 0 {
		t.Errorf("MaxInterval = %v, want unbounded", cfg.MaxInterval)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestConfig_TargetURL(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		endpoint string
		want     string
		wantErr  bool
	}{
		{name: "relative joined to base", base: "http://api.local:8080", endpoint: "/api/is-reachable", want: "http://api.local:8080/api/is-reachable"},
		{name: "empty endpoint uses default", base: "http://api.local", endpoint: "", want: "http://api.local/api/is-reachable"},
		{name: "absolute endpoint ignores base", base: "http://api.local", endpoint: "https://other.local/ping", want: "https://other.local/ping"},
		{name: "relative without base", base: "", endpoint: "/ping", wantErr: true},
		{name: "relative base", base: "api.local", endpoint: "/ping", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{BaseURL: tt.base, Endpoint: tt.endpoint}
			got, err := cfg.TargetURL()
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("TargetURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "zero interval", mutate: func(c *Config) { c.Interval = 0 }, wantErr: true},
		{name: "negative interval", mutate: func(c *Config) { c.Interval = -time.Second }, wantErr: true},
		{name: "max below interval", mutate: func(c *Config) { c.MaxInterval = time.Second }, wantErr: true},
		{name: "max above interval", mutate: func(c *Config) { c.MaxInterval = time.Minute }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
