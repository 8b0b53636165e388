package reachability

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// DefaultEndpoint is probed when no endpoint is configured.
const DefaultEndpoint = "/api/is-reachable"

// ActionNames optionally names the three outcome notifications. An empty name
// suppresses that notification for dispatch-style consumers.
type ActionNames struct {
	Request string `yaml:"request"`
	Success string `yaml:"success"`
	Failure string `yaml:"failure"`
}

// Config holds Monitor configuration. It is copied at construction and never
// mutated afterwards.
type Config struct {
	Endpoint                string            `yaml:"endpoint"`
	BaseURL                 string            `yaml:"base_url"`
	Interval                time.Duration     `yaml:"interval"`
	DoubleIntervalOnFailure bool              `yaml:"double_interval_on_failure"`
	MaxInterval             time.Duration     `yaml:"max_interval"` // 0 means unbounded
	HTTPTimeout             time.Duration     `yaml:"http_timeout"`
	TCPTimeout              time.Duration     `yaml:"tcp_timeout"`
	HTTPHeaders             map[string]string `yaml:"http_headers"`
	NotifyTimeout           time.Duration     `yaml:"notify_timeout"`
	Actions                 ActionNames       `yaml:"actions"`

	// OnStateChange is called with the current snapshot on every notification.
	OnStateChange func(Snapshot) `yaml:"-"`
}

// DefaultConfig returns the defaults of the polling loop.
func DefaultConfig() Config {
	return Config{
		Endpoint:                DefaultEndpoint,
		BaseURL:                 "http://localhost:8080",
		Interval:                10 * time.Second,
		DoubleIntervalOnFailure: true,
		HTTPTimeout:             5 * time.Second,
		TCPTimeout:              3 * time.Second,
		NotifyTimeout:           5 * time.Second,
	}
}

// Validate reports configuration that would make the loop misbehave.
func (c Config) Validate() error {
	if c.Interval <= 0 {
		return errors.New("interval must be positive")
	}
	if c.MaxInterval != 0 && c.MaxInterval < c.Interval {
		return fmt.Errorf("max interval %s is below interval %s", c.MaxInterval, c.Interval)
	}
	if _, err := c.TargetURL(); err != nil {
		return err
	}
	return nil
}

// TargetURL resolves Endpoint against BaseURL when Endpoint is relative.
func (c Config) TargetURL() (*url.URL, error) {
	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	ref, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if ref.IsAbs() {
		return ref, nil
	}

	if c.BaseURL == "" {
		return nil, fmt.Errorf("endpoint %q is relative and no base url is set", endpoint)
	}
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if !base.IsAbs() {
		return nil, fmt.Errorf("base url %q is not absolute", c.BaseURL)
	}
	return base.ResolveReference(ref), nil
}
