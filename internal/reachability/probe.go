package reachability

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"
)

// Prober performs one reachability check. A nil error means reachable.
type Prober interface {
	Probe(ctx context.Context) error
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context) error

func (f ProberFunc) Probe(ctx context.Context) error { return f(ctx) }

// Doer is the subset of *http.Client used by HTTPProber.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPProber issues a GET against a URL and treats any 2xx as reachable.
type HTTPProber struct {
	url     string
	client  Doer
	headers map[string]string
}

// NewHTTPProber creates an HTTPProber. A nil client gets one with the given timeout.
func NewHTTPProber(target string, client Doer, timeout time.Duration, headers map[string]string) *HTTPProber {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPProber{url: target, client: client, headers: headers}
}

func (p *HTTPProber) Probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("request error: %w", err)
	}

	for k, v := range p.headers {
		req.Header.Set(k, v)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("HTTP %d", resp.StatusCode)
}

// TCPProber dials an address and treats an established connection as reachable.
type TCPProber struct {
	addr    string
	timeout time.Duration
}

// NewTCPProber creates a TCPProber for host:port.
func NewTCPProber(addr string, timeout time.Duration) *TCPProber {
	return &TCPProber{addr: addr, timeout: timeout}
}

func (p *TCPProber) Probe(ctx context.Context) error {
	var d net.Dialer
	d.Timeout = p.timeout

	conn, err := d.DialContext(ctx, "tcp", p.addr)
	if err != nil {
		return fmt.Errorf("TCP connection failed: %w", err)
	}
	conn.Close()
	return nil
}

// NewProber picks a prober from the scheme of the configured endpoint:
// tcp://host:port dials, anything else is fetched over HTTP.
func NewProber(cfg Config, client Doer) (Prober, error) {
	target, err := cfg.TargetURL()
	if err != nil {
		return nil, err
	}

	switch target.Scheme {
	case "tcp":
		if target.Port() == "" {
			return nil, fmt.Errorf("tcp endpoint %q has no port", target.String())
		}
		return NewTCPProber(target.Host, cfg.TCPTimeout), nil
	case "http", "https":
		return NewHTTPProber(target.String(), client, cfg.HTTPTimeout, cfg.HTTPHeaders), nil
	default:
		return nil, fmt.Errorf("unsupported endpoint scheme %q", schemeOf(target))
	}
}

func schemeOf(u *url.URL) string {
	if u.Scheme == "" {
		return "(none)"
	}
	return u.Scheme
}
