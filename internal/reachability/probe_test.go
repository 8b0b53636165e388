package reachability

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPProber_Healthy(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	p := NewHTTPProber(ts.URL+"/api/is-reachable", ts.Client(), 0, nil)
	if err := p.Probe(context.Background()); err != nil {
		t.Fatalf("expected reachable, got %v", err)
	}
}

func TestHTTPProber_NonSuccessStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	p := NewHTTPProber(ts.URL, ts.Client(), 0, nil)
	err := p.Probe(context.Background())
	if err == nil {
		t.Fatal("expected error for 503")
	}
	if !strings.Contains(err.Error(), "503") {
		t.Fatalf("expected message to contain 503, got %q", err)
	}
}

func TestHTTPProber_SendsHeaders(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Probe") != "reachability" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	p := NewHTTPProber(ts.URL, ts.Client(), 0, map[string]string{"X-Probe": "reachability"})
	if err := p.Probe(context.Background()); err != nil {
		t.Fatalf("expected reachable, got %v", err)
	}
}

func TestHTTPProber_ConnectionRefused(t *testing.T) {
	p := NewHTTPProber("http://127.0.0.1:19999/health", nil, 1*time.Second, nil) // nothing listening
	if err := p.Probe(context.Background()); err == nil {
		t.Fatal("expected error for connection refused")
	}
}

func TestHTTPProber_Timeout(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer ts.Close()
	defer close(release)

	p := NewHTTPProber(ts.URL, nil, 50*time.Millisecond, nil)
	if err := p.Probe(context.Background()); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestHTTPProber_ContextCancelled(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewHTTPProber(ts.URL, ts.Client(), 0, nil)
	err := p.Probe(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestTCPProber(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := lis.Addr().String()

	p := NewTCPProber(addr, time.Second)
	if err := p.Probe(context.Background()); err != nil {
		t.Fatalf("expected reachable, got %v", err)
	}

	lis.Close()
	if err := p.Probe(context.Background()); err == nil {
		t.Fatal("expected error after listener closed")
	}
}

func TestNewProber(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		want     string
		wantErr  bool
	}{
		{name: "relative endpoint uses http", endpoint: "/api/is-reachable", want: "http"},
		{name: "absolute https", endpoint: "https://example.com/ping", want: "http"},
		{name: "tcp with port", endpoint: "tcp://db.internal:5432", want: "tcp"},
		{name: "tcp without port", endpoint: "tcp://db.internal", wantErr: true},
		{name: "unsupported scheme", endpoint: "ftp://example.com", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Endpoint = tt.endpoint

			p, err := NewProber(cfg, nil)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.endpoint)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var got string
			switch p.(type) {
			case *HTTPProber:
				got = "http"
			case *TCPProber:
				got = "tcp"
			}
			if got != tt.want {
				t.Errorf("NewProber(%q) kind = %q, want %q", tt.endpoint, got, tt.want)
			}
		})
	}
}
