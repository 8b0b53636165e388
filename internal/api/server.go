// Package api serves the reachability monitor state over HTTP: a status
// snapshot, recent probe history, a manual reset trigger, a WebSocket status
// stream and the Prometheus scrape endpoint.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/toska-mesh/reachability/internal/config"
	"github.com/toska-mesh/reachability/internal/reachability"
)

// Monitor is the part of reachability.Monitor the API needs.
type Monitor interface {
	Snapshot() reachability.Snapshot
	Reset()
	Target() string
}

// Options wires optional collaborators into the Server.
type Options struct {
	History    *reachability.History
	Stream     *Stream
	Metrics    http.Handler
	CORS       config.CORSConfig
	ResetLimit config.RateLimitConfig

	// OnReset runs after every accepted manual reset.
	OnReset func(ctx context.Context, requestedBy string)
}

// Server is the HTTP host surface of the monitor.
type Server struct {
	monitor Monitor
	opts    Options
	logger  *slog.Logger
}

// NewServer creates an API server for monitor.
func NewServer(monitor Monitor, opts Options, logger *slog.Logger) *Server {
	return &Server{monitor: monitor, opts: opts, logger: logger}
}

type statusResponse struct {
	Target              string     `json:"target"`
	IsLoading           bool       `json:"isLoading"`
	IsReachable         bool       `json:"isReachable"`
	CurrentIntervalMs   int64      `json:"currentIntervalMs"`
	Phase               string     `json:"phase"`
	CheckedAt           *time.Time `json:"checkedAt,omitempty"`
	Message             string     `json:"message,omitempty"`
	ConsecutiveFailures int        `json:"consecutiveFailures"`
}

type historyEntry struct {
	At            time.Time `json:"at"`
	Reachable     bool      `json:"reachable"`
	Message       string    `json:"message,omitempty"`
	NextProbeInMs int64     `json:"nextProbeInMs"`
}

func newStatusResponse(target string, s reachability.Snapshot) statusResponse {
	resp := statusResponse{
		Target:              target,
		IsLoading:           s.IsLoading,
		IsReachable:         s.IsReachable,
		CurrentIntervalMs:   s.CurrentInterval.Milliseconds(),
		Phase:               s.Phase.String(),
		Message:             s.Message,
		ConsecutiveFailures: s.ConsecutiveFailures,
	}
	if !s.CheckedAt.IsZero() {
		at := s.CheckedAt.UTC()
		resp.CheckedAt = &at
	}
	return resp
}

// Handler returns the full handler chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "Healthy"})
	})

	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/history", s.handleHistory)

	var reset http.Handler = http.HandlerFunc(s.handleReset)
	if s.opts.ResetLimit.Enabled {
		reset = NewResetLimiter(s.opts.ResetLimit.PerMinute, s.opts.ResetLimit.Burst).Middleware(reset)
	}
	mux.Handle("POST /api/reset", reset)

	if s.opts.Stream != nil {
		mux.HandleFunc("GET /api/status/ws", func(w http.ResponseWriter, r *http.Request) {
			s.opts.Stream.serve(w, r, s.monitor.Target(), s.monitor.Snapshot())
		})
	}

	if s.opts.Metrics != nil {
		mux.Handle("GET /metrics", s.opts.Metrics)
	}

	// Compose middleware stack (outermost last).
	var handler http.Handler = mux
	handler = CORS(s.opts.CORS)(handler)
	handler = RequestLogging(s.logger, handler)
	return handler
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newStatusResponse(s.monitor.Target(), s.monitor.Snapshot()))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	out := make([]historyEntry, 0)
	if s.opts.History != nil {
		for _, rec := range s.opts.History.All() {
			out = append(out, historyEntry{
				At:            rec.At.UTC(),
				Reachable:     rec.Reachable,
				Message:       rec.Message,
				NextProbeInMs: rec.NextProbeIn.Milliseconds(),
			})
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	requestedBy := clientIPAddress(r)

	s.monitor.Reset()
	s.logger.Info("manual reset requested", "client_ip", requestedBy, "target", s.monitor.Target())

	if s.opts.OnReset != nil {
		s.opts.OnReset(r.Context(), requestedBy)
	}

	writeJSON(w, http.StatusAccepted, newStatusResponse(s.monitor.Target(), s.monitor.Snapshot()))
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
