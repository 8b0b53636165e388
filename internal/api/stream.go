package api

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/toska-mesh/reachability/internal/reachability"
)

const streamWriteTimeout = 5 * time.Second

var streamUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := strings.ToLower(strings.TrimSpace(r.Host))
		originHost := strings.ToLower(strings.TrimSpace(u.Host))
		return host == originHost
	},
}

// Stream pushes a status payload to WebSocket clients on every monitor event.
// Slow clients only ever see the latest snapshot.
type Stream struct {
	logger *slog.Logger

	mu   sync.Mutex
	subs map[chan reachability.Snapshot]struct{}
}

// NewStream creates a Stream with no subscribers.
func NewStream(logger *slog.Logger) *Stream {
	return &Stream{
		logger: logger,
		subs:   make(map[chan reachability.Snapshot]struct{}),
	}
}

func (s *Stream) Notify(_ context.Context, ev reachability.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for ch := range s.subs {
		select {
		case ch <- ev.State:
		default:
			// Replace the stale snapshot; only Notify sends, under s.mu.
			select {
			case <-ch:
			default:
			}
			ch <- ev.State
		}
	}
}

// Subscribers returns the number of connected clients.
func (s *Stream) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Stream) subscribe() chan reachability.Snapshot {
	ch := make(chan reachability.Snapshot, 1)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()
	return ch
}

func (s *Stream) unsubscribe(ch chan reachability.Snapshot) {
	s.mu.Lock()
	delete(s.subs, ch)
	s.mu.Unlock()
}

func (s *Stream) serve(w http.ResponseWriter, r *http.Request, target string, current reachability.Snapshot) {
	conn, err := streamUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("status stream upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	updates := s.subscribe()
	defer s.unsubscribe(updates)

	if err := writeStatusPayload(conn, newStatusResponse(target, current)); err != nil {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case snap := <-updates:
			if err := writeStatusPayload(conn, newStatusResponse(target, snap)); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func writeStatusPayload(conn *websocket.Conn, payload statusResponse) error {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	return conn.WriteJSON(payload)
}
