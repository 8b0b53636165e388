package reachability

import (
	"context"
	"sync"
	"time"
)

// Record is one completed probe as kept by History.
type Record struct {
	At          time.Time
	Reachable   bool
	Message     string
	NextProbeIn time.Duration
}

// History is a thread-safe ring of the most recent probe outcomes.
// It implements Notifier and records success and failure events.
type History struct {
	mu      sync.RWMutex
	records []Record
	next    int
	full    bool
}

// NewHistory creates a History holding at most size records.
func NewHistory(size int) *History {
	if size < 1 {
		size = 1
	}
	return &History{records: make([]Record, size)}
}

func (h *History) Notify(_ context.Context, ev Event) {
	if ev.Kind == EventRequest {
		return
	}
	h.Add(Record{
		At:          ev.State.CheckedAt,
		Reachable:   ev.State.IsReachable,
		Message:     ev.State.Message,
		NextProbeIn: ev.State.CurrentInterval,
	})
}

// Add appends a record, evicting the oldest when full.
func (h *History) Add(r Record) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.records[h.next] = r
	h.next = (h.next + 1) % len(h.records)
	if h.next == 0 {
		h.full = true
	}
}

// All returns the records oldest first.
func (h *History) All() []Record {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.full {
		out := make([]Record, h.next)
		copy(out, h.records[:h.next])
		return out
	}

	out := make([]Record, 0, len(h.records))
	out = append(out, h.records[h.next:]...)
	out = append(out, h.records[:h.next]...)
	return out
}

// Latest returns the most recent record, or nil when nothing was recorded.
func (h *History) Latest() *Record {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.full && h.next == 0 {
		return nil
	}
	i := (h.next - 1 + len(h.records)) % len(h.records)
	r := h.records[i]
	return &r
}

// Since returns the records taken at or after cutoff, oldest first.
func (h *History) Since(cutoff time.Time) []Record {
	var out []Record
	for _, r := range h.All() {
		if !r.At.Before(cutoff) {
			out = append(out, r)
		}
	}
	return out
}
