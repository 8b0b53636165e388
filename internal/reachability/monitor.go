// Package reachability implements a polling monitor that periodically checks
// whether a remote endpoint is reachable, backing off exponentially while it is not.
//
// The monitor is bound to the lifetime of a host: the host calls Attach when it
// starts observing and Detach when it goes away. Between those calls the monitor
// probes the endpoint, schedules the next probe and reports every outcome to its
// notifiers. Probe failures are never returned to the host; they only flip
// IsReachable and lengthen the delay.
package reachability

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Phase is the scheduling state of the polling loop.
type Phase int

const (
	PhaseIdle      Phase = iota // not polling
	PhaseProbing                // a probe is in flight
	PhaseScheduled              // waiting for the next probe
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseProbing:
		return "probing"
	case PhaseScheduled:
		return "scheduled"
	default:
		return "unknown"
	}
}

// Snapshot is an immutable copy of the monitor state.
type Snapshot struct {
	IsLoading           bool
	IsReachable         bool
	CurrentInterval     time.Duration
	Phase               Phase
	CheckedAt           time.Time
	Message             string
	ConsecutiveFailures int
}

type pollState struct {
	currentInterval     time.Duration
	isLoading           bool
	isReachable         bool
	checkedAt           time.Time
	message             string
	consecutiveFailures int
}

// Option customises a Monitor.
type Option func(*Monitor)

// WithClock replaces the wall clock used for scheduling.
func WithClock(c clock.Clock) Option {
	return func(m *Monitor) { m.clock = c }
}

// WithNotifier adds a notifier. It may be given more than once.
func WithNotifier(n Notifier) Option {
	return func(m *Monitor) { m.notifiers = append(m.notifiers, n) }
}

// Monitor owns the probe-and-reschedule loop for a single endpoint.
type Monitor struct {
	config    Config
	target    string
	prober    Prober
	notifiers Notifiers
	clock     clock.Clock
	logger    *slog.Logger

	mu     sync.Mutex
	state  pollState
	phase  Phase
	gen    uint64 // bumped on every stop; callbacks from older generations are ignored
	timer  *clock.Timer
	cancel context.CancelFunc

	// emitMu orders deliveries across generations: an outcome is either
	// delivered before the next generation's request or dropped.
	emitMu sync.Mutex
	wg     sync.WaitGroup
}

// NewMonitor creates an idle Monitor. A nil prober is built from the
// configured endpoint with NewProber.
func NewMonitor(config Config, prober Prober, logger *slog.Logger, opts ...Option) (*Monitor, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid monitor config: %w", err)
	}

	target, err := config.TargetURL()
	if err != nil {
		return nil, err
	}

	if prober == nil {
		prober, err = NewProber(config, nil)
		if err != nil {
			return nil, err
		}
	}

	m := &Monitor{
		config: config,
		target: target.String(),
		prober: prober,
		clock:  clock.New(),
		logger: logger,
		state:  initialState(config),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func initialState(config Config) pollState {
	return pollState{
		currentInterval: config.Interval,
		isReachable:     true,
	}
}

// Target returns the resolved URL or address being probed.
func (m *Monitor) Target() string { return m.target }

// Attach binds the monitor to its host: state is reinitialised and polling starts.
func (m *Monitor) Attach() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked()
	m.state = initialState(m.config)
	m.logger.Info("reachability monitor attached",
		"target", m.target,
		"interval", m.config.Interval,
		"double_interval_on_failure", m.config.DoubleIntervalOnFailure,
	)
	m.startLocked()
}

// Detach unbinds the monitor from its host. No probe is issued afterwards.
func (m *Monitor) Detach() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked()
	m.logger.Info("reachability monitor detached", "target", m.target)
}

// Close detaches the monitor and waits for an in-flight probe goroutine to return.
func (m *Monitor) Close() {
	m.Detach()
	m.wg.Wait()
}

// Start issues a probe immediately unless the loop is already running.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.startLocked()
}

// Stop cancels the pending probe and marks the next Start as a fast retry by
// halving the current interval. IsLoading and IsReachable are left untouched.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked()
}

// Reset restarts the loop immediately, bypassing the current backoff.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked()
	m.logger.Info("reachability monitor reset", "target", m.target)
	m.startLocked()
}

// Snapshot returns a copy of the current state.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.snapshotLocked()
}

func (m *Monitor) snapshotLocked() Snapshot {
	return Snapshot{
		IsLoading:           m.state.isLoading,
		IsReachable:         m.state.isReachable,
		CurrentInterval:     m.state.currentInterval,
		Phase:               m.phase,
		CheckedAt:           m.state.checkedAt,
		Message:             m.state.message,
		ConsecutiveFailures: m.state.consecutiveFailures,
	}
}

func (m *Monitor) startLocked() {
	if m.phase != PhaseIdle {
		return
	}
	m.launchLocked(m.gen)
}

func (m *Monitor) launchLocked(gen uint64) {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.timer = nil
	m.phase = PhaseProbing

	m.wg.Add(1)
	go m.run(ctx, gen)
}

func (m *Monitor) stopLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.gen++
	m.phase = PhaseIdle
	m.state.currentInterval = m.config.Interval / 2
}

// fire runs on the timer goroutine when the scheduled delay has elapsed.
func (m *Monitor) fire(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen || m.phase != PhaseScheduled {
		return
	}
	m.launchLocked(gen)
}

func (m *Monitor) run(ctx context.Context, gen uint64) {
	defer m.wg.Done()

	snap, ok := m.beginProbe(gen)
	if !ok {
		return
	}
	if !m.emitCurrent(gen, EventRequest, snap) {
		return
	}

	err := m.prober.Probe(ctx)

	snap, ok = m.finishProbe(gen, err)
	if !ok {
		m.logger.Debug("discarding probe result after stop", "target", m.target, "error", err)
		return
	}

	kind := EventFailure
	if snap.IsReachable {
		kind = EventSuccess
	}
	if !m.emitCurrent(gen, kind, snap) {
		m.logger.Debug("dropping stale probe outcome", "target", m.target, "kind", kind.String())
		return
	}

	m.schedule(gen)
}

func (m *Monitor) beginProbe(gen uint64) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		return Snapshot{}, false
	}
	m.state.isLoading = true
	return m.snapshotLocked(), true
}

func (m *Monitor) finishProbe(gen uint64, err error) (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		return Snapshot{}, false
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}

	reachable := err == nil
	wasReachable := m.state.isReachable

	m.state.isLoading = false
	m.state.isReachable = reachable
	m.state.checkedAt = m.clock.Now()
	if reachable {
		m.state.message = "reachable"
		m.state.consecutiveFailures = 0
	} else {
		m.state.message = err.Error()
		m.state.consecutiveFailures++
	}
	m.state.currentInterval = m.nextInterval(reachable)

	if wasReachable != reachable {
		m.logger.Info("reachability changed",
			"target", m.target,
			"reachable", reachable,
			"message", m.state.message,
			"next_interval", m.state.currentInterval,
		)
	} else {
		m.logger.Debug("probe completed",
			"target", m.target,
			"reachable", reachable,
			"next_interval", m.state.currentInterval,
		)
	}

	return m.snapshotLocked(), true
}

// nextInterval applies the backoff policy to the current interval.
func (m *Monitor) nextInterval(reachable bool) time.Duration {
	if reachable || !m.config.DoubleIntervalOnFailure {
		return m.config.Interval
	}

	next := m.state.currentInterval
	if next > math.MaxInt64/2 {
		next = math.MaxInt64
	} else {
		next *= 2
	}
	if m.config.MaxInterval > 0 && next > m.config.MaxInterval {
		next = m.config.MaxInterval
	}
	return next
}

func (m *Monitor) schedule(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen {
		return
	}
	m.phase = PhaseScheduled
	m.timer = m.clock.AfterFunc(m.state.currentInterval, func() { m.fire(gen) })
}

// emitCurrent delivers the event unless gen was stopped while waiting for an
// earlier delivery to finish.
func (m *Monitor) emitCurrent(gen uint64, kind EventKind, snap Snapshot) bool {
	m.emitMu.Lock()
	defer m.emitMu.Unlock()

	m.mu.Lock()
	current := gen == m.gen
	m.mu.Unlock()
	if !current {
		return false
	}

	m.emit(kind, snap)
	return true
}

func (m *Monitor) emit(kind EventKind, snap Snapshot) {
	if m.config.OnStateChange != nil {
		m.config.OnStateChange(snap)
	}
	if len(m.notifiers) == 0 {
		return
	}

	ctx := context.Background()
	if m.config.NotifyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.config.NotifyTimeout)
		defer cancel()
	}

	m.notifiers.Notify(ctx, Event{
		Kind:   kind,
		Action: m.config.Actions.name(kind),
		State:  snap,
	})
}
