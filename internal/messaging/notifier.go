package messaging

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/toska-mesh/reachability/internal/reachability"
	"github.com/toska-mesh/reachability/internal/types"
)

type eventPublisher interface {
	Publish(ctx context.Context, event any) error
}

// TransitionNotifier publishes a ReachabilityChangedEvent whenever a probe
// outcome differs from the previous one. The monitor starts out reachable, so
// an initial failure is a transition.
type TransitionNotifier struct {
	publisher eventPublisher
	monitorID string
	target    string
	logger    *slog.Logger

	mu       sync.Mutex
	previous types.HealthStatus
}

// NewTransitionNotifier creates a notifier publishing through p.
func NewTransitionNotifier(p *Publisher, monitorID, target string, logger *slog.Logger) *TransitionNotifier {
	return newTransitionNotifier(p, monitorID, target, logger)
}

func newTransitionNotifier(p eventPublisher, monitorID, target string, logger *slog.Logger) *TransitionNotifier {
	return &TransitionNotifier{
		publisher: p,
		monitorID: monitorID,
		target:    target,
		logger:    logger,
		previous:  types.HealthHealthy,
	}
}

func (n *TransitionNotifier) Notify(ctx context.Context, ev reachability.Event) {
	if ev.Kind == reachability.EventRequest {
		return
	}

	current := types.FromReachable(ev.State.IsReachable)

	n.mu.Lock()
	previous := n.previous
	n.previous = current
	n.mu.Unlock()

	if previous == current {
		return
	}

	err := n.publisher.Publish(ctx, ReachabilityChangedEvent{
		EventID:         generateID(),
		Timestamp:       time.Now().UTC(),
		MonitorID:       n.monitorID,
		Target:          n.target,
		PreviousStatus:  previous.String(),
		CurrentStatus:   current.String(),
		ProbeOutput:     ev.State.Message,
		NextProbeMillis: ev.State.CurrentInterval.Milliseconds(),
	})
	if err != nil {
		n.logger.Warn("publish reachability change failed", "monitor_id", n.monitorID, "error", err)
	}
}

// PublishReset announces a manual reset of the probe loop.
func PublishReset(ctx context.Context, p *Publisher, monitorID, target, requestedBy string) error {
	return p.Publish(ctx, MonitorResetEvent{
		EventID:     generateID(),
		Timestamp:   time.Now().UTC(),
		MonitorID:   monitorID,
		Target:      target,
		RequestedBy: requestedBy,
	})
}
