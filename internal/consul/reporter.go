package consul

import (
	"context"
	"log/slog"

	"github.com/toska-mesh/reachability/internal/reachability"
	"github.com/toska-mesh/reachability/internal/types"
)

type healthUpdater interface {
	UpdateHealth(serviceID string, status HealthStatus, output string) error
}

// Reporter passes or fails the TTL check of a registered service on every
// completed probe.
type Reporter struct {
	updater   healthUpdater
	serviceID string
	logger    *slog.Logger
}

// NewReporter creates a Reporter for serviceID.
func NewReporter(registry *Registry, serviceID string, logger *slog.Logger) *Reporter {
	return &Reporter{updater: registry, serviceID: serviceID, logger: logger}
}

func (r *Reporter) Notify(_ context.Context, ev reachability.Event) {
	if ev.Kind == reachability.EventRequest {
		return
	}

	status := types.FromReachable(ev.State.IsReachable)
	if err := r.updater.UpdateHealth(r.serviceID, status, ev.State.Message); err != nil {
		r.logger.Warn("consul health update failed",
			"service_id", r.serviceID,
			"status", status.String(),
			"error", err,
		)
	}
}
