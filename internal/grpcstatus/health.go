// Package grpcstatus exposes the reachability of the monitored endpoint through
// the standard gRPC health checking protocol.
package grpcstatus

import (
	"context"
	"log/slog"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/toska-mesh/reachability/internal/reachability"
)

// Reporter sets the serving status of one service name on a gRPC health
// server: SERVING while the endpoint is reachable, NOT_SERVING otherwise.
type Reporter struct {
	server  *health.Server
	service string
	logger  *slog.Logger
}

// NewReporter creates a Reporter. The service starts SERVING, matching the
// monitor's optimistic initial state.
func NewReporter(server *health.Server, service string, logger *slog.Logger) *Reporter {
	server.SetServingStatus(service, healthpb.HealthCheckResponse_SERVING)
	return &Reporter{server: server, service: service, logger: logger}
}

func (r *Reporter) Notify(_ context.Context, ev reachability.Event) {
	if ev.Kind == reachability.EventRequest {
		return
	}

	status := servingStatus(ev.State.IsReachable)
	r.server.SetServingStatus(r.service, status)
	r.logger.Debug("grpc serving status updated", "service", r.service, "status", status.String())
}

// Shutdown marks every service NOT_SERVING and refuses further updates.
func (r *Reporter) Shutdown() {
	r.server.Shutdown()
}

func servingStatus(reachable bool) healthpb.HealthCheckResponse_ServingStatus {
	if reachable {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}
