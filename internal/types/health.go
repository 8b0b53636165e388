// Package types defines shared domain types used across internal packages.
package types

// HealthStatus represents the health state of the monitored endpoint as
// reported to external systems.
type HealthStatus int

const (
	HealthUnknown HealthStatus = iota
	HealthHealthy
	HealthUnhealthy
	HealthDegraded
)

func (s HealthStatus) String() string {
	switch s {
	case HealthHealthy:
		return "Healthy"
	case HealthUnhealthy:
		return "Unhealthy"
	case HealthDegraded:
		return "Degraded"
	default:
		return "Unknown"
	}
}

// FromReachable maps a probe outcome to a health status.
func FromReachable(reachable bool) HealthStatus {
	if reachable {
		return HealthHealthy
	}
	return HealthUnhealthy
}
