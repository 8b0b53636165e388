// Package messaging defines event types and a publisher for MassTransit-compatible
// RabbitMQ message publishing.
package messaging

import "time"

// ReachabilityChangedEvent is published when the monitored endpoint becomes
// reachable or unreachable.
type ReachabilityChangedEvent struct {
	EventID         string    `json:"eventId"`
	Timestamp       time.Time `json:"timestamp"`
	CorrelationID   string    `json:"correlationId,omitempty"`
	MonitorID       string    `json:"monitorId"`
	Target          string    `json:"target"`
	PreviousStatus  string    `json:"previousStatus"`
	CurrentStatus   string    `json:"currentStatus"`
	ProbeOutput     string    `json:"probeOutput,omitempty"`
	NextProbeMillis int64     `json:"nextProbeMillis"`
}

// MonitorResetEvent is published when the probe loop is reset manually.
type MonitorResetEvent struct {
	EventID       string    `json:"eventId"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlationId,omitempty"`
	MonitorID     string    `json:"monitorId"`
	Target        string    `json:"target"`
	RequestedBy   string    `json:"requestedBy,omitempty"`
}
