// Package consul registers the reachability monitor with HashiCorp Consul and
// mirrors every probe outcome into a TTL health check.
package consul

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/consul/api"

	"github.com/toska-mesh/reachability/internal/types"
)

// HealthStatus is an alias for the shared health status type.
type HealthStatus = types.HealthStatus

// Registration contains the information needed to register the monitor.
type Registration struct {
	ServiceName   string
	ServiceID     string
	Address       string
	Port          int
	Metadata      map[string]string
	CheckInterval time.Duration
	// DeregisterCriticalAfter lets Consul drop the service once its check has
	// been critical this long. Zero keeps the registration.
	DeregisterCriticalAfter time.Duration
}

// agent is the subset of *api.Agent used by Registry.
type agent interface {
	ServiceRegister(service *api.AgentServiceRegistration) error
	ServiceDeregister(serviceID string) error
	PassTTL(checkID, note string) error
	WarnTTL(checkID, note string) error
	FailTTL(checkID, note string) error
}

// Registry is a Consul-backed service registration with a TTL check.
type Registry struct {
	agent  agent
	logger *slog.Logger

	mu         sync.Mutex
	registered map[string]Registration
}

// NewRegistry creates a Registry using the provided Consul address.
func NewRegistry(addr string, logger *slog.Logger) (*Registry, error) {
	cfg := api.DefaultConfig()
	if addr != "" {
		cfg.Address = addr
	}

	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("consul client: %w", err)
	}

	return newRegistry(client.Agent(), logger), nil
}

func newRegistry(a agent, logger *slog.Logger) *Registry {
	return &Registry{
		agent:      a,
		logger:     logger,
		registered: make(map[string]Registration),
	}
}

// Register registers the service with Consul using a TTL health check.
// The check starts passing; the first probe outcome overrides it.
func (r *Registry) Register(reg Registration) error {
	if err := r.agent.ServiceRegister(buildRegistration(reg)); err != nil {
		return fmt.Errorf("consul register: %w", err)
	}

	r.mu.Lock()
	r.registered[reg.ServiceID] = reg
	r.mu.Unlock()

	if err := r.agent.PassTTL(checkID(reg.ServiceID), "Service registered"); err != nil {
		r.logger.Warn("failed to pass initial TTL", "service_id", reg.ServiceID, "error", err)
	}

	r.logger.Info("registered service", "service_id", reg.ServiceID, "service_name", reg.ServiceName)
	return nil
}

func buildRegistration(reg Registration) *api.AgentServiceRegistration {
	check := &api.AgentServiceCheck{
		CheckID: checkID(reg.ServiceID),
		Name:    fmt.Sprintf("%s reachability", reg.ServiceName),
		TTL:     checkTTL(reg.CheckInterval).String(),
	}
	if reg.DeregisterCriticalAfter > 0 {
		check.DeregisterCriticalServiceAfter = reg.DeregisterCriticalAfter.String()
	}

	return &api.AgentServiceRegistration{
		ID:      reg.ServiceID,
		Name:    reg.ServiceName,
		Address: reg.Address,
		Port:    reg.Port,
		Meta:    reg.Metadata,
		Check:   check,
	}
}

// Deregister removes the service from Consul.
func (r *Registry) Deregister(serviceID string) error {
	r.mu.Lock()
	delete(r.registered, serviceID)
	r.mu.Unlock()

	if err := r.agent.ServiceDeregister(serviceID); err != nil {
		return fmt.Errorf("consul deregister: %w", err)
	}

	r.logger.Info("deregistered service", "service_id", serviceID)
	return nil
}

// UpdateHealth updates the TTL health check status for a service. A check the
// agent no longer knows about is registered again from the last Register call.
func (r *Registry) UpdateHealth(serviceID string, status HealthStatus, output string) error {
	err := r.updateTTL(serviceID, status, output)
	if err == nil || !isUnknownCheck(err) {
		return err
	}

	r.mu.Lock()
	reg, ok := r.registered[serviceID]
	r.mu.Unlock()
	if !ok {
		return err
	}

	r.logger.Warn("health check missing, registering again", "service_id", serviceID, "error", err)
	if err := r.agent.ServiceRegister(buildRegistration(reg)); err != nil {
		return fmt.Errorf("consul re-register: %w", err)
	}
	return r.updateTTL(serviceID, status, output)
}

func (r *Registry) updateTTL(serviceID string, status HealthStatus, output string) error {
	id := checkID(serviceID)

	switch status {
	case types.HealthHealthy:
		return r.agent.PassTTL(id, output)
	case types.HealthUnhealthy:
		return r.agent.FailTTL(id, output)
	case types.HealthDegraded:
		return r.agent.WarnTTL(id, output)
	default:
		return r.agent.PassTTL(id, output)
	}
}

// isUnknownCheck matches the agent's reply for a TTL update on a check it does
// not have, e.g. after the service was deregistered or the agent restarted.
func isUnknownCheck(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unknown check") || strings.Contains(msg, "does not have associated ttl")
}

func checkID(serviceID string) string {
	return fmt.Sprintf("service:%s", serviceID)
}

// checkTTL is the reporting interval plus a buffer, never below 10s. A monitor
// backing off past that interval lets the check go critical.
func checkTTL(interval time.Duration) time.Duration {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ttl := interval + 5*time.Second
	if ttl < 10*time.Second {
		ttl = 10 * time.Second
	}
	return ttl
}
