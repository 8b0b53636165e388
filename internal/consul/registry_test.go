package consul

import (
	"context"
	"errors"
	"log/slog"
	"fmt"
	"testing"
	"time"

	"github.com/hashicorp/consul/api"

	"github.com/toska-mesh/reachability/internal/reachability"
	"github.com/toska-mesh/reachability/internal/types"
)

func TestCheckTTL(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
		want     time.Duration
	}{
		{name: "zero falls back to 30s", interval: 0, want: 35 * time.Second},
		{name: "short interval floors at 10s", interval: 2 * time.Second, want: 10 * time.Second},
		{name: "default interval", interval: 10 * time.Second, want: 15 * time.Second},
		{name: "long interval", interval: time.Minute, want: 65 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := checkTTL(tt.interval); got != tt.want {
				t.Errorf("checkTTL(%v) = %v, want %v", tt.interval, got, tt.want)
			}
		})
	}
}

func TestCheckID(t *testing.T) {
	if got := checkID("reach-1"); got != "service:reach-1" {
		t.Errorf("checkID() = %q, want service:reach-1", got)
	}
}

type updateCall struct {
	serviceID string
	status    HealthStatus
	output    string
}

type fakeUpdater struct {
	calls []updateCall
	err   error
}

func (f *fakeUpdater) UpdateHealth(serviceID string, status HealthStatus, output string) error {
	f.calls = append(f.calls, updateCall{serviceID, status, output})
	return f.err
}

func TestReporter_MirrorsOutcomes(t *testing.T) {
	f := &fakeUpdater{}
	r := &Reporter{updater: f, serviceID: "reach-1", logger: slog.New(slog.DiscardHandler)}

	ctx := context.Background()
	r.Notify(ctx, reachability.Event{Kind: reachability.EventRequest})
	r.Notify(ctx, reachability.Event{Kind: reachability.EventFailure, State: reachability.Snapshot{Message: "HTTP 503"}})
	r.Notify(ctx, reachability.Event{Kind: reachability.EventSuccess, State: reachability.Snapshot{IsReachable: true, Message: "reachable"}})

	want := []updateCall{
		{"reach-1", types.HealthUnhealthy, "HTTP 503"},
		{"reach-1", types.HealthHealthy, "reachable"},
	}
	if len(f.calls) != len(want) {
		t.Fatalf("expected %d updates, got %d", len(want), len(f.calls))
	}
	for i := range want {
		if f.calls[i] != want[i] {
			t.Errorf("update %d = %+v, want %+v", i, f.calls[i], want[i])
		}
	}
}

func TestReporter_SwallowsErrors(t *testing.T) {
	f := &fakeUpdater{err: errors.New("agent unavailable")}
	r := &Reporter{updater: f, serviceID: "reach-1", logger: slog.New(slog.DiscardHandler)}

	r.Notify(context.Background(), reachability.Event{Kind: reachability.EventSuccess, State: reachability.Snapshot{IsReachable: true}})

	if len(f.calls) != 1 {
		t.Fatalf("expected 1 update attempt, got %d", len(f.calls))
	}
}

func TestBuildRegistration(t *testing.T) {
	reg := Registration{
		ServiceName:   "reachability",
		ServiceID:     "reach-1",
		Address:       "10.0.0.5",
		Port:          8090,
		Metadata:      map[string]string{"target": "http://api:8080/api/is-reachable"},
		CheckInterval: 10 * time.Second,
	}

	got := buildRegistration(reg)
	if got.ID != "reach-1" || got.Name != "reachability" || got.Port != 8090 || got.Address != "10.0.0.5" {
		t.Errorf("unexpected service fields: %+v", got)
	}
	if got.Check == nil {
		t.Fatal("expected a TTL check")
	}
	if got.Check.CheckID != "service:reach-1" {
		t.Errorf("CheckID = %q, want service:reach-1", got.Check.CheckID)
	}
	if got.Check.TTL != "15s" {
		t.Errorf("TTL = %q, want 15s", got.Check.TTL)
	}
	if got.Check.DeregisterCriticalServiceAfter != "" {
		t.Errorf("DeregisterCriticalServiceAfter = %q, want unset", got.Check.DeregisterCriticalServiceAfter)
	}

	reg.DeregisterCriticalAfter = time.Hour
	if got := buildRegistration(reg).Check.DeregisterCriticalServiceAfter; got != "1h0m0s" {
		t.Errorf("DeregisterCriticalServiceAfter = %q, want 1h0m0s", got)
	}
}

// fakeAgent drops the TTL check whenever knownCheck is false, like a Consul
// agent that deregistered the service.
type fakeAgent struct {
	registrations []*api.AgentServiceRegistration
	ttlCalls      []string
	knownCheck    bool
}

func (a *fakeAgent) ServiceRegister(s *api.AgentServiceRegistration) error {
	a.registrations = append(a.registrations, s)
	a.knownCheck = true
	return nil
}

func (a *fakeAgent) ServiceDeregister(string) error {
	a.knownCheck = false
	return nil
}

func (a *fakeAgent) ttl(kind, checkID string) error {
	a.ttlCalls = append(a.ttlCalls, kind)
	if !a.knownCheck {
		return fmt.Errorf("Unexpected response code: 404 (Unknown check ID %q. Ensure that the check ID is passed, not the check name.)", checkID)
	}
	return nil
}

func (a *fakeAgent) PassTTL(checkID, _ string) error { return a.ttl("pass", checkID) }
func (a *fakeAgent) WarnTTL(checkID, _ string) error { return a.ttl("warn", checkID) }
func (a *fakeAgent) FailTTL(checkID, _ string) error { return a.ttl("fail", checkID) }

func TestRegistry_UpdateHealthRegistersMissingCheck(t *testing.T) {
	a := &fakeAgent{}
	r := newRegistry(a, slog.New(slog.DiscardHandler))

	reg := Registration{ServiceName: "reachability", ServiceID: "reach-1", CheckInterval: 10 * time.Second}
	if err := r.Register(reg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	// Consul removed the service behind our back.
	a.knownCheck = false

	if err := r.UpdateHealth("reach-1", types.HealthUnhealthy, "HTTP 503"); err != nil {
		t.Fatalf("UpdateHealth() error = %v", err)
	}
	if len(a.registrations) != 2 {
		t.Fatalf("expected the service to be registered again, got %d registrations", len(a.registrations))
	}
	if got := a.ttlCalls[len(a.ttlCalls)-1]; got != "fail" {
		t.Errorf("last TTL update = %q, want fail", got)
	}
}

func TestRegistry_UpdateHealthAfterDeregisterDoesNotRegister(t *testing.T) {
	a := &fakeAgent{}
	r := newRegistry(a, slog.New(slog.DiscardHandler))

	if err := r.Register(Registration{ServiceName: "reachability", ServiceID: "reach-1"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Deregister("reach-1"); err != nil {
		t.Fatalf("Deregister() error = %v", err)
	}

	if err := r.UpdateHealth("reach-1", types.HealthHealthy, "reachable"); err == nil {
		t.Error("expected an error for a deregistered service")
	}
	if len(a.registrations) != 1 {
		t.Errorf("expected no new registration, got %d", len(a.registrations))
	}
}

func TestIsUnknownCheck(t *testing.T) {
	if !isUnknownCheck(errors.New(`Unexpected response code: 404 (Unknown check ID "service:reach-1")`)) {
		t.Error("expected unknown check to match")
	}
	if isUnknownCheck(errors.New("dial tcp 127.0.0.1:8500: connect: connection refused")) {
		t.Error("connection errors are not missing checks")
	}
}
