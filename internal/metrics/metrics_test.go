package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toska-mesh/reachability/internal/reachability"
)

func TestCollector_TracksEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg, "http://api.local")
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.reachable))

	ctx := context.Background()
	c.Notify(ctx, reachability.Event{Kind: reachability.EventRequest, State: reachability.Snapshot{IsLoading: true, IsReachable: true}})
	assert.Equal(t, 1.0, testutil.ToFloat64(c.loading))

	c.Notify(ctx, reachability.Event{Kind: reachability.EventFailure, State: reachability.Snapshot{CurrentInterval: 20 * time.Second}})
	assert.Equal(t, 0.0, testutil.ToFloat64(c.loading))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.reachable))
	assert.Equal(t, 20.0, testutil.ToFloat64(c.interval))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.probes.WithLabelValues("failure")))

	c.Notify(ctx, reachability.Event{Kind: reachability.EventSuccess, State: reachability.Snapshot{IsReachable: true, CurrentInterval: 10 * time.Second}})
	assert.Equal(t, 1.0, testutil.ToFloat64(c.reachable))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.probes.WithLabelValues("success")))

	c.ObserveReset()
	assert.Equal(t, 1.0, testutil.ToFloat64(c.resets))
}

func TestNewCollector_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewCollector(reg, "http://api.local")
	require.NoError(t, err)

	_, err = NewCollector(reg, "http://api.local")
	require.Error(t, err)
}
