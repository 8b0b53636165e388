// Package metrics exports the reachability monitor state as Prometheus metrics.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/toska-mesh/reachability/internal/reachability"
)

// Collector holds the monitor metrics and updates them from monitor events.
type Collector struct {
	probes    *prometheus.CounterVec
	reachable prometheus.Gauge
	loading   prometheus.Gauge
	interval  prometheus.Gauge
	resets    prometheus.Counter
}

// NewCollector creates the metrics and registers them with reg.
func NewCollector(reg prometheus.Registerer, target string) (*Collector, error) {
	labels := prometheus.Labels{"target": target}

	c := &Collector{
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "reachability",
			Name:        "probes_total",
			Help:        "Completed probes by outcome.",
			ConstLabels: labels,
		}, []string{"outcome"}),
		reachable: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "reachability",
			Name:        "reachable",
			Help:        "1 if the last probe reached the endpoint.",
			ConstLabels: labels,
		}),
		loading: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "reachability",
			Name:        "loading",
			Help:        "1 while a probe is in flight.",
			ConstLabels: labels,
		}),
		interval: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "reachability",
			Name:        "current_interval_seconds",
			Help:        "Delay before the next probe.",
			ConstLabels: labels,
		}),
		resets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "reachability",
			Name:        "resets_total",
			Help:        "Manual resets of the probe loop.",
			ConstLabels: labels,
		}),
	}

	// Optimistic until the first probe says otherwise.
	c.reachable.Set(1)

	for _, col := range []prometheus.Collector{c.probes, c.reachable, c.loading, c.interval, c.resets} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) Notify(_ context.Context, ev reachability.Event) {
	c.loading.Set(boolGauge(ev.State.IsLoading))
	if ev.Kind == reachability.EventRequest {
		return
	}

	c.probes.WithLabelValues(ev.Kind.String()).Inc()
	c.reachable.Set(boolGauge(ev.State.IsReachable))
	c.interval.Set(ev.State.CurrentInterval.Seconds())
}

// ObserveReset counts a manual reset.
func (c *Collector) ObserveReset() {
	c.resets.Inc()
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
