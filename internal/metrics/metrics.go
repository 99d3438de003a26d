// Package metrics exposes dispatch counters and machine states to
// Prometheus, plus a small HTTP surface for health and state inspection.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"driver-controls/internal/arbiter"
	"driver-controls/internal/controls"
	"driver-controls/internal/event"
)

const namespace = "driver_controls"

type Collectors struct {
	registry *prometheus.Registry

	dispatched  *prometheus.CounterVec
	rejected    *prometheus.CounterVec
	transitions *prometheus.CounterVec
	queueDepth  prometheus.Gauge
	state       *prometheus.GaugeVec

	mu      sync.Mutex
	current map[string]string
}

// New creates collectors on a private registry, together with the Go
// runtime and process collectors.
func New() *Collectors {
	c := &Collectors{
		registry: prometheus.NewRegistry(),
		dispatched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_dispatched_total",
				Help:      "Events taken from the queue and offered to the arbiter",
			},
			[]string{"event"},
		),
		rejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_rejected_total",
				Help:      "Events denied by a machine guard",
			},
			[]string{"event", "denied_by"},
		),
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_transitioned_total",
				Help:      "Delivered events that caused at least one transition",
			},
			[]string{"event"},
		),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Events waiting in the queue",
		}),
		state: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "machine_state",
				Help:      "1 for the current state of each machine",
			},
			[]string{"machine", "state"},
		),
		current: make(map[string]string),
	}

	c.registry.MustRegister(
		c.dispatched,
		c.rejected,
		c.transitions,
		c.queueDepth,
		c.state,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collectors) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveDispatch records the outcome of one dispatched event.
func (c *Collectors) ObserveDispatch(e event.Event, res arbiter.Result) {
	name := controls.EventName(e.ID)
	c.dispatched.WithLabelValues(name).Inc()
	if !res.Permitted {
		c.rejected.WithLabelValues(name, res.DeniedBy).Inc()
		return
	}
	if res.Transitioned {
		c.transitions.WithLabelValues(name).Inc()
	}
}

func (c *Collectors) SetQueueDepth(n int) {
	c.queueDepth.Set(float64(n))
}

// ObserveStates moves each machine's state gauge to its current state.
func (c *Collectors) ObserveStates(states []arbiter.MachineState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, s := range states {
		prev, ok := c.current[s.Name]
		if ok && prev == s.State {
			continue
		}
		if ok {
			c.state.DeleteLabelValues(s.Name, prev)
		}
		c.state.WithLabelValues(s.Name, s.State).Set(1)
		c.current[s.Name] = s.State
	}
}
