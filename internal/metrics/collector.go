// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package metrics

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"grimm.is/hostblock/internal/verdict"
)

// Collector counts per-packet outcomes. Counters live on a private
// registry so tests and embedding programs never collide on the global
// one.
type Collector struct {
	registry *prometheus.Registry

	framesReceived prometheus.Counter
	verdicts       *prometheus.CounterVec
	results        *prometheus.CounterVec
	lossEvents     prometheus.Counter
	verdictErrors  prometheus.Counter

	// Mirrors of the counters above for the shutdown summary.
	received  atomic.Uint64
	forwarded atomic.Uint64
	discarded atomic.Uint64
	loss      atomic.Uint64
	verrs     atomic.Uint64
}

// Stats is a point-in-time snapshot of the counters.
type Stats struct {
	Received      uint64 `json:"received"`
	Forwarded     uint64 `json:"forwarded"`
	Discarded     uint64 `json:"discarded"`
	LossEvents    uint64 `json:"loss_events"`
	VerdictErrors uint64 `json:"verdict_errors"`
}

// NewCollector creates a collector with all counters registered.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		framesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hostblock_frames_received_total",
			Help: "Total number of packets delivered by the queue",
		}),
		verdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hostblock_verdicts_total",
			Help: "Total number of verdicts decided, by verdict",
		}, []string{"verdict"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hostblock_results_total",
			Help: "Total number of evaluated packets, by reason",
		}, []string{"reason"}),
		lossEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hostblock_loss_events_total",
			Help: "Total number of receive buffer overruns reported by the kernel",
		}),
		verdictErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hostblock_verdict_errors_total",
			Help: "Total number of verdicts that could not be sent",
		}),
	}

	c.registry.MustRegister(
		c.framesReceived,
		c.verdicts,
		c.results,
		c.lossEvents,
		c.verdictErrors,
	)

	// Pre-create label values so they export as zero before traffic.
	for _, v := range []verdict.Verdict{verdict.Forward, verdict.Discard} {
		c.verdicts.WithLabelValues(v.String())
	}
	return c
}

// Registry returns the registry the counters are registered on.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordFrame counts one evaluated packet.
func (c *Collector) RecordFrame(v verdict.Verdict, reason string) {
	c.framesReceived.Inc()
	c.verdicts.WithLabelValues(v.String()).Inc()
	c.results.WithLabelValues(reason).Inc()

	c.received.Add(1)
	if v == verdict.Discard {
		c.discarded.Add(1)
	} else {
		c.forwarded.Add(1)
	}
}

// RecordLoss counts a queue overrun.
func (c *Collector) RecordLoss() {
	c.lossEvents.Inc()
	c.loss.Add(1)
}

// RecordVerdictError counts a verdict that could not be delivered.
func (c *Collector) RecordVerdictError() {
	c.verdictErrors.Inc()
	c.verrs.Add(1)
}

// Stats returns a snapshot of the counters.
func (c *Collector) Stats() Stats {
	return Stats{
		Received:      c.received.Load(),
		Forwarded:     c.forwarded.Load(),
		Discarded:     c.discarded.Load(),
		LossEvents:    c.loss.Load(),
		VerdictErrors: c.verrs.Load(),
	}
}
