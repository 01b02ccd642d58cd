// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"grimm.is/hostblock/internal/logging"
)

// RuleCounter holds the kernel counters of one steering rule.
type RuleCounter struct {
	Port    uint16
	Packets uint64
	Bytes   uint64
}

// ruleSource reads the counters of the steering rules in table.
type ruleSource func(table string) ([]RuleCounter, error)

// ruleCollector exports steering rule counters, read from the kernel on
// every scrape.
type ruleCollector struct {
	table   string
	source  ruleSource
	logger  *logging.Logger
	packets *prometheus.Desc
	bytes   *prometheus.Desc
}

func newRuleCollector(table string, source ruleSource, logger *logging.Logger) *ruleCollector {
	return &ruleCollector{
		table:  table,
		source: source,
		logger: logger,
		packets: prometheus.NewDesc("hostblock_rule_packets_total",
			"Packets the steering rule queued, by destination port", []string{"port"}, nil),
		bytes: prometheus.NewDesc("hostblock_rule_bytes_total",
			"Bytes the steering rule queued, by destination port", []string{"port"}, nil),
	}
}

// Describe implements prometheus.Collector
func (rc *ruleCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- rc.packets
	ch <- rc.bytes
}

// Collect implements prometheus.Collector
func (rc *ruleCollector) Collect(ch chan<- prometheus.Metric) {
	counters, err := rc.source(rc.table)
	if err != nil {
		rc.logger.WithError(err).Debug("failed to read rule counters", "table", rc.table)
		return
	}
	// One series per port; rules sharing a port are summed.
	var ports []uint16
	sums := make(map[uint16]RuleCounter)
	for _, c := range counters {
		s, ok := sums[c.Port]
		if !ok {
			ports = append(ports, c.Port)
		}
		s.Packets += c.Packets
		s.Bytes += c.Bytes
		sums[c.Port] = s
	}
	for _, p := range ports {
		s := sums[p]
		port := strconv.Itoa(int(p))
		ch <- prometheus.MustNewConstMetric(rc.packets, prometheus.CounterValue, float64(s.Packets), port)
		ch <- prometheus.MustNewConstMetric(rc.bytes, prometheus.CounterValue, float64(s.Bytes), port)
	}
}

// WatchRules exports the counters of the steering rules in table.
func (c *Collector) WatchRules(table string, logger *logging.Logger) error {
	if logger == nil {
		logger = logging.Default()
	}
	return c.registry.Register(newRuleCollector(table, collectRuleCounters, logger.WithComponent("metrics")))
}
