// Package rtprtxmetrics exposes the counters readable per spec section 6
// ("num-rtx-requests", "num-rtx-packets", "num-rtx-assoc-packets") as a
// prometheus.Collector, following the live-registry pattern of wrapping a
// mutex-guarded set of per-instance counters rather than incrementing
// package-global promauto metrics directly: a process can host many
// sender/receiver cores (one pair per SSRC-multiplexed stream) and each
// needs its own labelled series.
package rtprtxmetrics

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Counters are the live, lock-free counters a sender or receiver core
// increments directly on its hot path. NumRTXAssocPackets is meaningful
// only for receiver cores; sender cores leave it at zero.
type Counters struct {
	NumRTXRequests     atomic.Uint64
	NumRTXPackets      atomic.Uint64
	NumRTXAssocPackets atomic.Uint64
}

type metricInfo struct {
	desc    *prometheus.Desc
	valueFn func(*Counters) uint64
}

type entry struct {
	counters    *Counters
	labelValues []string
}

// Collector aggregates the Counters of every registered core into a
// single Describe/Collect pair, labelled by whatever identifies a core
// (typically its instance UUID and a "role" of sender or receiver).
type Collector struct {
	mu      sync.Mutex
	entries map[string]entry
	infos   []metricInfo
}

// NewCollector builds a Collector. labelNames must match the length of
// the labelValues slice passed to every subsequent Add call.
func NewCollector(namespace string, labelNames []string, constLabels prometheus.Labels) *Collector {
	c := &Collector{
		entries: make(map[string]entry),
	}

	c.infos = []metricInfo{
		{
			desc: prometheus.NewDesc(
				prometheus.BuildFQName(namespace, "", "num_rtx_requests_total"),
				"Number of retransmission requests handled (sender: for a tracked master SSRC; receiver: all).",
				labelNames, constLabels,
			),
			valueFn: func(cnt *Counters) uint64 { return cnt.NumRTXRequests.Load() },
		},
		{
			desc: prometheus.NewDesc(
				prometheus.BuildFQName(namespace, "", "num_rtx_packets_total"),
				"Number of RTX packets attempted (sender) or accepted (receiver).",
				labelNames, constLabels,
			),
			valueFn: func(cnt *Counters) uint64 { return cnt.NumRTXPackets.Load() },
		},
		{
			desc: prometheus.NewDesc(
				prometheus.BuildFQName(namespace, "", "num_rtx_assoc_packets_total"),
				"Number of RTX packets successfully associated with a request (receiver only).",
				labelNames, constLabels,
			),
			valueFn: func(cnt *Counters) uint64 { return cnt.NumRTXAssocPackets.Load() },
		},
	}

	return c
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(descs chan<- *prometheus.Desc) {
	for _, info := range c.infos {
		descs <- info.desc
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(metrics chan<- prometheus.Metric) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.entries {
		for _, info := range c.infos {
			metrics <- prometheus.MustNewConstMetric(
				info.desc, prometheus.CounterValue, float64(info.valueFn(e.counters)), e.labelValues...,
			)
		}
	}
}

// Add registers a core's Counters under id, labelled with labelValues.
func (c *Collector) Add(id string, counters *Counters, labelValues ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[id] = entry{counters: counters, labelValues: labelValues}
}

// Remove unregisters a core. The cores do not call it themselves; the
// caller that registered a core with Add removes it.
func (c *Collector) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, id)
}
