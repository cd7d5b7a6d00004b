// Copyright 2022 Intel Corporation. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package econ

import (
	"fmt"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus Metric descriptor indices and descriptor table
const (
	estimatedDesc = iota
	decidedDesc
	yesDesc
	promotedDesc
	compactionsDesc
	prezerotryDesc
	allocBytesDesc
	numDescriptors
)

var descriptors = [numDescriptors]*prometheus.Desc{
	estimatedDesc: prometheus.NewDesc(
		"mm_econ_estimates_total",
		"Number of cost-benefit estimates.",
		nil, nil,
	),
	decidedDesc: prometheus.NewDesc(
		"mm_econ_decisions_total",
		"Number of decisions.",
		nil, nil,
	),
	yesDesc: prometheus.NewDesc(
		"mm_econ_decisions_yes_total",
		"Number of decisions to take an action.",
		nil, nil,
	),
	promotedDesc: prometheus.NewDesc(
		"mm_econ_huge_page_promotions_total",
		"Number of huge page promotions.",
		nil, nil,
	),
	compactionsDesc: prometheus.NewDesc(
		"mm_econ_async_compactions_total",
		"Number of estimates favoring asynchronous compaction.",
		nil, nil,
	),
	prezerotryDesc: prometheus.NewDesc(
		"mm_econ_async_prezeroing_total",
		"Number of estimates favoring asynchronous prezeroing.",
		nil, nil,
	),
	allocBytesDesc: prometheus.NewDesc(
		"mm_econ_alloc_bytes",
		"Bytes of memory used for profiles.",
		nil, nil,
	),
}

// Stats are the counters of the engine.
type Stats struct {
	estimated   uint64
	decided     uint64
	yes         uint64
	promoted    uint64
	compactions uint64
	prezerotry  uint64

	acct    *accountant
	cost    prometheus.Histogram
	benefit prometheus.Histogram
}

// StatsSnapshot is a copy of the counters at some point in time.
type StatsSnapshot struct {
	Estimated   uint64
	Decided     uint64
	Yes         uint64
	Promoted    uint64
	Compactions uint64
	Prezerotry  uint64
	AllocBytes  uint64
}

// NewStats creates a set of counters reporting memory use from registry.
func NewStats(registry *Registry) *Stats {
	return &Stats{
		acct: registry.acct,
		cost: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mm_econ_estimated_cost",
			Help:    "Distribution of estimated costs.",
			Buckets: prometheus.ExponentialBuckets(1, 10, 11),
		}),
		benefit: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mm_econ_estimated_benefit",
			Help:    "Distribution of estimated benefits.",
			Buckets: prometheus.ExponentialBuckets(1, 10, 11),
		}),
	}
}

func (s *Stats) observe(cd *CostDelta) {
	atomic.AddUint64(&s.estimated, 1)
	s.cost.Observe(float64(cd.Cost))
	s.benefit.Observe(float64(cd.Benefit))
}

func (s *Stats) decision(yes bool) {
	atomic.AddUint64(&s.decided, 1)
	if yes {
		atomic.AddUint64(&s.yes, 1)
	}
}

func (s *Stats) promotion() {
	atomic.AddUint64(&s.promoted, 1)
}

func (s *Stats) compaction() {
	atomic.AddUint64(&s.compactions, 1)
}

func (s *Stats) prezeroing() {
	atomic.AddUint64(&s.prezerotry, 1)
}

// Snapshot returns the current values of all counters.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Estimated:   atomic.LoadUint64(&s.estimated),
		Decided:     atomic.LoadUint64(&s.decided),
		Yes:         atomic.LoadUint64(&s.yes),
		Promoted:    atomic.LoadUint64(&s.promoted),
		Compactions: atomic.LoadUint64(&s.compactions),
		Prezerotry:  atomic.LoadUint64(&s.prezerotry),
		AllocBytes:  s.acct.Used(),
	}
}

// String returns the counters as key=value lines.
func (s StatsSnapshot) String() string {
	return fmt.Sprintf("estimated=%d\ndecided=%d\nyes=%d\npromoted=%d\n"+
		"compactions=%d\nprezerotry=%d\nallocbytes=%d\n",
		s.Estimated, s.Decided, s.Yes, s.Promoted,
		s.Compactions, s.Prezerotry, s.AllocBytes)
}

// Describe implements prometheus.Collector interface
func (s *Stats) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range descriptors {
		ch <- d
	}
	ch <- s.cost.Desc()
	ch <- s.benefit.Desc()
}

// Collect implements prometheus.Collector interface
func (s *Stats) Collect(ch chan<- prometheus.Metric) {
	snap := s.Snapshot()
	counters := map[int]uint64{
		estimatedDesc:   snap.Estimated,
		decidedDesc:     snap.Decided,
		yesDesc:         snap.Yes,
		promotedDesc:    snap.Promoted,
		compactionsDesc: snap.Compactions,
		prezerotryDesc:  snap.Prezerotry,
	}
	for idx, val := range counters {
		ch <- prometheus.MustNewConstMetric(descriptors[idx], prometheus.CounterValue, float64(val))
	}
	ch <- prometheus.MustNewConstMetric(descriptors[allocBytesDesc], prometheus.GaugeValue, float64(snap.AllocBytes))
	ch <- s.cost
	ch <- s.benefit
}
