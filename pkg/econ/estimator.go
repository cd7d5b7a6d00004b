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
)

// ActionKind is the kind of a memory management action.
type ActionKind int

const (
	// ActionNone is no action.
	ActionNone ActionKind = iota
	// ActionPromoteHuge promotes a range to a huge page.
	ActionPromoteHuge
	// ActionDemoteHuge demotes a huge page.
	ActionDemoteHuge
	// ActionRunDefrag runs the defragmentation daemon.
	ActionRunDefrag
	// ActionRunPromotion runs the huge page promotion daemon.
	ActionRunPromotion
	// ActionRunPrezeroing runs the huge page prezeroing daemon.
	ActionRunPrezeroing
	// ActionAllocReclaim reclaims memory to allocate a huge page.
	ActionAllocReclaim
	// ActionEagerPaging eagerly faults in pages.
	ActionEagerPaging
)

var actionNames = map[ActionKind]string{
	ActionNone:          "none",
	ActionPromoteHuge:   "promote-huge",
	ActionDemoteHuge:    "demote-huge",
	ActionRunDefrag:     "run-defrag",
	ActionRunPromotion:  "run-promotion",
	ActionRunPrezeroing: "run-prezeroing",
	ActionAllocReclaim:  "alloc-reclaim",
	ActionEagerPaging:   "eager-paging",
}

// String returns the name of the action kind.
func (k ActionKind) String() string {
	if name, ok := actionNames[k]; ok {
		return name
	}
	return fmt.Sprintf("<unknown action %d>", int(k))
}

// ParseActionKind parses the name of an action kind.
func ParseActionKind(name string) (ActionKind, error) {
	for k, n := range actionNames {
		if n == name {
			return k, nil
		}
	}
	return ActionNone, econError("unknown action %q", name)
}

// Action describes a memory management action to estimate.
type Action struct {
	Kind ActionKind
	// Pid is the process the action is taken for.
	Pid int
	// Address is the faulting address.
	Address uint64
	// Len is the length of the eager paging window.
	Len uint64
	// PrezeroN is the number of huge pages to prezero.
	PrezeroN uint64
}

// CostDelta is the estimated cost and benefit of an action.
type CostDelta struct {
	Cost    uint64
	Benefit uint64
	// Extra is 1 if a huge page promotion would use a pre-zeroed page.
	Extra uint64
	// Ranges are the eager paging ranges worth faulting in.
	Ranges []Range
}

// Estimator estimates the cost and benefit of actions.
type Estimator struct {
	registry *Registry
	stats    *Stats
	alloc    AllocatorBackend
	load     LoadReporter
	usage    UsageEstimator
	tlb      atomic.Value

	contentionMs uint64
	freqMHz      uint64
	debugLevel   uint64
}

type tlbEstimator struct {
	TLBMissEstimator
}

// NewEstimator creates an estimator. usage may be nil, in which case no
// pre-zeroed pages are assumed to have been used.
func NewEstimator(registry *Registry, stats *Stats, alloc AllocatorBackend, load LoadReporter, usage UsageEstimator) *Estimator {
	if usage == nil {
		usage = &StaticUsage{}
	}
	return &Estimator{
		registry:     registry,
		stats:        stats,
		alloc:        alloc,
		load:         load,
		usage:        usage,
		contentionMs: DefaultContentionMs,
		freqMHz:      DefaultFreqMHz,
	}
}

// RegisterTLBMissEstimator sets the external huge page benefit estimator.
// It can be set only once.
func (e *Estimator) RegisterTLBMissEstimator(est TLBMissEstimator) error {
	if est == nil {
		return econError("nil TLB miss estimator")
	}
	if !e.tlb.CompareAndSwap(nil, &tlbEstimator{est}) {
		return econError("TLB miss estimator already registered")
	}
	return nil
}

// ContentionMs returns the contention window in milliseconds.
func (e *Estimator) ContentionMs() uint64 {
	return atomic.LoadUint64(&e.contentionMs)
}

// SetContentionMs sets the contention window in milliseconds.
func (e *Estimator) SetContentionMs(ms uint64) {
	atomic.StoreUint64(&e.contentionMs, ms)
}

// FreqMHz returns the assumed CPU frequency.
func (e *Estimator) FreqMHz() uint64 {
	return atomic.LoadUint64(&e.freqMHz)
}

// SetFreqMHz sets the assumed CPU frequency.
func (e *Estimator) SetFreqMHz(mhz uint64) {
	atomic.StoreUint64(&e.freqMHz, mhz)
}

// DebugLevel returns the debug level.
func (e *Estimator) DebugLevel() uint64 {
	return atomic.LoadUint64(&e.debugLevel)
}

// SetDebugLevel sets the debug level. Level 1 enables debug messages,
// level 2 also logs every estimate.
func (e *Estimator) SetDebugLevel(level uint64) {
	old := atomic.SwapUint64(&e.debugLevel, level)
	if (old >= 1) != (level >= 1) {
		log.EnableDebug(level >= 1)
	}
}

// Estimate returns the estimated cost and benefit of an action.
func (e *Estimator) Estimate(a *Action) CostDelta {
	cd := CostDelta{}

	switch a.Kind {
	case ActionNone, ActionDemoteHuge:

	case ActionPromoteHuge:
		e.promoteHuge(a, &cd)

	case ActionRunDefrag:
		e.daemonCost(a, &cd)
		if cd.Cost < cd.Benefit {
			e.stats.compaction()
		}

	case ActionRunPromotion:
		e.daemonCost(a, &cd)

	case ActionRunPrezeroing:
		e.daemonCost(a, &cd)
		e.prezeroContentionCost(a, &cd)
		e.prezeroBenefit(a, &cd)
		if cd.Cost < cd.Benefit {
			e.stats.prezeroing()
		}

	case ActionAllocReclaim:
		e.promoteHuge(a, &cd)
		cd.Cost += hugePageReclaimCost

	case ActionEagerPaging:
		cd.Cost = e.FreqMHz() * pageFaultLatencyUs
		cd.Benefit, cd.Ranges = e.registry.EagerBenefit(a.Pid, a.Address, a.Address+a.Len, cd.Cost)

	default:
		limitLog.Warn("unknown action %d", int(a.Kind))
	}

	e.stats.observe(&cd)

	if e.DebugLevel() >= 2 {
		log.Info("estimate: %s pid=%d addr=0x%x cost=%d benefit=%d",
			a.Kind, a.Pid, a.Address, cd.Cost, cd.Benefit)
	}

	return cd
}

// promoteHuge estimates the cost and benefit of a huge page promotion.
func (e *Estimator) promoteHuge(a *Action, cd *CostDelta) {
	status := e.alloc.FreeHugePageStatus()
	if log.DebugEnabled() {
		log.Debug("free huge pages: %s", status)
	}

	if status == HugePageNone {
		cd.Cost = hugePageAllocCost
	}
	if status == HugePageZeroed {
		cd.Extra = 1
	} else {
		cd.Cost += hugePagePrepCost
	}

	if tlb, ok := e.tlb.Load().(*tlbEstimator); ok {
		cd.Benefit = tlb.EstimateBenefit(a)
	} else {
		cd.Benefit = e.registry.HugeBenefit(a.Pid, a.Address)
	}
}

// daemonCost estimates the cost of running a background daemon. Idle time
// is free, so the cost is 0 if there are more CPUs than load.
func (e *Estimator) daemonCost(a *Action, cd *CostDelta) {
	ncpus := e.load.OnlineCPUs()
	if ncpus > 0 && uint64(ncpus) > e.load.LoadAverage().Rounded() {
		cd.Cost = 0
		return
	}

	switch a.Kind {
	case ActionRunPrezeroing:
		cd.Cost = hugePageZeroingCost * a.PrezeroN
	case ActionRunDefrag, ActionRunPromotion:
		cd.Cost = daemonRunCost
	}
}

// prezeroContentionCost adds the cost of lock contention due to prezeroing.
// Critical sections which fit in the idle time of a contention window are
// free, the rest are charged.
func (e *Estimator) prezeroContentionCost(a *Action, cd *CostDelta) {
	nfree := e.ContentionMs() * e.FreqMHz() * 1000 / criticalSectionCost
	if a.PrezeroN > nfree {
		cd.Cost += (a.PrezeroN - nfree) * criticalSectionCost
	}
}

// prezeroBenefit estimates the benefit of prezeroing from the number of
// pre-zeroed pages recently used.
func (e *Estimator) prezeroBenefit(a *Action, cd *CostDelta) {
	used := e.usage.RecentPrezeroedPagesUsed()
	if a.PrezeroN < used {
		used = a.PrezeroN
	}
	cd.Benefit = used * hugePageZeroingCost
}
