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
	"context"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Econ ties together profiles, estimation, decisions and the control plane.
type Econ struct {
	registry  *Registry
	stats     *Stats
	estimator *Estimator
	decider   *Decider
	control   *Control
	watcher   *PidWatcher
	procRoot  string
}

type options struct {
	alloc    AllocatorBackend
	load     LoadReporter
	usage    UsageEstimator
	procRoot string
	sysRoot  string
	interval time.Duration
}

// Option is an option for New.
type Option func(*options)

// WithAllocator sets the allocator backend.
func WithAllocator(alloc AllocatorBackend) Option {
	return func(o *options) {
		o.alloc = alloc
	}
}

// WithLoadReporter sets the load reporter.
func WithLoadReporter(load LoadReporter) Option {
	return func(o *options) {
		o.load = load
	}
}

// WithUsageEstimator sets the pre-zeroed page usage estimator.
func WithUsageEstimator(usage UsageEstimator) Option {
	return func(o *options) {
		o.usage = usage
	}
}

// WithProcRoot sets the procfs mount point.
func WithProcRoot(path string) Option {
	return func(o *options) {
		o.procRoot = path
	}
}

// WithSysRoot sets the sysfs mount point.
func WithSysRoot(path string) Option {
	return func(o *options) {
		o.sysRoot = path
	}
}

// WithPollInterval sets the process polling interval.
func WithPollInterval(interval time.Duration) Option {
	return func(o *options) {
		o.interval = interval
	}
}

// New creates a new engine. Collaborators not given as options default to
// the ones reading the running system.
func New(opts ...Option) *Econ {
	o := &options{
		procRoot: DefaultProcRoot,
		sysRoot:  DefaultSysRoot,
		interval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.alloc == nil {
		o.alloc = NewSysAllocator(o.procRoot, o.sysRoot)
	}
	if o.load == nil {
		o.load = NewSysLoad(o.sysRoot)
	}

	e := &Econ{
		registry: NewRegistry(),
		procRoot: o.procRoot,
	}
	e.stats = NewStats(e.registry)
	e.estimator = NewEstimator(e.registry, e.stats, o.alloc, o.load, o.usage)
	e.decider = NewDecider(e.stats)
	e.control = NewControl(e.registry, e.estimator, e.decider, e.stats)
	e.watcher = NewPidWatcher(o.procRoot, o.interval, e)

	return e
}

// Registry returns the profile registry.
func (e *Econ) Registry() *Registry {
	return e.registry
}

// Stats returns the counters.
func (e *Econ) Stats() *Stats {
	return e.stats
}

// Control returns the control plane.
func (e *Econ) Control() *Control {
	return e.control
}

// OnMappingCreated records a new mapping in the profile of its process.
func (e *Econ) OnMappingCreated(m Mapping) error {
	return e.registry.AddMapping(&m)
}

// OnFork copies the profile of a parent to its child, if there is one.
func (e *Econ) OnFork(oldPid, newPid int) error {
	err := e.registry.Duplicate(oldPid, newPid)
	if errors.Is(err, ErrNoProfile) {
		return nil
	}
	if err != nil {
		log.Warn("failed to copy profile of pid %d to %d: %v", oldPid, newPid, err)
		return err
	}
	log.Debug("copied profile of pid %d to %d", oldPid, newPid)
	return nil
}

// OnExit drops the profile of an exiting process.
func (e *Econ) OnExit(pid int) {
	if e.registry.Teardown(pid) {
		log.Debug("dropped profile of pid %d", pid)
	}
}

// Estimate estimates the cost and benefit of an action.
func (e *Econ) Estimate(a Action) CostDelta {
	return e.estimator.Estimate(&a)
}

// Decide tells whether an action with the given estimate should be taken.
func (e *Econ) Decide(cd CostDelta) bool {
	return e.decider.Decide(&cd)
}

// RegisterPromotion records the promotion of a huge page at addr.
func (e *Econ) RegisterPromotion(addr uint64) {
	e.stats.promotion()
	log.Debug("promoted huge page at 0x%x", addr)
}

// RegisterTLBMissEstimator sets the external huge page benefit estimator.
func (e *Econ) RegisterTLBMissEstimator(est TLBMissEstimator) error {
	return e.estimator.RegisterTLBMissEstimator(est)
}

// ReplayMappings feeds the current mappings of pid through its filters.
func (e *Econ) ReplayMappings(pid int) error {
	mappings, err := ScanMappings(e.procRoot, pid)
	if err != nil {
		return err
	}

	var result *multierror.Error
	for _, m := range mappings {
		if err := e.registry.AddMapping(m); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// AddPids copies the profile of the parent of each new profiled process.
// A process may be reported together with its parent, and pids wrap, so
// copying goes on until no more parents turn out to be profiled.
func (e *Econ) AddPids(pids []int) {
	parents := make(map[int]int, len(pids))
	for _, pid := range pids {
		ppid, err := readParentPid(e.procRoot, pid)
		if err != nil {
			log.Debug("%v", err)
			continue
		}
		parents[pid] = ppid
	}

	for forked := true; forked; {
		forked = false
		for _, pid := range pids {
			ppid, ok := parents[pid]
			if !ok || !e.registry.Has(ppid) {
				continue
			}
			delete(parents, pid)
			if err := e.OnFork(ppid, pid); err != nil {
				continue
			}
			forked = true
			if err := e.ReplayMappings(pid); err != nil {
				log.Warn("failed to replay mappings of pid %d: %v", pid, err)
			}
		}
	}
}

// RemovePids drops the profiles of exited processes.
func (e *Econ) RemovePids(pids []int) {
	for _, pid := range pids {
		e.OnExit(pid)
	}
}

// StartWatcher starts watching processes for forks and exits.
func (e *Econ) StartWatcher(ctx context.Context) error {
	return e.watcher.Start(ctx)
}

// StopWatcher stops watching processes.
func (e *Econ) StopWatcher() {
	e.watcher.Stop()
}

// PollProcesses checks for forked and exited processes once.
func (e *Econ) PollProcesses() error {
	return e.watcher.Poll()
}

// Configure applies the given configuration.
func (e *Econ) Configure(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := e.decider.SetMode(Mode(cfg.Mode)); err != nil {
		return err
	}
	e.estimator.SetDebugLevel(cfg.Debug)
	e.estimator.SetContentionMs(cfg.ContentionMs)
	e.estimator.SetFreqMHz(cfg.FreqMHz)
	e.registry.SetMemoryLimit(cfg.MemoryLimit)
	e.control.SetDumpLimit(cfg.DumpLimit)
	e.watcher.SetInterval(time.Duration(cfg.PollInterval))

	log.Info("configuration: %s", cfg)

	return nil
}
