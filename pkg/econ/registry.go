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
	"sort"
	"sync"
	"unsafe"

	"github.com/pkg/errors"
)

// Profile is the filters and the matched ranges of a single process.
type Profile struct {
	pid     int
	filters []*Filter
	huge    *RangeTree
	eager   *RangeTree
}

const profileSize = uint64(unsafe.Sizeof(Profile{}))

// Registry is the set of profiled processes. A single RWMutex protects the
// registry and all the profiles and range trees in it.
type Registry struct {
	sync.RWMutex
	profiles map[int]*Profile
	acct     *accountant
}

// NewRegistry creates a new, empty registry without a memory limit.
func NewRegistry() *Registry {
	return &Registry{
		profiles: make(map[int]*Profile),
		acct:     newAccountant(0),
	}
}

// newProfile allocates an empty profile for pid.
func (r *Registry) newProfile(pid int) (*Profile, error) {
	if err := r.acct.charge(profileSize); err != nil {
		return nil, err
	}
	return &Profile{
		pid:   pid,
		huge:  newRangeTree(r.acct),
		eager: newRangeTree(r.acct),
	}, nil
}

// free releases all filters and ranges of the profile.
func (r *Registry) free(p *Profile) {
	p.huge.FreeAll()
	p.eager.FreeAll()
	for _, f := range p.filters {
		r.acct.release(f.size())
	}
	p.filters = nil
	r.acct.release(profileSize)
}

// Has checks if pid has a profile.
func (r *Registry) Has(pid int) bool {
	r.RLock()
	defer r.RUnlock()
	_, ok := r.profiles[pid]
	return ok
}

// Pids returns the sorted pids of all profiled processes.
func (r *Registry) Pids() []int {
	r.RLock()
	defer r.RUnlock()
	pids := make([]int, 0, len(r.profiles))
	for pid := range r.profiles {
		pids = append(pids, pid)
	}
	sort.Ints(pids)
	return pids
}

// Insert creates an empty profile for pid.
func (r *Registry) Insert(pid int) error {
	r.Lock()
	defer r.Unlock()

	if _, ok := r.profiles[pid]; ok {
		return errors.Wrapf(ErrProfileExists, "pid %d", pid)
	}
	p, err := r.newProfile(pid)
	if err != nil {
		return err
	}
	r.profiles[pid] = p
	return nil
}

// AddFilters appends filters to the profile of pid, creating the profile
// if necessary. On failure the profile is left intact.
func (r *Registry) AddFilters(pid int, filters []*Filter) error {
	var charged uint64

	for _, f := range filters {
		if err := f.Validate(); err != nil {
			return errors.Wrapf(ErrInvalidFilter, "%v", err)
		}
	}

	r.Lock()
	defer r.Unlock()

	p, ok := r.profiles[pid]
	if !ok {
		var err error
		if p, err = r.newProfile(pid); err != nil {
			return err
		}
	}

	for _, f := range filters {
		if err := r.acct.charge(f.size()); err != nil {
			r.acct.release(charged)
			if !ok {
				r.free(p)
			}
			return err
		}
		charged += f.size()
	}

	for _, f := range filters {
		p.filters = append(p.filters, f.Copy())
	}
	r.profiles[pid] = p

	return nil
}

// Filters returns a copy of the filters of pid.
func (r *Registry) Filters(pid int) ([]*Filter, bool) {
	r.RLock()
	defer r.RUnlock()

	p, ok := r.profiles[pid]
	if !ok {
		return nil, false
	}
	filters := make([]*Filter, 0, len(p.filters))
	for _, f := range p.filters {
		filters = append(filters, f.Copy())
	}
	return filters, true
}

// HugeRanges returns the huge page ranges of pid.
func (r *Registry) HugeRanges(pid int) ([]Range, bool) {
	r.RLock()
	defer r.RUnlock()

	p, ok := r.profiles[pid]
	if !ok {
		return nil, false
	}
	return p.huge.Ranges(), true
}

// EagerRanges returns the eager paging ranges of pid.
func (r *Registry) EagerRanges(pid int) ([]Range, bool) {
	r.RLock()
	defer r.RUnlock()

	p, ok := r.profiles[pid]
	if !ok {
		return nil, false
	}
	return p.eager.Ranges(), true
}

// Ranges returns the huge page and eager paging ranges of pid.
func (r *Registry) Ranges(pid int) ([]Range, []Range, bool) {
	r.RLock()
	defer r.RUnlock()

	p, ok := r.profiles[pid]
	if !ok {
		return nil, nil, false
	}
	return p.huge.Ranges(), p.eager.Ranges(), true
}

// Teardown removes the profile of pid, releasing all its data.
func (r *Registry) Teardown(pid int) bool {
	r.Lock()
	defer r.Unlock()

	p, ok := r.profiles[pid]
	if !ok {
		return false
	}
	delete(r.profiles, pid)
	r.free(p)

	return true
}

// Duplicate creates a deep copy of the profile of oldPid for newPid.
func (r *Registry) Duplicate(oldPid, newPid int) error {
	r.Lock()
	defer r.Unlock()

	old, ok := r.profiles[oldPid]
	if !ok {
		return errors.Wrapf(ErrNoProfile, "pid %d", oldPid)
	}
	if _, ok := r.profiles[newPid]; ok {
		return errors.Wrapf(ErrProfileExists, "pid %d", newPid)
	}

	p, err := r.newProfile(newPid)
	if err != nil {
		return err
	}

	for _, f := range old.filters {
		if err = r.acct.charge(f.size()); err != nil {
			r.free(p)
			return err
		}
		p.filters = append(p.filters, f.Copy())
	}
	if err = old.huge.CopyAll(p.huge); err == nil {
		err = old.eager.CopyAll(p.eager)
	}
	if err != nil {
		r.free(p)
		return err
	}

	r.profiles[newPid] = p
	return nil
}

// HugeBenefit returns the benefit of the huge page range containing addr.
func (r *Registry) HugeBenefit(pid int, addr uint64) uint64 {
	r.RLock()
	defer r.RUnlock()

	p, ok := r.profiles[pid]
	if !ok {
		return 0
	}
	if hr := p.huge.search(addr); hr != nil {
		return hr.Benefit
	}
	return 0
}

// EagerBenefit collects the eager paging ranges overlapping [start, end)
// with a benefit above threshold. It returns the largest benefit found and
// the collected ranges.
func (r *Registry) EagerBenefit(pid int, start, end, threshold uint64) (uint64, []Range) {
	var (
		benefit uint64
		ranges  []Range
	)

	r.RLock()
	defer r.RUnlock()

	p, ok := r.profiles[pid]
	if !ok {
		return 0, nil
	}
	first := p.eager.findFirst(start, OpGt)
	if first == nil {
		return 0, nil
	}

	p.eager.ascendFrom(first, func(er *Range) bool {
		if start >= er.End || end <= er.Start {
			return false
		}
		if er.Benefit > threshold {
			ranges = append(ranges, *er)
			if er.Benefit > benefit {
				benefit = er.Benefit
			}
		}
		return true
	})

	return benefit, ranges
}

// MemoryUsed returns the number of bytes used by profiles.
func (r *Registry) MemoryUsed() uint64 {
	return r.acct.Used()
}

// MemoryLimit returns the memory limit for profiles, 0 for unlimited.
func (r *Registry) MemoryLimit() uint64 {
	return r.acct.Limit()
}

// SetMemoryLimit sets the memory limit for profiles, 0 for unlimited.
func (r *Registry) SetMemoryLimit(limit uint64) {
	r.acct.SetLimit(limit)
}
