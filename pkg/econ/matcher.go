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

// AddMapping matches a new mapping against the filters of its process and
// records the resulting ranges in the profile. Mappings of processes without
// a profile are ignored. Matching is done on private trees which are only
// committed to the profile once all filters have been evaluated.
func (r *Registry) AddMapping(m *Mapping) error {
	var filters []*Filter

	r.RLock()
	p, ok := r.profiles[m.Pid]
	if ok {
		filters = p.filters
	}
	r.RUnlock()

	if !ok || m.Len == 0 {
		return nil
	}

	huge := newRangeTree(r.acct)
	eager := newRangeTree(r.acct)
	fail := func(err error) error {
		huge.FreeAll()
		eager.FreeAll()
		log.Warn("failed to add mapping %s: %v", m, err)
		return err
	}

	if err := huge.Insert(Range{Start: alignDown(m.Addr), End: alignUp(m.Addr + m.Len)}); err != nil {
		return fail(err)
	}
	if err := huge.CopyAll(eager); err != nil {
		return fail(err)
	}

	for _, f := range filters {
		subranges := huge
		if f.Policy == PolicyEagerPage {
			subranges = eager
		}
		done, err := matchFilter(f, m, subranges)
		if err != nil {
			return fail(err)
		}
		if done {
			break
		}
	}

	r.Lock()
	defer r.Unlock()

	if p, ok = r.profiles[m.Pid]; !ok {
		huge.FreeAll()
		eager.FreeAll()
		return nil
	}
	if err := huge.MoveAll(p.huge); err != nil {
		return fail(err)
	}
	if err := eager.MoveAll(p.eager); err != nil {
		return fail(err)
	}

	if log.DebugEnabled() {
		log.Debug("added mapping %s", m)
	}

	return nil
}

// matchFilter evaluates a filter for a mapping, updating subranges if it
// matches. It returns true if the filter claimed all unclaimed ranges, in
// which case no further filters should be evaluated.
func matchFilter(f *Filter, m *Mapping, subranges *RangeTree) (bool, error) {
	var (
		parent *Range
		temp   *RangeTree
	)

	if f.Section != m.Section {
		return false, nil
	}

	passes := true
	for i := range f.Comparisons {
		c := &f.Comparisons[i]

		if !c.isAddress() {
			if !c.matches(m.value(c.Quantity)) {
				passes = false
				break
			}
			continue
		}

		key, op := m.searchKey(c)

		var r *Range
		if parent == nil {
			parent = subranges.findFirst(key, op)
			if parent == nil || parent.Benefit != 0 {
				passes = false
				break
			}
			temp = newRangeTree(subranges.acct)
			nr, err := temp.newRange(parent.Start, parent.End, parent.Benefit)
			if err != nil {
				return false, err
			}
			temp.insert(nr)
			r = nr
		} else {
			if r = temp.findFirst(key, op); r == nil {
				passes = false
				break
			}
		}

		r.Benefit = f.Benefit
		if err := temp.split(r, key, op); err != nil {
			temp.FreeAll()
			return false, err
		}
	}

	switch {
	case !passes:
		if temp != nil {
			temp.FreeAll()
		}
		return false, nil

	case parent != nil:
		subranges.remove(parent)
		if err := temp.MoveAll(subranges); err != nil {
			temp.FreeAll()
			return false, err
		}
		return false, nil

	default:
		subranges.ascend(func(sr *Range) bool {
			if sr.Benefit == 0 {
				sr.Benefit = f.Benefit
			}
			return true
		})
		return true, nil
	}
}
