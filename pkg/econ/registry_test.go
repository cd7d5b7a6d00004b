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
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestRegistryInsert(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Insert(1))
	require.ErrorIs(t, r.Insert(1), ErrProfileExists)
	require.NoError(t, r.Insert(3))
	require.NoError(t, r.Insert(2))
	require.Equal(t, []int{1, 2, 3}, r.Pids())
	require.Equal(t, 3*profileSize, r.MemoryUsed())
}

func TestDuplicate(t *testing.T) {
	ps := pageSize
	r := newTestRegistry(t, "huge,mmap,5", "eager,heap,2")
	require.NoError(t, r.AddMapping(&Mapping{Pid: testPid, Section: SectionMmap, Addr: 16 * ps, Len: 4 * ps}))

	require.NoError(t, r.Duplicate(testPid, testPid+1))
	require.ErrorIs(t, r.Duplicate(testPid, testPid+1), ErrProfileExists)
	require.ErrorIs(t, r.Duplicate(testPid+2, testPid+3), ErrNoProfile)
	require.False(t, r.Has(testPid+3))

	oldHuge, oldEager, ok := r.Ranges(testPid)
	require.True(t, ok)
	newHuge, newEager, ok := r.Ranges(testPid + 1)
	require.True(t, ok)
	if diff := cmp.Diff(oldHuge, newHuge); diff != "" {
		t.Errorf("unexpected huge ranges (-expected +got):\n%s", diff)
	}
	if diff := cmp.Diff(oldEager, newEager); diff != "" {
		t.Errorf("unexpected eager ranges (-expected +got):\n%s", diff)
	}

	require.True(t, r.Teardown(testPid))
	require.False(t, r.Teardown(testPid))
	require.False(t, r.Has(testPid))

	filters, ok := r.Filters(testPid + 1)
	require.True(t, ok)
	require.Len(t, filters, 2)
	require.Equal(t, "huge,mmap,0x5", filters[0].String())
	require.Equal(t, "eager,heap,0x2", filters[1].String())

	huge, ok := r.HugeRanges(testPid + 1)
	require.True(t, ok)
	if diff := cmp.Diff([]Range{{16 * ps, 20 * ps, 5}}, huge); diff != "" {
		t.Errorf("unexpected huge ranges (-expected +got):\n%s", diff)
	}

	require.True(t, r.Teardown(testPid+1))
	require.Zero(t, r.MemoryUsed())
}

func TestDuplicateIsIndependent(t *testing.T) {
	ps := pageSize
	r := newTestRegistry(t, "huge,mmap,5", "eager,heap,2")
	require.NoError(t, r.AddMapping(&Mapping{Pid: testPid, Section: SectionMmap, Addr: 16 * ps, Len: 4 * ps}))
	require.NoError(t, r.Duplicate(testPid, testPid+1))

	oldHuge, oldEager, ok := r.Ranges(testPid)
	require.True(t, ok)

	// evicts the copied [16, 20) range of the child only
	require.NoError(t, r.AddMapping(&Mapping{Pid: testPid + 1, Section: SectionMmap, Addr: 18 * ps, Len: 4 * ps}))
	require.NoError(t, r.AddMapping(&Mapping{Pid: testPid + 1, Section: SectionHeap, Addr: 100 * ps, Len: 2 * ps}))
	require.NoError(t, r.AddFilters(testPid+1, parseTestFilters(t, "huge,code,7")))

	newHuge, newEager, ok := r.Ranges(testPid + 1)
	require.True(t, ok)
	if diff := cmp.Diff([]Range{{18 * ps, 22 * ps, 5}, {100 * ps, 102 * ps, 0}}, newHuge); diff != "" {
		t.Errorf("unexpected child huge ranges (-expected +got):\n%s", diff)
	}
	if diff := cmp.Diff([]Range{{18 * ps, 22 * ps, 0}, {100 * ps, 102 * ps, 2}}, newEager); diff != "" {
		t.Errorf("unexpected child eager ranges (-expected +got):\n%s", diff)
	}

	huge, eager, ok := r.Ranges(testPid)
	require.True(t, ok)
	if diff := cmp.Diff(oldHuge, huge); diff != "" {
		t.Errorf("parent huge ranges changed (-expected +got):\n%s", diff)
	}
	if diff := cmp.Diff(oldEager, eager); diff != "" {
		t.Errorf("parent eager ranges changed (-expected +got):\n%s", diff)
	}
	filters, ok := r.Filters(testPid)
	require.True(t, ok)
	require.Len(t, filters, 2)
}

func TestDuplicateMemoryLimit(t *testing.T) {
	r := newTestRegistry(t, "huge,mmap,5")
	used := r.MemoryUsed()
	r.SetMemoryLimit(used + profileSize)

	require.ErrorIs(t, r.Duplicate(testPid, testPid+1), ErrNoMemory)
	require.False(t, r.Has(testPid+1))
	require.Equal(t, used, r.MemoryUsed())
}

func TestAddFilters(t *testing.T) {
	r := newTestRegistry(t, "huge,mmap,5")
	used := r.MemoryUsed()

	err := r.AddFilters(testPid, []*Filter{{Policy: Policy(5)}})
	require.ErrorIs(t, err, ErrInvalidFilter)
	require.Equal(t, used, r.MemoryUsed())

	r.SetMemoryLimit(used)
	err = r.AddFilters(testPid, parseTestFilters(t, "huge,heap,1"))
	require.ErrorIs(t, err, ErrNoMemory)
	require.Equal(t, used, r.MemoryUsed())
	filters, ok := r.Filters(testPid)
	require.True(t, ok)
	require.Len(t, filters, 1)

	err = r.AddFilters(testPid+1, parseTestFilters(t, "huge,heap,1"))
	require.ErrorIs(t, err, ErrNoMemory)
	require.False(t, r.Has(testPid+1))
	require.Equal(t, used, r.MemoryUsed())

	r.SetMemoryLimit(0)
	require.NoError(t, r.AddFilters(testPid, parseTestFilters(t, "huge,heap,1", "eager,code,2")))
	filters, ok = r.Filters(testPid)
	require.True(t, ok)
	require.Len(t, filters, 3)
	require.Equal(t, "eager,code,0x2", filters[2].String())
}

func TestFiltersAreCopied(t *testing.T) {
	r := newTestRegistry(t, "huge,mmap,5,len,>,0x10")
	filters, ok := r.Filters(testPid)
	require.True(t, ok)
	filters[0].Benefit = 42
	filters[0].Comparisons[0].Value = 42

	filters, ok = r.Filters(testPid)
	require.True(t, ok)
	require.Equal(t, "huge,mmap,0x5,len,>,0x10", filters[0].String())

	_, ok = r.Filters(testPid + 1)
	require.False(t, ok)
}

func TestHugeBenefit(t *testing.T) {
	ps := pageSize
	r := newTestRegistry(t, fmt.Sprintf("huge,mmap,7,addr,>,0x%x", 18*ps))
	require.NoError(t, r.AddMapping(&Mapping{Pid: testPid, Section: SectionMmap, Addr: 16 * ps, Len: 4 * ps}))

	tcases := []struct {
		name     string
		pid      int
		addr     uint64
		expected uint64
	}{
		{name: "profitable range", pid: testPid, addr: 19*ps + 10, expected: 7},
		{name: "unprofitable range", pid: testPid, addr: 16 * ps},
		{name: "outside ranges", pid: testPid, addr: 30 * ps},
		{name: "unknown pid", pid: testPid + 1, addr: 19 * ps},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, r.HugeBenefit(tc.pid, tc.addr))
		})
	}
}

func TestEagerBenefit(t *testing.T) {
	ps := pageSize
	r := newTestRegistry(t,
		fmt.Sprintf("eager,mmap,9,addr,>,0x%x,addr,<,0x%x", 17*ps, 19*ps),
		"eager,mmap,2",
	)
	require.NoError(t, r.AddMapping(&Mapping{Pid: testPid, Section: SectionMmap, Addr: 16 * ps, Len: 4 * ps}))

	tcases := []struct {
		name      string
		start     uint64
		end       uint64
		threshold uint64
		benefit   uint64
		ranges    []Range
	}{
		{
			name:    "whole mapping",
			start:   16 * ps,
			end:     20 * ps,
			benefit: 9,
			ranges:  []Range{{16 * ps, 17 * ps, 2}, {17 * ps, 19 * ps, 9}, {19 * ps, 20 * ps, 2}},
		},
		{
			name:      "threshold",
			start:     16 * ps,
			end:       20 * ps,
			threshold: 2,
			benefit:   9,
			ranges:    []Range{{17 * ps, 19 * ps, 9}},
		},
		{
			name:      "threshold too high",
			start:     16 * ps,
			end:       20 * ps,
			threshold: 9,
		},
		{
			name:    "partial overlap",
			start:   19*ps + 10,
			end:     24 * ps,
			benefit: 2,
			ranges:  []Range{{19 * ps, 20 * ps, 2}},
		},
		{
			name:  "below ranges",
			start: 10 * ps,
			end:   16 * ps,
		},
		{
			name:  "above ranges",
			start: 21 * ps,
			end:   25 * ps,
		},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			benefit, ranges := r.EagerBenefit(testPid, tc.start, tc.end, tc.threshold)
			require.Equal(t, tc.benefit, benefit)
			if diff := cmp.Diff(tc.ranges, ranges); diff != "" {
				t.Errorf("unexpected ranges (-expected +got):\n%s", diff)
			}
		})
	}
}
