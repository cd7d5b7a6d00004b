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
	"unsafe"

	"github.com/google/btree"
)

// Range is a half-open address range [Start, End) with a benefit. A benefit
// of 0 means that no filter has claimed the range yet.
type Range struct {
	Start   uint64
	End     uint64
	Benefit uint64
}

const (
	rangeTreeDegree = 8
	rangeSize       = uint64(unsafe.Sizeof(Range{}))
)

// Len returns the length of the range in bytes.
func (r Range) Len() uint64 {
	return r.End - r.Start
}

// Contains checks if the range contains addr.
func (r Range) Contains(addr uint64) bool {
	return r.Start <= addr && addr < r.End
}

// Overlaps checks if two ranges overlap.
func (r Range) Overlaps(o Range) bool {
	return r.Start < o.End && o.Start < r.End
}

// String returns the range in profile dump format.
func (r Range) String() string {
	return fmt.Sprintf("[0x%x, 0x%x) (%d bytes) benefit=0x%x", r.Start, r.End, r.Len(), r.Benefit)
}

// RangeTree is an ordered set of non-overlapping ranges. Inserting a range
// evicts all ranges it overlaps with. RangeTree is not safe for concurrent
// mutation; the Registry serializes access to the trees it owns.
type RangeTree struct {
	tree *btree.BTreeG[*Range]
	acct *accountant
}

func lessByStart(a, b *Range) bool {
	return a.Start < b.Start
}

// NewRangeTree creates a new, empty RangeTree without a memory limit.
func NewRangeTree() *RangeTree {
	return newRangeTree(nil)
}

func newRangeTree(acct *accountant) *RangeTree {
	if acct == nil {
		acct = newAccountant(0)
	}
	return &RangeTree{
		tree: btree.NewG(rangeTreeDegree, lessByStart),
		acct: acct,
	}
}

// Len returns the number of ranges in the tree.
func (t *RangeTree) Len() int {
	return t.tree.Len()
}

// Ranges returns a copy of all ranges in ascending order.
func (t *RangeTree) Ranges() []Range {
	ranges := make([]Range, 0, t.tree.Len())
	t.tree.Ascend(func(r *Range) bool {
		ranges = append(ranges, *r)
		return true
	})
	return ranges
}

// Search returns the range containing addr.
func (t *RangeTree) Search(addr uint64) (Range, bool) {
	if r := t.search(addr); r != nil {
		return *r, true
	}
	return Range{}, false
}

func (t *RangeTree) search(addr uint64) *Range {
	var found *Range
	t.tree.DescendLessOrEqual(&Range{Start: addr}, func(r *Range) bool {
		if addr < r.End {
			found = r
		}
		return false
	})
	return found
}

// FindFirst returns, for OpLt, the range with the largest start below addr,
// for OpGt, the range with the smallest end above addr, and for OpEq, the
// range containing addr.
func (t *RangeTree) FindFirst(addr uint64, op Operator) (Range, bool) {
	if r := t.findFirst(addr, op); r != nil {
		return *r, true
	}
	return Range{}, false
}

func (t *RangeTree) findFirst(addr uint64, op Operator) *Range {
	var (
		found *Range
		pivot = &Range{Start: addr}
	)

	switch op {
	case OpLt:
		t.tree.DescendLessOrEqual(pivot, func(r *Range) bool {
			if r.Start < addr {
				found = r
				return false
			}
			return true
		})
	case OpGt:
		t.tree.DescendLessOrEqual(pivot, func(r *Range) bool {
			if r.End > addr {
				found = r
			}
			return false
		})
		if found == nil {
			t.tree.AscendGreaterOrEqual(pivot, func(r *Range) bool {
				found = r
				return false
			})
		}
	case OpEq:
		found = t.search(addr)
	}

	return found
}

// Insert inserts a copy of r, evicting any overlapping ranges.
func (t *RangeTree) Insert(r Range) error {
	n, err := t.newRange(r.Start, r.End, r.Benefit)
	if err != nil {
		return err
	}
	t.insert(n)
	return nil
}

// newRange allocates a new range, charging it to the accountant of the tree.
func (t *RangeTree) newRange(start, end, benefit uint64) (*Range, error) {
	if start >= end {
		return nil, ErrInvalidRange
	}
	if err := t.acct.charge(rangeSize); err != nil {
		return nil, err
	}
	return &Range{Start: start, End: end, Benefit: benefit}, nil
}

// insert inserts an already charged range, evicting any overlapping ones.
func (t *RangeTree) insert(r *Range) {
	t.evict(*r)
	t.tree.ReplaceOrInsert(r)
}

// evict removes all ranges overlapping with r.
func (t *RangeTree) evict(r Range) {
	var stale []*Range

	// At most one range starting below r can overlap it.
	t.tree.DescendLessOrEqual(&Range{Start: r.Start}, func(o *Range) bool {
		if o.Start == r.Start {
			return true
		}
		if o.End > r.Start {
			stale = append(stale, o)
		}
		return false
	})
	t.tree.AscendRange(&Range{Start: r.Start}, &Range{Start: r.End}, func(o *Range) bool {
		stale = append(stale, o)
		return true
	})

	for _, o := range stale {
		t.tree.Delete(o)
		t.acct.release(rangeSize)
	}
}

// Split splits the range starting at start at addr. For OpGt the range is
// narrowed to [addr, end) and [start, addr) is added with zero benefit. For
// OpLt the range is narrowed to [start, addr) and [addr, end) is added. For
// OpEq the range is narrowed to the page at addr with zero benefit ranges
// added on both sides as necessary.
func (t *RangeTree) Split(start, addr uint64, op Operator) error {
	r, ok := t.tree.Get(&Range{Start: start})
	if !ok {
		return ErrNoRange
	}
	return t.split(r, addr, op)
}

func (t *RangeTree) split(r *Range, addr uint64, op Operator) error {
	switch op {
	case OpGt:
		if r.Start >= addr || addr >= r.End {
			return nil
		}
		return t.splitLeft(r, addr)
	case OpLt:
		if r.End <= addr || addr <= r.Start {
			return nil
		}
		return t.splitRight(r, addr)
	case OpEq:
		if addr < r.Start || addr >= r.End {
			return nil
		}
		if r.Start < addr {
			if err := t.splitLeft(r, addr); err != nil {
				return err
			}
		}
		if r.End > addr+pageSize {
			return t.splitRight(r, addr+pageSize)
		}
	}
	return nil
}

// splitLeft moves the start of r to addr, adding [start, addr) to the tree.
func (t *RangeTree) splitLeft(r *Range, addr uint64) error {
	left, err := t.newRange(r.Start, addr, 0)
	if err != nil {
		return err
	}
	t.tree.Delete(r)
	r.Start = addr
	t.tree.ReplaceOrInsert(r)
	t.tree.ReplaceOrInsert(left)
	return nil
}

// splitRight moves the end of r to addr, adding [addr, end) to the tree.
func (t *RangeTree) splitRight(r *Range, addr uint64) error {
	right, err := t.newRange(addr, r.End, 0)
	if err != nil {
		return err
	}
	r.End = addr
	t.tree.ReplaceOrInsert(right)
	return nil
}

// remove removes r from the tree.
func (t *RangeTree) remove(r *Range) {
	if _, ok := t.tree.Delete(r); ok {
		t.acct.release(rangeSize)
	}
}

// ascend calls fn for each range in ascending order until fn returns false.
func (t *RangeTree) ascend(fn func(*Range) bool) {
	t.tree.Ascend(fn)
}

// ascendFrom calls fn for r and each range after it until fn returns false.
func (t *RangeTree) ascendFrom(r *Range, fn func(*Range) bool) {
	t.tree.AscendGreaterOrEqual(r, fn)
}

// MoveAll drains the tree, inserting every range into dst.
func (t *RangeTree) MoveAll(dst *RangeTree) error {
	for {
		r, ok := t.tree.DeleteMin()
		if !ok {
			return nil
		}
		if dst.acct != t.acct {
			if err := dst.acct.charge(rangeSize); err != nil {
				t.tree.ReplaceOrInsert(r)
				return err
			}
			t.acct.release(rangeSize)
		}
		dst.insert(r)
	}
}

// CopyAll inserts a copy of every range into dst.
func (t *RangeTree) CopyAll(dst *RangeTree) error {
	var err error
	t.tree.Ascend(func(r *Range) bool {
		var c *Range
		if c, err = dst.newRange(r.Start, r.End, r.Benefit); err != nil {
			return false
		}
		dst.insert(c)
		return true
	})
	return err
}

// FreeAll removes all ranges from the tree.
func (t *RangeTree) FreeAll() {
	t.acct.release(uint64(t.tree.Len()) * rangeSize)
	t.tree.Clear(false)
}
