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
)

// Mapping describes a newly created memory mapping of a process.
type Mapping struct {
	Pid int
	// Section is the section the mapping belongs to.
	Section Section
	// Addr is the address the mapping ended up at.
	Addr uint64
	// SectionOffset is the offset of Addr from the base of its section.
	// The mmap section grows downwards, so its offsets grow downwards too.
	SectionOffset uint64
	// Hint is the address requested for the mapping.
	Hint  uint64
	Len   uint64
	Prot  uint64
	Flags uint64
	Fd    uint64
	Off   uint64
}

// value returns the value of a non-address quantity of the mapping.
func (m *Mapping) value(q Quantity) uint64 {
	switch q {
	case QuantLen:
		return m.Len
	case QuantProt:
		return m.Prot
	case QuantFlags:
		return m.Flags
	case QuantFd:
		return m.Fd
	case QuantOff:
		return m.Off
	}
	return 0
}

// searchKey returns the absolute address and operator to look up ranges
// with for an address comparison.
func (m *Mapping) searchKey(c *Comparison) (uint64, Operator) {
	switch {
	case c.Quantity == QuantAddr:
		return c.Value, c.Op
	case m.Section == SectionMmap:
		return m.Addr + m.SectionOffset - c.Value, c.Op.flip()
	default:
		return m.Addr - m.SectionOffset + c.Value, c.Op
	}
}

// String returns a human-readable description of the mapping.
func (m *Mapping) String() string {
	return fmt.Sprintf("pid %d %s [0x%x, 0x%x) secoff=0x%x prot=0x%x flags=0x%x off=0x%x",
		m.Pid, m.Section, m.Addr, m.Addr+m.Len, m.SectionOffset, m.Prot, m.Flags, m.Off)
}
