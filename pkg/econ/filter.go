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
	"strings"
	"unsafe"
)

// Policy is the memory management policy a filter assigns benefit for.
type Policy int

const (
	// PolicyHugePage assigns huge page promotion benefit.
	PolicyHugePage Policy = iota
	// PolicyEagerPage assigns eager paging benefit.
	PolicyEagerPage
)

// Section is a section of the address space of a process.
type Section int

const (
	// SectionCode is executable file-backed memory.
	SectionCode Section = iota
	// SectionData is non-executable file-backed memory.
	SectionData
	// SectionHeap is the program break heap.
	SectionHeap
	// SectionMmap is the area for other mappings, growing downwards.
	SectionMmap
)

// Quantity is a property of a mapping a filter can compare.
type Quantity int

const (
	// QuantSectionOffset is the offset of an address from its section base.
	QuantSectionOffset Quantity = iota
	// QuantAddr is an absolute virtual address.
	QuantAddr
	// QuantLen is the length of the mapping.
	QuantLen
	// QuantProt is the protection bits of the mapping.
	QuantProt
	// QuantFlags is the mapping flags.
	QuantFlags
	// QuantFd is the file descriptor of the mapping.
	QuantFd
	// QuantOff is the file offset of the mapping.
	QuantOff
)

// Operator is a comparison operator.
type Operator int

const (
	// OpEq tests for equality.
	OpEq Operator = iota
	// OpGt tests for greater than.
	OpGt
	// OpLt tests for less than.
	OpLt
)

var (
	policyNames = map[Policy]string{
		PolicyHugePage:  "huge",
		PolicyEagerPage: "eager",
	}
	sectionNames = map[Section]string{
		SectionCode: "code",
		SectionData: "data",
		SectionHeap: "heap",
		SectionMmap: "mmap",
	}
	quantityNames = map[Quantity]string{
		QuantSectionOffset: "section_off",
		QuantAddr:          "addr",
		QuantLen:           "len",
		QuantProt:          "prot",
		QuantFlags:         "flags",
		QuantFd:            "fd",
		QuantOff:           "off",
	}
	operatorNames = map[Operator]string{
		OpEq: "=",
		OpGt: ">",
		OpLt: "<",
	}
)

// String returns the name of the policy.
func (p Policy) String() string {
	if name, ok := policyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("<invalid policy %d>", int(p))
}

// String returns the name of the section.
func (s Section) String() string {
	if name, ok := sectionNames[s]; ok {
		return name
	}
	return fmt.Sprintf("<invalid section %d>", int(s))
}

// String returns the name of the quantity.
func (q Quantity) String() string {
	if name, ok := quantityNames[q]; ok {
		return name
	}
	return fmt.Sprintf("<invalid quantity %d>", int(q))
}

// String returns the symbol of the operator.
func (o Operator) String() string {
	if name, ok := operatorNames[o]; ok {
		return name
	}
	return fmt.Sprintf("<invalid operator %d>", int(o))
}

// flip swaps the direction of a directional operator.
func (o Operator) flip() Operator {
	switch o {
	case OpGt:
		return OpLt
	case OpLt:
		return OpGt
	}
	return o
}

// ParsePolicy parses a policy name.
func ParsePolicy(name string) (Policy, error) {
	for p, n := range policyNames {
		if n == name {
			return p, nil
		}
	}
	return 0, econError("invalid policy %q", name)
}

// ParseSection parses a section name.
func ParseSection(name string) (Section, error) {
	for s, n := range sectionNames {
		if n == name {
			return s, nil
		}
	}
	return 0, econError("invalid section %q", name)
}

// ParseQuantity parses a quantity name.
func ParseQuantity(name string) (Quantity, error) {
	for q, n := range quantityNames {
		if n == name {
			return q, nil
		}
	}
	return 0, econError("invalid quantity %q", name)
}

// ParseOperator parses an operator symbol.
func ParseOperator(name string) (Operator, error) {
	for o, n := range operatorNames {
		if n == name {
			return o, nil
		}
	}
	return 0, econError("invalid operator %q", name)
}

// Comparison compares a quantity of a mapping against a value.
type Comparison struct {
	Quantity Quantity
	Op       Operator
	Value    uint64
}

// matches checks if val satisfies the comparison.
func (c *Comparison) matches(val uint64) bool {
	switch c.Op {
	case OpEq:
		return val == c.Value
	case OpGt:
		return val > c.Value
	case OpLt:
		return val < c.Value
	}
	return false
}

// isAddress tells if the comparison is on an address of the mapping.
func (c *Comparison) isAddress() bool {
	return c.Quantity == QuantAddr || c.Quantity == QuantSectionOffset
}

// String returns the comparison in filter format.
func (c *Comparison) String() string {
	return fmt.Sprintf("%s,%s,0x%x", c.Quantity, c.Op, c.Value)
}

// Filter assigns benefit to the mappings of a section that pass all its
// comparisons.
type Filter struct {
	Policy      Policy
	Section     Section
	Benefit     uint64
	Comparisons []Comparison
}

// Validate checks that the filter only uses known values.
func (f *Filter) Validate() error {
	if _, ok := policyNames[f.Policy]; !ok {
		return econError("invalid policy %d", int(f.Policy))
	}
	if _, ok := sectionNames[f.Section]; !ok {
		return econError("invalid section %d", int(f.Section))
	}
	for i := range f.Comparisons {
		c := &f.Comparisons[i]
		if _, ok := quantityNames[c.Quantity]; !ok {
			return econError("invalid quantity %d", int(c.Quantity))
		}
		if _, ok := operatorNames[c.Op]; !ok {
			return econError("invalid operator %d", int(c.Op))
		}
	}
	return nil
}

// String returns the filter in filter format.
func (f *Filter) String() string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "%s,%s,0x%x", f.Policy, f.Section, f.Benefit)
	for i := range f.Comparisons {
		b.WriteString(",")
		b.WriteString(f.Comparisons[i].String())
	}
	return b.String()
}

// Copy returns a deep copy of the filter.
func (f *Filter) Copy() *Filter {
	c := *f
	c.Comparisons = append([]Comparison(nil), f.Comparisons...)
	return &c
}

// size returns the memory accounted for the filter.
func (f *Filter) size() uint64 {
	return uint64(unsafe.Sizeof(*f)) + uint64(len(f.Comparisons))*uint64(unsafe.Sizeof(Comparison{}))
}
