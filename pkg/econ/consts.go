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
	"os"
)

const (
	// HugePageOrder is the buddy allocator order of a huge page.
	HugePageOrder = 9

	// Allocation cost of a huge page when none is free.
	hugePageAllocCost = uint64(1) << 32
	// Cost of zeroing or copying a huge page, ~100us.
	hugePagePrepCost = uint64(100 * 2000)
	// Cost of reclaiming memory for a huge page, ~hundreds of ms.
	hugePageReclaimCost = uint64(1000000000)
	// Cost of zeroing a huge page, in cycles.
	hugePageZeroingCost = uint64(1000000)
	// Cost of running the defrag or promotion daemon on a busy system.
	daemonRunCost = uint64(1) << 32
	// Cycles spent in the prezeroing critical section.
	criticalSectionCost = uint64(150 * 2)
	// Base page fault latency in microseconds.
	pageFaultLatencyUs = uint64(10)

	// Default contention window in milliseconds.
	DefaultContentionMs = uint64(10)
	// Default assumed CPU frequency in MHz.
	DefaultFreqMHz = uint64(3000)
	// Default size limit for textual dumps.
	DefaultDumpLimit = 4096
)

var (
	pageSize     = uint64(os.Getpagesize())
	hugePageSize = pageSize << HugePageOrder
)

// PageSize returns the size of a base page.
func PageSize() uint64 {
	return pageSize
}

func alignDown(addr uint64) uint64 {
	return addr &^ (pageSize - 1)
}

func alignUp(addr uint64) uint64 {
	return (addr + pageSize - 1) &^ (pageSize - 1)
}
