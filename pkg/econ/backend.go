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

// HugePageStatus is the availability of free huge pages.
type HugePageStatus int

const (
	// HugePageNone means no free huge pages.
	HugePageNone HugePageStatus = iota
	// HugePageFree means free huge pages are available.
	HugePageFree
	// HugePageZeroed means free, pre-zeroed huge pages are available.
	HugePageZeroed
)

// String returns the status as a string.
func (s HugePageStatus) String() string {
	switch s {
	case HugePageNone:
		return "none"
	case HugePageFree:
		return "free"
	case HugePageZeroed:
		return "zeroed"
	}
	return "unknown"
}

// AllocatorBackend reports the availability of free huge pages.
type AllocatorBackend interface {
	FreeHugePageStatus() HugePageStatus
}

// LoadAvg is a fixed-point load average with loadShift fractional bits.
type LoadAvg uint64

const (
	loadShift = 16
	// loadRounding rounds loads to two decimals before truncating.
	loadRounding = (1 << loadShift) / 200
)

// NewLoadAvg returns the fixed-point representation of a load average.
func NewLoadAvg(load float64) LoadAvg {
	return LoadAvg(load * (1 << loadShift))
}

// Int returns the integer part of the load.
func (l LoadAvg) Int() uint64 {
	return uint64(l) >> loadShift
}

// Rounded returns the integer part of the load rounded to two decimals.
func (l LoadAvg) Rounded() uint64 {
	return (uint64(l) + loadRounding) >> loadShift
}

// Float returns the load as a float.
func (l LoadAvg) Float() float64 {
	return float64(l) / (1 << loadShift)
}

// LoadReporter reports system load.
type LoadReporter interface {
	// LoadAverage returns the 1-minute load average.
	LoadAverage() LoadAvg
	// OnlineCPUs returns the number of online CPUs.
	OnlineCPUs() int
}

// TLBMissEstimator estimates the benefit of an action from TLB misses.
type TLBMissEstimator interface {
	EstimateBenefit(a *Action) uint64
}

// UsageEstimator estimates the recent usage of pre-zeroed pages.
type UsageEstimator interface {
	RecentPrezeroedPagesUsed() uint64
}

// StaticAllocator is an AllocatorBackend with a fixed status.
type StaticAllocator struct {
	Status HugePageStatus
}

// FreeHugePageStatus returns the configured status.
func (s *StaticAllocator) FreeHugePageStatus() HugePageStatus {
	return s.Status
}

// StaticLoad is a LoadReporter with fixed values.
type StaticLoad struct {
	Load LoadAvg
	CPUs int
}

// LoadAverage returns the configured load.
func (s *StaticLoad) LoadAverage() LoadAvg {
	return s.Load
}

// OnlineCPUs returns the configured number of CPUs.
func (s *StaticLoad) OnlineCPUs() int {
	return s.CPUs
}

// StaticUsage is a UsageEstimator with a fixed value.
type StaticUsage struct {
	Used uint64
}

// RecentPrezeroedPagesUsed returns the configured value.
func (s *StaticUsage) RecentPrezeroedPagesUsed() uint64 {
	return s.Used
}
