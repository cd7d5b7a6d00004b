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
	"bufio"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
	"k8s.io/utils/cpuset"
)

const (
	// DefaultProcRoot is the default procfs mount point.
	DefaultProcRoot = "/proc"
	// DefaultSysRoot is the default sysfs mount point.
	DefaultSysRoot = "/sys"
)

// SysAllocator reports free huge pages from the buddy allocator state in
// procfs, falling back to the hugetlb pool in sysfs. Linux does not tell
// about pre-zeroed pages, so it never reports HugePageZeroed.
type SysAllocator struct {
	procRoot string
	sysRoot  string
}

// NewSysAllocator creates a SysAllocator for the given procfs and sysfs.
func NewSysAllocator(procRoot, sysRoot string) *SysAllocator {
	return &SysAllocator{procRoot: procRoot, sysRoot: sysRoot}
}

// FreeHugePageStatus returns the availability of free huge pages.
func (s *SysAllocator) FreeHugePageStatus() HugePageStatus {
	free, err := s.buddyHasFreeHugePages()
	if err != nil {
		log.Debug("%v", err)
	}
	if free {
		return HugePageFree
	}

	free, err = s.poolHasFreeHugePages()
	if err != nil {
		log.Debug("%v", err)
	}
	if free {
		return HugePageFree
	}

	return HugePageNone
}

// buddyHasFreeHugePages checks the buddy allocator for free blocks of at
// least huge page order outside the DMA zones.
func (s *SysAllocator) buddyHasFreeHugePages() (bool, error) {
	path := filepath.Join(s.procRoot, "buddyinfo")
	f, err := os.Open(path)
	if err != nil {
		return false, errors.Wrapf(err, "failed to read buddy info")
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		// Node 0, zone   Normal   1   2   3 ...
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 || fields[2] != "zone" {
			continue
		}
		if zone := fields[3]; zone == "DMA" || zone == "DMA32" {
			continue
		}
		for order := HugePageOrder; 4+order < len(fields); order++ {
			cnt, err := strconv.ParseUint(fields[4+order], 10, 64)
			if err != nil {
				return false, errors.Wrapf(err, "%s: invalid entry %q", path, scanner.Text())
			}
			if cnt > 0 {
				return true, nil
			}
		}
	}

	return false, errors.Wrapf(scanner.Err(), "failed to read %s", path)
}

// poolHasFreeHugePages checks the hugetlb pool for free huge pages.
func (s *SysAllocator) poolHasFreeHugePages() (bool, error) {
	dir := "hugepages-" + strconv.FormatUint(hugePageSize/1024, 10) + "kB"
	path := filepath.Join(s.sysRoot, "kernel/mm/hugepages", dir, "free_hugepages")
	buf, err := os.ReadFile(path)
	if err != nil {
		return false, errors.Wrapf(err, "failed to read hugetlb pool")
	}
	cnt, err := strconv.ParseUint(strings.TrimSpace(string(buf)), 10, 64)
	if err != nil {
		return false, errors.Wrapf(err, "%s: invalid content", path)
	}
	return cnt > 0, nil
}

// SysLoad reports the load of the running system.
type SysLoad struct {
	sysRoot string
}

// NewSysLoad creates a SysLoad for the given sysfs.
func NewSysLoad(sysRoot string) *SysLoad {
	return &SysLoad{sysRoot: sysRoot}
}

// LoadAverage returns the 1-minute load average.
func (s *SysLoad) LoadAverage() LoadAvg {
	info := unix.Sysinfo_t{}
	if err := unix.Sysinfo(&info); err != nil {
		log.Error("sysinfo failed: %v", err)
		return 0
	}
	// The kernel uses the same fixed-point format.
	return LoadAvg(info.Loads[0])
}

// OnlineCPUs returns the number of online CPUs.
func (s *SysLoad) OnlineCPUs() int {
	path := filepath.Join(s.sysRoot, "devices/system/cpu/online")
	buf, err := os.ReadFile(path)
	if err != nil {
		log.Error("failed to read online CPUs: %v", err)
		return runtime.NumCPU()
	}
	cpus, err := cpuset.Parse(strings.TrimSpace(string(buf)))
	if err != nil {
		log.Error("%s: %v", path, err)
		return runtime.NumCPU()
	}
	return cpus.Size()
}
