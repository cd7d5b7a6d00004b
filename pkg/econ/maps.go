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
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// NoFd is the file descriptor of mappings without a known descriptor.
const NoFd = ^uint64(0)

// ScanMappings reads the current mappings of pid from procfs.
func ScanMappings(procRoot string, pid int) ([]*Mapping, error) {
	path := filepath.Join(procRoot, strconv.Itoa(pid), "maps")
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read mappings of pid %d", pid)
	}
	defer f.Close()

	mappings, err := parseMappings(pid, f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	return mappings, nil
}

// parseMappings parses mappings in /proc/<pid>/maps format.
func parseMappings(pid int, r io.Reader) ([]*Mapping, error) {
	var mappings []*Mapping

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		m, ok, err := parseMapping(pid, line)
		if err != nil {
			return nil, err
		}
		if ok {
			mappings = append(mappings, m)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	setSectionOffsets(mappings)

	return mappings, nil
}

// parseMapping parses a single line of the form
//
//	start-end perms offset dev inode [path]
func parseMapping(pid int, line string) (*Mapping, bool, error) {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return nil, false, econError("invalid mapping %q", line)
	}

	bounds := strings.SplitN(fields[0], "-", 2)
	if len(bounds) != 2 {
		return nil, false, econError("invalid address range in %q", line)
	}
	start, err := strconv.ParseUint(bounds[0], 16, 64)
	if err != nil {
		return nil, false, econError("invalid start address in %q", line)
	}
	end, err := strconv.ParseUint(bounds[1], 16, 64)
	if err != nil || end < start {
		return nil, false, econError("invalid end address in %q", line)
	}
	perms := fields[1]
	if len(perms) < 4 {
		return nil, false, econError("invalid permissions in %q", line)
	}
	off, err := strconv.ParseUint(fields[2], 16, 64)
	if err != nil {
		return nil, false, econError("invalid offset in %q", line)
	}
	path := strings.Join(fields[5:], " ")

	m := &Mapping{
		Pid:  pid,
		Addr: start,
		Hint: start,
		Len:  end - start,
		Fd:   NoFd,
		Off:  off,
	}

	switch {
	case path == "[heap]":
		m.Section = SectionHeap
	case path == "[stack]", path == "[vdso]", path == "[vvar]", path == "[vsyscall]":
		return nil, false, nil
	case path == "" || path[0] == '[':
		m.Section = SectionMmap
	case perms[2] == 'x':
		m.Section = SectionCode
	default:
		m.Section = SectionData
	}

	if perms[0] == 'r' {
		m.Prot |= unix.PROT_READ
	}
	if perms[1] == 'w' {
		m.Prot |= unix.PROT_WRITE
	}
	if perms[2] == 'x' {
		m.Prot |= unix.PROT_EXEC
	}
	if perms[3] == 's' {
		m.Flags |= unix.MAP_SHARED
	} else {
		m.Flags |= unix.MAP_PRIVATE
	}
	if path == "" || path[0] == '[' {
		m.Flags |= unix.MAP_ANONYMOUS
	}

	return m, true, nil
}

// setSectionOffsets sets the offset of each mapping from the base of its
// section. The base is the lowest start address for sections growing up,
// and the highest end address for the mmap section which grows down.
func setSectionOffsets(mappings []*Mapping) {
	bases := map[Section]uint64{}
	for _, m := range mappings {
		base, ok := bases[m.Section]
		switch {
		case m.Section == SectionMmap:
			if end := m.Addr + m.Len; !ok || end > base {
				bases[m.Section] = end
			}
		case !ok || m.Addr < base:
			bases[m.Section] = m.Addr
		}
	}
	for _, m := range mappings {
		if m.Section == SectionMmap {
			m.SectionOffset = bases[m.Section] - m.Addr
		} else {
			m.SectionOffset = m.Addr - bases[m.Section]
		}
	}
}
