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
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

const sampleMaps = `00400000-00452000 r-xp 00000000 08:02 173521      /usr/bin/dbus-daemon
00651000-00652000 r--p 00051000 08:02 173521      /usr/bin/dbus-daemon
00652000-00655000 rw-p 00052000 08:02 173521      /usr/bin/dbus-daemon
00e03000-00e24000 rw-p 00000000 00:00 0           [heap]
7f0000000000-7f0000021000 rw-p 00000000 00:00 0
7f0000100000-7f0000200000 r--s 00000000 08:02 12345       /tmp/shared file
7ffd3c000000-7ffd3c021000 rw-p 00000000 00:00 0           [stack]
7ffd3c1f0000-7ffd3c1f2000 r-xp 00000000 00:00 0           [vdso]

ffffffffff600000-ffffffffff601000 --xp 00000000 00:00 0   [vsyscall]
`

func sampleMappings(pid int) []*Mapping {
	const (
		private = unix.MAP_PRIVATE
		anon    = unix.MAP_PRIVATE | unix.MAP_ANONYMOUS
		rw      = unix.PROT_READ | unix.PROT_WRITE
	)
	return []*Mapping{
		{
			Pid: pid, Section: SectionCode, Addr: 0x400000, Hint: 0x400000, Len: 0x52000,
			Prot: unix.PROT_READ | unix.PROT_EXEC, Flags: private, Fd: NoFd,
		},
		{
			Pid: pid, Section: SectionData, Addr: 0x651000, Hint: 0x651000, Len: 0x1000,
			Prot: unix.PROT_READ, Flags: private, Fd: NoFd, Off: 0x51000,
		},
		{
			Pid: pid, Section: SectionData, Addr: 0x652000, Hint: 0x652000, Len: 0x3000,
			SectionOffset: 0x1000, Prot: rw, Flags: private, Fd: NoFd, Off: 0x52000,
		},
		{
			Pid: pid, Section: SectionHeap, Addr: 0xe03000, Hint: 0xe03000, Len: 0x21000,
			Prot: rw, Flags: anon, Fd: NoFd,
		},
		{
			Pid: pid, Section: SectionMmap, Addr: 0x7f0000000000, Hint: 0x7f0000000000, Len: 0x21000,
			SectionOffset: 0x21000, Prot: rw, Flags: anon, Fd: NoFd,
		},
		{
			Pid: pid, Section: SectionData, Addr: 0x7f0000100000, Hint: 0x7f0000100000, Len: 0x100000,
			SectionOffset: 0x7f0000100000 - 0x651000, Prot: unix.PROT_READ, Flags: unix.MAP_SHARED, Fd: NoFd,
		},
	}
}

func TestParseMappings(t *testing.T) {
	mappings, err := parseMappings(testPid, strings.NewReader(sampleMaps))
	require.NoError(t, err)
	if diff := cmp.Diff(sampleMappings(testPid), mappings); diff != "" {
		t.Errorf("unexpected mappings (-expected +got):\n%s", diff)
	}
}

func TestParseInvalidMapping(t *testing.T) {
	tcases := []struct {
		name string
		line string
	}{
		{name: "too few fields", line: "00400000-00452000 r-xp 00000000 08:02"},
		{name: "no address range", line: "00400000 r-xp 00000000 08:02 173521"},
		{name: "invalid start", line: "zzzz-00452000 r-xp 00000000 08:02 173521"},
		{name: "invalid end", line: "00400000-zzzz r-xp 00000000 08:02 173521"},
		{name: "inverted range", line: "00452000-00400000 r-xp 00000000 08:02 173521"},
		{name: "short permissions", line: "00400000-00452000 r-x 00000000 08:02 173521"},
		{name: "invalid offset", line: "00400000-00452000 r-xp offset 08:02 173521"},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseMappings(testPid, strings.NewReader(sampleMaps+tc.line+"\n"))
			require.Error(t, err)
		})
	}
}

func TestScanMappings(t *testing.T) {
	procRoot := t.TempDir()
	dir := filepath.Join(procRoot, "100")
	require.NoError(t, os.Mkdir(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "maps"), []byte(sampleMaps), 0644))

	mappings, err := ScanMappings(procRoot, 100)
	require.NoError(t, err)
	if diff := cmp.Diff(sampleMappings(100), mappings); diff != "" {
		t.Errorf("unexpected mappings (-expected +got):\n%s", diff)
	}

	_, err = ScanMappings(procRoot, 101)
	require.Error(t, err)
}
