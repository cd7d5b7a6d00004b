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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

type fakeListener struct {
	added   []int
	removed []int
}

func (l *fakeListener) AddPids(pids []int) {
	l.added = append(l.added, pids...)
	sort.Ints(l.added)
}

func (l *fakeListener) RemovePids(pids []int) {
	l.removed = append(l.removed, pids...)
	sort.Ints(l.removed)
}

func addTestProcess(t *testing.T, procRoot string, pid int, files map[string]string) {
	dir := filepath.Join(procRoot, strconv.Itoa(pid))
	require.NoError(t, os.MkdirAll(dir, 0755))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
}

func removeTestProcess(t *testing.T, procRoot string, pid int) {
	require.NoError(t, os.RemoveAll(filepath.Join(procRoot, strconv.Itoa(pid))))
}

func TestPidWatcherPoll(t *testing.T) {
	procRoot := t.TempDir()
	addTestProcess(t, procRoot, 1, nil)
	addTestProcess(t, procRoot, 2, nil)
	require.NoError(t, os.Mkdir(filepath.Join(procRoot, "sys"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(procRoot, "3"), nil, 0644))

	l := &fakeListener{}
	w := NewPidWatcher(procRoot, 0, l)

	require.NoError(t, w.Poll())
	require.Empty(t, l.added)
	require.Empty(t, l.removed)

	addTestProcess(t, procRoot, 10, nil)
	addTestProcess(t, procRoot, 11, nil)
	removeTestProcess(t, procRoot, 1)
	require.NoError(t, w.Poll())
	if diff := cmp.Diff([]int{10, 11}, l.added); diff != "" {
		t.Errorf("unexpected added pids (-expected +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1}, l.removed); diff != "" {
		t.Errorf("unexpected removed pids (-expected +got):\n%s", diff)
	}

	require.NoError(t, w.Poll())
	require.Len(t, l.added, 2)
	require.Len(t, l.removed, 1)

	w = NewPidWatcher(filepath.Join(procRoot, "missing"), 0, l)
	require.Error(t, w.Poll())
}

func TestReadParentPid(t *testing.T) {
	procRoot := t.TempDir()

	tcases := []struct {
		name     string
		stat     string
		expected int
		invalid  bool
	}{
		{name: "plain", stat: "200 (sleep) S 100 200 100 0 -1", expected: 100},
		{name: "tricky command", stat: "200 (a b) c) S 101 1 1 0", expected: 101},
		{name: "no command", stat: "200 sleep S 100", invalid: true},
		{name: "truncated", stat: "200 (sleep) S", invalid: true},
		{name: "invalid parent", stat: "200 (sleep) S abc", invalid: true},
		{name: "missing", invalid: true},
	}
	for i, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			pid := 200 + i
			if tc.stat != "" {
				addTestProcess(t, procRoot, pid, map[string]string{"stat": tc.stat})
			}
			ppid, err := readParentPid(procRoot, pid)
			if tc.invalid {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.expected, ppid)
		})
	}
}

func newTestEcon(t *testing.T) (*Econ, string) {
	procRoot := t.TempDir()
	e := New(
		WithProcRoot(procRoot),
		WithSysRoot(t.TempDir()),
		WithAllocator(&StaticAllocator{Status: HugePageFree}),
		WithLoadReporter(idleLoad),
		WithPollInterval(10*time.Millisecond),
	)
	return e, procRoot
}

func TestForkAndExit(t *testing.T) {
	ps := pageSize
	e, procRoot := newTestEcon(t)
	maps := fmt.Sprintf("%x-%x rw-p 00000000 00:00 0\n", 16*ps, 20*ps)

	addTestProcess(t, procRoot, 100, map[string]string{"stat": "100 (parent) S 1 100 100 0"})
	addTestProcess(t, procRoot, 150, map[string]string{"stat": "150 (other) S 1 150 150 0"})
	_, err := e.Control().WriteFilters(100, []byte("huge,mmap,0x10\n"))
	require.NoError(t, err)
	require.NoError(t, e.PollProcesses())

	addTestProcess(t, procRoot, 200, map[string]string{
		"stat": "200 (a b) c) S 100 1 1 0",
		"maps": maps,
	})
	addTestProcess(t, procRoot, 300, map[string]string{
		"stat": "300 (unrelated) S 150 1 1 0",
		"maps": maps,
	})
	require.NoError(t, e.PollProcesses())

	require.True(t, e.Registry().Has(200))
	require.False(t, e.Registry().Has(300))
	huge, ok := e.Registry().HugeRanges(200)
	require.True(t, ok)
	if diff := cmp.Diff([]Range{{16 * ps, 20 * ps, 0x10}}, huge); diff != "" {
		t.Errorf("unexpected huge ranges (-expected +got):\n%s", diff)
	}
	filters, ok := e.Registry().Filters(200)
	require.True(t, ok)
	require.Len(t, filters, 1)

	removeTestProcess(t, procRoot, 200)
	removeTestProcess(t, procRoot, 100)
	require.NoError(t, e.PollProcesses())
	require.False(t, e.Registry().Has(200))
	require.False(t, e.Registry().Has(100))
	require.Zero(t, e.Registry().MemoryUsed())
}

func TestForkChains(t *testing.T) {
	tcases := []struct {
		name  string
		child int
		grand int
	}{
		{name: "grandchild after child", child: 200, grand: 300},
		{name: "grandchild before child", child: 300, grand: 200},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			e, procRoot := newTestEcon(t)
			addTestProcess(t, procRoot, 100, map[string]string{"stat": "100 (parent) S 1 100 100 0"})
			_, err := e.Control().WriteFilters(100, []byte("huge,mmap,0x10\n"))
			require.NoError(t, err)
			require.NoError(t, e.PollProcesses())

			addTestProcess(t, procRoot, tc.child, map[string]string{
				"stat": fmt.Sprintf("%d (child) S 100 1 1 0", tc.child),
			})
			addTestProcess(t, procRoot, tc.grand, map[string]string{
				"stat": fmt.Sprintf("%d (grandchild) S %d 1 1 0", tc.grand, tc.child),
			})
			require.NoError(t, e.PollProcesses())

			require.True(t, e.Registry().Has(tc.child))
			require.True(t, e.Registry().Has(tc.grand))
			filters, ok := e.Registry().Filters(tc.grand)
			require.True(t, ok)
			require.Len(t, filters, 1)
		})
	}
}

func TestOnFork(t *testing.T) {
	e, _ := newTestEcon(t)
	require.NoError(t, e.OnFork(1, 2))
	require.False(t, e.Registry().Has(2))

	require.NoError(t, e.Registry().Insert(1))
	require.NoError(t, e.OnFork(1, 2))
	require.True(t, e.Registry().Has(2))
	require.ErrorIs(t, e.OnFork(1, 2), ErrProfileExists)

	e.OnExit(2)
	e.OnExit(2)
	require.False(t, e.Registry().Has(2))
}

func TestWatcherStartStop(t *testing.T) {
	e, procRoot := newTestEcon(t)
	addTestProcess(t, procRoot, 100, map[string]string{"stat": "100 (parent) S 1 100 100 0"})
	require.NoError(t, e.Registry().Insert(100))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, e.StartWatcher(ctx))
	require.Error(t, e.StartWatcher(ctx))

	// Let the watcher prime itself before the process goes away.
	require.Eventually(t, func() bool {
		e.watcher.Lock()
		defer e.watcher.Unlock()
		return e.watcher.primed
	}, time.Second, 5*time.Millisecond)

	removeTestProcess(t, procRoot, 100)
	require.Eventually(t, func() bool {
		return !e.Registry().Has(100)
	}, time.Second, 5*time.Millisecond)

	e.StopWatcher()
	e.StopWatcher()
	require.NoError(t, e.StartWatcher(ctx))
	e.StopWatcher()
}
