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
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// DefaultPollInterval is the default period of process polling.
const DefaultPollInterval = 5 * time.Second

// PidListener is notified about new and disappeared processes.
type PidListener interface {
	AddPids([]int)
	RemovePids([]int)
}

// PidWatcher polls procfs for processes coming and going.
type PidWatcher struct {
	sync.Mutex
	procRoot string
	interval time.Duration
	listener PidListener
	pids     map[int]struct{}
	primed   bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewPidWatcher creates a watcher reporting to listener.
func NewPidWatcher(procRoot string, interval time.Duration, listener PidListener) *PidWatcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &PidWatcher{
		procRoot: procRoot,
		interval: interval,
		listener: listener,
		pids:     make(map[int]struct{}),
	}
}

// SetInterval changes the polling interval, taking effect after the next poll.
func (w *PidWatcher) SetInterval(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	w.Lock()
	w.interval = interval
	w.Unlock()
}

// Start starts polling in the background until ctx is done or Stop is called.
func (w *PidWatcher) Start(ctx context.Context) error {
	w.Lock()
	defer w.Unlock()

	if w.cancel != nil {
		return econError("pid watcher already running")
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	go w.run(ctx, w.done)

	return nil
}

// Stop stops background polling.
func (w *PidWatcher) Stop() {
	w.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (w *PidWatcher) run(ctx context.Context, done chan struct{}) {
	log.Debug("pid watcher: online")
	defer log.Debug("pid watcher: offline")
	defer close(done)

	for {
		if err := w.Poll(); err != nil {
			log.Error("pid watcher: %v", err)
		}

		w.Lock()
		interval := w.interval
		w.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

// Poll scans procfs once, reporting changes since the previous scan. The
// first scan only takes note of the existing processes.
func (w *PidWatcher) Poll() error {
	found, err := listPids(w.procRoot)
	if err != nil {
		return err
	}

	w.Lock()
	newPids := []int{}
	for pid := range found {
		if _, ok := w.pids[pid]; !ok {
			w.pids[pid] = struct{}{}
			newPids = append(newPids, pid)
		}
	}
	oldPids := []int{}
	for pid := range w.pids {
		if _, ok := found[pid]; !ok {
			delete(w.pids, pid)
			oldPids = append(oldPids, pid)
		}
	}
	primed := w.primed
	w.primed = true
	w.Unlock()

	sort.Ints(newPids)
	sort.Ints(oldPids)

	if !primed {
		return nil
	}
	if len(newPids) > 0 {
		w.listener.AddPids(newPids)
	}
	if len(oldPids) > 0 {
		w.listener.RemovePids(oldPids)
	}

	return nil
}

// listPids returns the pids of all processes in procfs.
func listPids(procRoot string) (map[int]struct{}, error) {
	entries, err := os.ReadDir(procRoot)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list processes")
	}
	pids := make(map[int]struct{}, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if pid, err := strconv.Atoi(e.Name()); err == nil && pid > 0 {
			pids[pid] = struct{}{}
		}
	}
	return pids, nil
}

// readParentPid reads the parent pid of pid from procfs.
func readParentPid(procRoot string, pid int) (int, error) {
	path := filepath.Join(procRoot, strconv.Itoa(pid), "stat")
	buf, err := os.ReadFile(path)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to read parent of pid %d", pid)
	}
	// pid (comm) state ppid ..., where comm may contain anything
	stat := string(buf)
	idx := strings.LastIndexByte(stat, ')')
	if idx < 0 {
		return 0, econError("%s: malformed content", path)
	}
	fields := strings.Fields(stat[idx+1:])
	if len(fields) < 2 {
		return 0, econError("%s: malformed content", path)
	}
	ppid, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, econError("%s: invalid parent pid %q", path, fields[1])
	}
	return ppid, nil
}
