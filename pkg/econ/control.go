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
	"bytes"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/pkg/errors"
)

// Control is the textual control plane of the engine.
type Control struct {
	registry  *Registry
	estimator *Estimator
	decider   *Decider
	stats     *Stats
	dumpLimit int64
}

// NewControl creates a control plane for the given components.
func NewControl(registry *Registry, estimator *Estimator, decider *Decider, stats *Stats) *Control {
	return &Control{
		registry:  registry,
		estimator: estimator,
		decider:   decider,
		stats:     stats,
		dumpLimit: DefaultDumpLimit,
	}
}

// SetDumpLimit sets the size limit of dumps, 0 for unlimited.
func (c *Control) SetDumpLimit(limit int) {
	atomic.StoreInt64(&c.dumpLimit, int64(limit))
}

// Mode returns the current mode as an integer.
func (c *Control) Mode() string {
	return strconv.Itoa(int(c.decider.Mode()))
}

// SetMode sets the mode from an integer, 0 or 1. Any other input turns the
// mode off and fails.
func (c *Control) SetMode(value string) error {
	v, err := parseValue(strings.TrimSpace(value))
	if err != nil || v > uint64(ModeOn) {
		c.decider.SetMode(ModeOff)
		return errors.Wrapf(ErrInvalidMode, "%q", value)
	}
	if err := c.decider.SetMode(Mode(v)); err != nil {
		return errors.Wrapf(err, "%q", value)
	}
	log.Info("mode set to %d", v)
	return nil
}

// DebugLevel returns the current debug level.
func (c *Control) DebugLevel() string {
	return strconv.FormatUint(c.estimator.DebugLevel(), 10)
}

// SetDebugLevel sets the debug level. Invalid input is ignored.
func (c *Control) SetDebugLevel(value string) error {
	v, err := parseValue(strings.TrimSpace(value))
	if err != nil {
		return err
	}
	c.estimator.SetDebugLevel(v)
	return nil
}

// ContentionMs returns the contention window in milliseconds.
func (c *Control) ContentionMs() string {
	return strconv.FormatUint(c.estimator.ContentionMs(), 10)
}

// SetContentionMs sets the contention window. Invalid input is ignored.
func (c *Control) SetContentionMs(value string) error {
	v, err := parseValue(strings.TrimSpace(value))
	if err != nil {
		return err
	}
	c.estimator.SetContentionMs(v)
	return nil
}

// FreqMHz returns the assumed CPU frequency in MHz.
func (c *Control) FreqMHz() string {
	return strconv.FormatUint(c.estimator.FreqMHz(), 10)
}

// SetFreqMHz sets the assumed CPU frequency. Invalid input is ignored.
func (c *Control) SetFreqMHz(value string) error {
	v, err := parseValue(strings.TrimSpace(value))
	if err != nil {
		return err
	}
	c.estimator.SetFreqMHz(v)
	return nil
}

// Stats returns the counters as key=value lines.
func (c *Control) Stats() string {
	return c.stats.Snapshot().String()
}

// ReadFilters dumps the filters of pid, one per line, after a header.
func (c *Control) ReadFilters(pid int) string {
	buf := c.newDumpBuffer()
	buf.line("POLICY,SECTION,MISSES,CONSTRAINTS...")

	filters, _ := c.registry.Filters(pid)
	for _, f := range filters {
		if !buf.line(f.String()) {
			break
		}
	}

	return buf.String()
}

// WriteFilters parses and appends filters to the profile of pid, creating
// the profile if necessary. It returns the number of bytes consumed, which
// is less than len(data) if data ends in an incomplete or invalid filter.
func (c *Control) WriteFilters(pid int, data []byte) (int, error) {
	filters, n, err := ParseFilters(data)
	if err != nil {
		return 0, err
	}
	if err := c.registry.AddFilters(pid, filters); err != nil {
		return 0, err
	}
	log.Info("pid %d: added %d filter(s)", pid, len(filters))
	return n, nil
}

// ReadProfile dumps the ranges of pid. It returns false if pid has no
// profile.
func (c *Control) ReadProfile(pid int) (string, bool) {
	huge, eager, ok := c.registry.Ranges(pid)
	if !ok {
		return "", false
	}

	buf := c.newDumpBuffer()
	buf.line("Huge Page Ranges:")
	for _, r := range huge {
		if !buf.line(r.String()) {
			break
		}
	}
	buf.full = false
	buf.line("Eager Page Ranges:")
	for _, r := range eager {
		if !buf.line(r.String()) {
			break
		}
	}

	return buf.String(), true
}

// dumpBuffer collects lines up to a size limit.
type dumpBuffer struct {
	bytes.Buffer
	limit int
	full  bool
}

func (c *Control) newDumpBuffer() *dumpBuffer {
	return &dumpBuffer{limit: int(atomic.LoadInt64(&c.dumpLimit))}
}

// line adds a line unless it would not fit.
func (b *dumpBuffer) line(l string) bool {
	if b.full {
		return false
	}
	l += "\n"
	if b.limit > 0 && b.Len()+len(l) > b.limit {
		b.full = true
		return false
	}
	b.WriteString(l)
	return true
}
