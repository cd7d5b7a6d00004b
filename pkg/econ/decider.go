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
	"sync/atomic"
)

// Mode is the global decision mode.
type Mode int32

const (
	// ModeOff takes every action, as if there were no estimates.
	ModeOff Mode = 0
	// ModeOn takes actions whose benefit exceeds their cost.
	ModeOn Mode = 1
)

// Decider decides whether actions should be taken.
type Decider struct {
	mode  int32
	stats *Stats
}

// NewDecider creates a decider in ModeOff.
func NewDecider(stats *Stats) *Decider {
	return &Decider{stats: stats}
}

// Mode returns the current mode.
func (d *Decider) Mode() Mode {
	return Mode(atomic.LoadInt32(&d.mode))
}

// SetMode sets the mode. An invalid mode turns the decider off.
func (d *Decider) SetMode(mode Mode) error {
	if mode != ModeOff && mode != ModeOn {
		atomic.StoreInt32(&d.mode, int32(ModeOff))
		return ErrInvalidMode
	}
	atomic.StoreInt32(&d.mode, int32(mode))
	return nil
}

// Decide tells whether the action with the given estimate should be taken.
func (d *Decider) Decide(cd *CostDelta) bool {
	switch mode := d.Mode(); mode {
	case ModeOff:
		d.stats.decision(false)
		return true
	case ModeOn:
		yes := cd.Benefit > cd.Cost
		d.stats.decision(yes)
		return yes
	default:
		limitLog.Error("invalid mode %d", int(mode))
		d.stats.decision(false)
		return true
	}
}
