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

	"github.com/hashicorp/go-multierror"
	"github.com/intel/mmecon/pkg/config"
)

// ConfigHelp describes the configuration of the engine.
const ConfigHelp = `
The econ module configures the cost-benefit engine:
  mode:          0 to take every action, 1 to take only beneficial ones
  debug:         debug level, 1 for debug messages, 2 to log every estimate
  contention-ms: prezeroing lock contention window in milliseconds
  freq-mhz:      assumed CPU frequency in MHz
  memory-limit:  limit of memory used for profiles in bytes, 0 for none
  dump-limit:    size limit of textual dumps in bytes, 0 for none
  poll-interval: period of checking for forked and exited processes
`

// Config is the configuration of the engine.
type Config struct {
	Mode         uint64          `json:"mode"`
	Debug        uint64          `json:"debug"`
	ContentionMs uint64          `json:"contention-ms"`
	FreqMHz      uint64          `json:"freq-mhz"`
	MemoryLimit  uint64          `json:"memory-limit"`
	DumpLimit    int             `json:"dump-limit"`
	PollInterval config.Duration `json:"poll-interval"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() interface{} {
	return &Config{
		Mode:         uint64(ModeOff),
		ContentionMs: DefaultContentionMs,
		FreqMHz:      DefaultFreqMHz,
		DumpLimit:    DefaultDumpLimit,
		PollInterval: config.Duration(DefaultPollInterval),
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var result *multierror.Error

	if c.Mode > uint64(ModeOn) {
		result = multierror.Append(result, econError("invalid mode %d", c.Mode))
	}
	if c.FreqMHz == 0 {
		result = multierror.Append(result, econError("invalid CPU frequency 0"))
	}
	if c.DumpLimit < 0 {
		result = multierror.Append(result, econError("invalid dump limit %d", c.DumpLimit))
	}
	if c.PollInterval < 0 {
		result = multierror.Append(result, econError("invalid poll interval %s", c.PollInterval))
	}

	return result.ErrorOrNil()
}

// String returns the configuration as a string.
func (c *Config) String() string {
	return fmt.Sprintf("mode=%d debug=%d contention-ms=%d freq-mhz=%d memory-limit=%d dump-limit=%d poll-interval=%s",
		c.Mode, c.Debug, c.ContentionMs, c.FreqMHz, c.MemoryLimit, c.DumpLimit, c.PollInterval)
}
