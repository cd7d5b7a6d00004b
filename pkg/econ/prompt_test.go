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
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestPrompt(t *testing.T) (*Prompt, *bytes.Buffer) {
	e, _ := newTestEcon(t)
	out := &bytes.Buffer{}
	return NewPrompt(e, "mmecon> ", bufio.NewReader(strings.NewReader("")), bufio.NewWriter(out)), out
}

func TestPromptCommands(t *testing.T) {
	ps := pageSize
	tcases := []struct {
		name     string
		cmd      string
		status   CommandStatus
		expected string
	}{
		{
			name: "empty command",
			cmd:  "  ",
		},
		{
			name:   "unknown command",
			cmd:    "reboot now",
			status: csUnknownCommand,
		},
		{
			name:     "add filter",
			cmd:      "filters -pid 42 -add huge,mmap,0x10",
			expected: "consumed 15 of 15 bytes\n",
		},
		{
			name:     "show filters",
			cmd:      "filters -pid 42",
			expected: "POLICY,SECTION,MISSES,CONSTRAINTS...\nhuge,mmap,0x10\n",
		},
		{
			name:   "add invalid filter",
			cmd:    "filters -pid 42 -add huge,stack,1",
			status: csError,
		},
		{
			name:   "filters without pid",
			cmd:    "filters",
			status: csError,
		},
		{
			name: "add mapping",
			cmd:  fmt.Sprintf("mmap -pid 42 -addr 0x%x -len 0x%x", 16*ps, 4*ps),
		},
		{
			name: "show ranges",
			cmd:  "ranges -pid 42",
			expected: "Huge Page Ranges:\n" + Range{16 * ps, 20 * ps, 0x10}.String() + "\n" +
				"Eager Page Ranges:\n" + Range{16 * ps, 20 * ps, 0}.String() + "\n",
		},
		{
			name:   "ranges without profile",
			cmd:    "ranges -pid 43",
			status: csError,
		},
		{
			name:     "enable",
			cmd:      "mode on",
			expected: "1\n",
		},
		{
			name:     "estimate",
			cmd:      fmt.Sprintf("estimate -action promote-huge -pid 42 -addr 0x%x -decide", 17*ps),
			expected: "cost=200000 benefit=16 extra=0\ndecision=false\n",
		},
		{
			name:   "estimate unknown action",
			cmd:    "estimate -action reboot",
			status: csError,
		},
		{
			name:     "set tunables",
			cmd:      "tunables -contention-ms 5 -freq-mhz 2000",
			expected: "contention-ms=5\nfreq-mhz=2000\n",
		},
		{
			name:   "invalid tunable",
			cmd:    "tunables -freq-mhz fast",
			status: csError,
		},
		{
			name: "fork",
			cmd:  "fork -parent 42 -child 43",
		},
		{
			name:   "fork onto existing profile",
			cmd:    "fork -parent 42 -child 43",
			status: csError,
		},
		{
			name: "exit",
			cmd:  "exit -pid 43",
		},
		{
			name: "promote",
			cmd:  "promote -addr 0x200000",
		},
		{
			name:   "scan missing process",
			cmd:    "scan -pid 42",
			status: csError,
		},
		{
			name:     "disable",
			cmd:      "mode 0",
			expected: "0\n",
		},
		{
			name:   "invalid mode",
			cmd:    "mode 5",
			status: csError,
		},
	}

	p, out := newTestPrompt(t)
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			out.Reset()
			require.Equal(t, tc.status, p.RunCmdString(tc.cmd))
			if tc.expected != "" {
				require.Equal(t, tc.expected, out.String())
			}
		})
	}

	out.Reset()
	require.Equal(t, csOk, p.RunCmdString("stats"))
	require.Contains(t, out.String(), "estimated=1\ndecided=1\nyes=0\npromoted=1\n")
}

func TestPromptMetrics(t *testing.T) {
	p, out := newTestPrompt(t)
	require.Equal(t, csOk, p.RunCmdString("metrics"))
	require.Contains(t, out.String(), "# TYPE mm_econ_estimates_total counter\n")
	require.Contains(t, out.String(), "mm_econ_alloc_bytes 0\n")
	require.Contains(t, out.String(), "mm_econ_estimated_cost_bucket")
}

func TestPromptInteract(t *testing.T) {
	e, _ := newTestEcon(t)
	out := &bytes.Buffer{}
	in := bufio.NewReader(strings.NewReader("debug\nhelp\nq\nstats\n"))
	p := NewPrompt(e, "> ", in, bufio.NewWriter(out))
	p.SetEcho(true)
	p.Interact()

	require.True(t, strings.HasPrefix(out.String(), "> debug\n0\n> help\nAvailable commands:\n"))
	require.True(t, strings.HasSuffix(out.String(), "> q\nquit.\n"))
	require.NotContains(t, out.String(), "estimated=")
}
