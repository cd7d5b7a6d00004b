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

package log

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/intel/mmecon/pkg/config"
)

// recorder is a Backend which records emitted messages.
type recorder struct {
	sync.Mutex
	msgs []string
}

const recorderName = "recorder"

var rec = &recorder{}

func (*recorder) Name() string { return recorderName }

func (r *recorder) Log(level Level, source, format string, args ...interface{}) {
	r.Lock()
	defer r.Unlock()
	r.msgs = append(r.msgs, level.String()+" "+source+": "+fmt.Sprintf(format, args...))
}

func (r *recorder) Block(level Level, source, prefix, format string, args ...interface{}) {
	for _, line := range strings.Split(fmt.Sprintf(format, args...), "\n") {
		r.Log(level, source, "%s%s", prefix, line)
	}
}

func (*recorder) Flush()                 {}
func (*recorder) Sync()                  {}
func (*recorder) Stop()                  {}
func (*recorder) SetSourceAlignment(int) {}

func (r *recorder) take() []string {
	r.Lock()
	defer r.Unlock()
	msgs := r.msgs
	r.msgs = nil
	return msgs
}

func setupRecorder(t *testing.T) {
	RegisterBackend(recorderName, func() Backend { return rec })
	require.NoError(t, SetBackend(recorderName))
	rec.take()
	t.Cleanup(func() {
		SetLevel(DefaultLevel)
		_ = SetBackend(FmtBackendName)
	})
}

func TestParseSrcmap(t *testing.T) {
	tcases := []struct {
		name     string
		value    string
		expected srcmap
		invalid  bool
	}{
		{
			name:     "plain sources",
			value:    "econ,http",
			expected: srcmap{"econ": true, "http": true},
		},
		{
			name:     "state carries over",
			value:    "on:*,off:config,http",
			expected: srcmap{"*": true, "config": false, "http": false},
		},
		{
			name:     "all is a wildcard",
			value:    "all",
			expected: srcmap{"*": true},
		},
		{
			name:    "bad state",
			value:   "maybe:econ",
			invalid: true,
		},
		{
			name:    "too many colons",
			value:   "on:econ:http",
			invalid: true,
		},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			m, err := parseSrcmap(tc.value)
			if tc.invalid {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.expected, m)
		})
	}
}

func TestSrcmapLookup(t *testing.T) {
	m := srcmap{"*": true, "config": false}
	require.True(t, m.isOn("econ", false))
	require.False(t, m.isOn("config", true))
	require.True(t, srcmap{}.isOn("econ", true))
	require.False(t, srcmap{}.isOn("econ", false))
}

func TestLevelSuppression(t *testing.T) {
	setupRecorder(t)
	l := NewLogger("leveltest")

	l.Info("info passes")
	SetLevel(LevelWarn)
	l.Info("info is suppressed")
	l.Warn("warning passes")
	l.Error("error passes")

	require.Equal(t, []string{
		"info leveltest: info passes",
		"warning leveltest: warning passes",
		"error leveltest: error passes",
	}, rec.take())
}

func TestEnableDebug(t *testing.T) {
	setupRecorder(t)
	l := NewLogger("debugtest")

	l.Debug("not emitted")
	require.False(t, l.EnableDebug(true))
	require.True(t, l.DebugEnabled())
	l.Debug("emitted %d", 1)
	l.DebugBlock("  ", "line 1\nline 2")
	require.True(t, l.EnableDebug(false))
	l.Debug("not emitted")

	require.Equal(t, []string{
		"debug debugtest: emitted 1",
		"debug debugtest:   line 1",
		"debug debugtest:   line 2",
	}, rec.take())
}

func TestSameSourceSameLogger(t *testing.T) {
	require.Equal(t, NewLogger("same"), NewLogger("[same]"))
	require.Equal(t, "same", NewLogger(" same ").Source())
}

func TestFmtBackendAlignment(t *testing.T) {
	buf := &bytes.Buffer{}
	f := newFmtBackend(buf)
	f.SetSourceAlignment(6)
	f.Log(LevelWarn, "abc", "hello %s", "world")
	f.Block(LevelInfo, "abcdefgh", "> ", "a\nb")

	require.Equal(t,
		"W: [  abc ] hello world\n"+
			"I: [abcdefgh] > a\n"+
			"I: [abcdefgh] > b\n",
		buf.String())
}

func TestUnknownBackend(t *testing.T) {
	require.Error(t, SetBackend("no-such-backend"))
}

func TestForcedDebug(t *testing.T) {
	setupRecorder(t)
	l := NewLogger("forcedtest")

	l.Debug("not emitted")
	require.True(t, ToggleForcedDebug())
	require.True(t, ForcedDebug())
	l.Debug("emitted")
	require.False(t, ToggleForcedDebug())
	l.Debug("not emitted")

	require.Equal(t, []string{"debug forcedtest: emitted"}, rec.take())
}

func TestToggleDebugOnSignal(t *testing.T) {
	setupRecorder(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ToggleDebugOnSignal(ctx, syscall.SIGUSR1)
	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGUSR1))
	require.Eventually(t, ForcedDebug, time.Second, 10*time.Millisecond)

	ToggleForcedDebug()
	rec.take()
}

func TestConfigModule(t *testing.T) {
	setupRecorder(t)
	t.Cleanup(func() { require.NoError(t, config.Reset()) })

	l := NewLogger("cfgtest")
	cfg := "logger:\n" +
		"  Level: error\n" +
		"  Logger: " + recorderName + "\n" +
		"  Debug: \"on:cfgtest\"\n"
	require.NoError(t, config.ParseYAMLData([]byte(cfg), config.External))

	l.Warn("suppressed")
	l.Error("passes")
	l.Debug("debug passes")

	require.Equal(t, []string{
		"error cfgtest: passes",
		"debug cfgtest: debug passes",
	}, rec.take())
}
