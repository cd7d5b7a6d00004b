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

package config_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/intel/mmecon/pkg/config"
	"github.com/intel/mmecon/pkg/testutils"
	"github.com/stretchr/testify/require"
)

type testData struct {
	Int    int               `json:"integer"`
	String string            `json:"string"`
	Map    map[string]string `json:"map,omitempty"`
	Bool   bool              `json:"bool"`
}

func (d *testData) Validate() error {
	if d.Int < 0 {
		return fmt.Errorf("invalid (negative) integer %d", d.Int)
	}
	return nil
}

func defaultTestData() interface{} {
	return &testData{Int: 1, String: "default"}
}

func TestInvalidRegistration(t *testing.T) {
	var (
		i = 3
		d = testData{}
	)
	tcases := []struct {
		name     string
		module   string
		ptr      interface{}
		defaults func() interface{}
	}{
		{name: "nil", module: "nil", ptr: nil, defaults: defaultTestData},
		{name: "non-pointer", module: "nonptr", ptr: i, defaults: defaultTestData},
		{name: "type mismatch", module: "mismatch", ptr: &i, defaults: defaultTestData},
		{name: "empty name", module: "", ptr: &d, defaults: defaultTestData},
		{name: "dotted name", module: "a.b", ptr: &d, defaults: defaultTestData},
		{name: "nil defaults", module: "nodefaults", ptr: &d},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			require.Panics(t, func() {
				config.Register(tc.module, "", tc.ptr, tc.defaults)
			})
		})
	}
}

func TestConflictingRegistration(t *testing.T) {
	d1, d2 := testData{}, testData{}
	config.Register("conflict", "", &d1, defaultTestData)
	require.Panics(t, func() {
		config.Register("conflict", "", &d2, defaultTestData)
	})
}

func TestParseYAML(t *testing.T) {
	var (
		mod     = testData{}
		events  []config.Event
		rejects bool
	)
	config.Register("parsetest", "test module", &mod, defaultTestData,
		config.WithNotify(func(event config.Event, _ config.Source) error {
			events = append(events, event)
			if rejects && event == config.UpdateEvent {
				return fmt.Errorf("rejected")
			}
			return nil
		}))
	t.Cleanup(func() {
		events, rejects = nil, false
		require.NoError(t, config.Reset())
	})
	require.Equal(t, testData{Int: 1, String: "default"}, mod)

	tcases := []struct {
		name     string
		yaml     string
		reject   bool
		invalid  bool
		expected testData
		events   []config.Event
	}{
		{
			name:     "override",
			yaml:     "parsetest:\n  integer: 5\n  map:\n    a: b\n",
			expected: testData{Int: 5, String: "default", Map: map[string]string{"a": "b"}},
			events:   []config.Event{config.UpdateEvent},
		},
		{
			name:     "missing module reverts to defaults",
			yaml:     "{}",
			expected: testData{Int: 1, String: "default"},
			events:   []config.Event{config.UpdateEvent},
		},
		{
			name:     "unknown module",
			yaml:     "nosuchmodule:\n  foo: bar\nparsetest:\n  integer: 7\n",
			invalid:  true,
			expected: testData{Int: 1, String: "default"},
		},
		{
			name:     "unknown field",
			yaml:     "parsetest:\n  nosuchfield: 1\n",
			invalid:  true,
			expected: testData{Int: 1, String: "default"},
		},
		{
			name:     "failed validation",
			yaml:     "parsetest:\n  integer: -1\n",
			invalid:  true,
			expected: testData{Int: 1, String: "default"},
		},
		{
			name:     "rejected by notifier",
			yaml:     "parsetest:\n  integer: 3\n  bool: true\n",
			reject:   true,
			invalid:  true,
			expected: testData{Int: 1, String: "default"},
			events:   []config.Event{config.UpdateEvent, config.RevertEvent},
		},
	}
	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			events, rejects = nil, tc.reject
			err := config.ParseYAMLData([]byte(tc.yaml), config.External)
			if tc.invalid {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			require.Equal(t, tc.expected, mod)
			require.Equal(t, tc.events, events)
		})
	}
}

func TestParseYAMLFile(t *testing.T) {
	mod := testData{}
	config.Register("filetest", "", &mod, defaultTestData)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("filetest:\n  string: from-file\n"), 0644))
	require.NoError(t, config.ParseYAMLFile(path))
	require.Equal(t, "from-file", mod.String)
	require.Contains(t, config.Dump(), "from-file")

	require.Error(t, config.ParseYAMLFile(filepath.Join(t.TempDir(), "missing.yaml")))

	require.NoError(t, config.Reset())
	require.Equal(t, "default", mod.String)
}

func TestUnknownModules(t *testing.T) {
	err := config.ParseYAMLData([]byte("nosuch1: {}\nnosuch2: {}\n"), config.External)
	testutils.VerifyError(t, err, 2, []string{"nosuch1", "nosuch2"})
}
