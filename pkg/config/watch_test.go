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

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatchFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}\n"), 0644))

	reloaded := make(chan string, 16)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fw, err := watchFile(ctx, path, func(p string) error {
		reloaded <- p
		return nil
	})
	require.NoError(t, err)
	defer fw.Stop()

	// unrelated files in the same directory are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("{}\n"), 0644))
	require.NoError(t, os.WriteFile(path, []byte("logger: {}\n"), 0644))

	select {
	case p := <-reloaded:
		require.Equal(t, path, p)
	case <-time.After(5 * time.Second):
		t.Fatalf("configuration file %q was not reloaded", path)
	}
}
