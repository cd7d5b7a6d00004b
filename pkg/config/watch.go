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
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher reloads a configuration file whenever it changes.
type FileWatcher struct {
	path    string
	w       *fsnotify.Watcher
	reload  func(string) error
	stopped chan struct{}
}

// WatchFile starts watching path, reloading it with ParseYAMLFile on changes.
// The directory of path is watched so that replaced files are noticed too.
func WatchFile(ctx context.Context, path string) (*FileWatcher, error) {
	return watchFile(ctx, path, ParseYAMLFile)
}

func watchFile(ctx context.Context, path string, reload func(string) error) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, configError("failed to create file watcher: %v", err)
	}
	path = filepath.Clean(path)
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, configError("failed to watch %q: %v", path, err)
	}

	fw := &FileWatcher{
		path:    path,
		w:       w,
		reload:  reload,
		stopped: make(chan struct{}),
	}
	go fw.run(ctx)

	return fw, nil
}

// Stop stops watching and waits for the watcher to finish.
func (fw *FileWatcher) Stop() {
	fw.w.Close()
	<-fw.stopped
}

func (fw *FileWatcher) run(ctx context.Context) {
	defer close(fw.stopped)

	for {
		select {
		case <-ctx.Done():
			fw.w.Close()
			return
		case ev, ok := <-fw.w.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != fw.path {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			log.Info("configuration file %q changed, reloading", fw.path)
			if err := fw.reload(fw.path); err != nil {
				log.Error("failed to reload %q: %v", fw.path, err)
			}
		case err, ok := <-fw.w.Errors:
			if !ok {
				return
			}
			log.Error("watching %q failed: %v", fw.path, err)
		}
	}
}
