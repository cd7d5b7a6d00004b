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
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// BackendFn creates a Backend instance.
type BackendFn func() Backend

// Backend can format and emit log messages.
type Backend interface {
	// Name returns the name of this backend.
	Name() string
	// Log emits a message with the given severity, source, and Printf-like arguments.
	Log(Level, string, string, ...interface{})
	// Block emits a multi-line message, prefixing each line.
	Block(Level, string, string, string, ...interface{})
	// Flush flushes any buffered messages.
	Flush()
	// Sync waits for all messages to get emitted.
	Sync()
	// Stop stops the backend instance.
	Stop()
	// SetSourceAlignment sets the maximum source length for optional alignment.
	SetSourceAlignment(int)
}

// RegisterBackend registers a logger backend.
func RegisterBackend(name string, fn BackendFn) {
	log.Lock()
	defer log.Unlock()
	log.backend[name] = fn
}

// FmtBackendName is the name of our simple fmt-based logging backend.
const FmtBackendName = "fmt"

// severity tags fmtBackend prefixes messages with
var fmtTags = map[Level]string{
	LevelDebug: "D:",
	LevelInfo:  "I:",
	LevelWarn:  "W:",
	LevelError: "E:",
	LevelPanic: "PANIC:",
	LevelFatal: "FATAL ERROR:",
}

// fmtBackend emits messages with fmt.Fprintln to a writer.
type fmtBackend struct {
	sync.Mutex
	w     io.Writer
	align int
}

func createFmtBackend() Backend {
	return newFmtBackend(os.Stderr)
}

func newFmtBackend(w io.Writer) *fmtBackend {
	return &fmtBackend{w: w}
}

// SetOutput redirects the output of the fmt backend, if it is active.
func SetOutput(w io.Writer) {
	log.RLock()
	defer log.RUnlock()
	if f, ok := log.active.(*fmtBackend); ok {
		f.Lock()
		f.w = w
		f.Unlock()
	}
}

func (*fmtBackend) Name() string {
	return FmtBackendName
}

func (f *fmtBackend) Log(level Level, source, format string, args ...interface{}) {
	f.emit(level, source, "", fmt.Sprintf(format, args...))
}

func (f *fmtBackend) Block(level Level, source, prefix, format string, args ...interface{}) {
	f.emit(level, source, prefix, fmt.Sprintf(format, args...))
}

func (f *fmtBackend) Flush() {}
func (f *fmtBackend) Sync()  {}
func (f *fmtBackend) Stop()  {}

func (f *fmtBackend) SetSourceAlignment(align int) {
	f.Lock()
	f.align = align
	f.Unlock()
}

func (f *fmtBackend) emit(level Level, source, prefix, msg string) {
	f.Lock()
	defer f.Unlock()

	suf := (f.align - len(source)) / 2
	pre := f.align - (len(source) + suf)
	if suf < 0 || pre < 0 {
		suf, pre = 0, 0
	}
	src := "[" + strings.Repeat(" ", pre) + source + strings.Repeat(" ", suf) + "]"

	for _, line := range strings.Split(msg, "\n") {
		if prefix != "" {
			fmt.Fprintln(f.w, fmtTags[level], src, prefix+line)
		} else {
			fmt.Fprintln(f.w, fmtTags[level], src, line)
		}
	}
}
