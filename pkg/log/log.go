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
	"os"
	"strings"
	"sync"
)

// logging is the runtime state shared by all loggers.
type logging struct {
	sync.RWMutex
	level   Level                // lowest non-debug severity passed through
	active  Backend              // active backend
	backend map[string]BackendFn // registered backends
	loggers map[string]logger    // source to logger
	sources map[logger]string    // logger to source
	configs map[logger]srcConfig // logger runtime configuration
	forced  bool                 // forced full debugging
}

var log = &logging{
	level:   DefaultLevel,
	active:  newFmtBackend(os.Stderr),
	backend: map[string]BackendFn{FmtBackendName: createFmtBackend},
	loggers: make(map[string]logger),
	sources: make(map[logger]string),
	configs: make(map[logger]srcConfig),
}

// SetLevel sets the lowest severity level of messages to pass through.
func SetLevel(level Level) {
	log.Lock()
	defer log.Unlock()
	log.setLevel(level)
}

// SetBackend activates the named backend.
func SetBackend(name string) error {
	log.Lock()
	defer log.Unlock()
	return log.setBackend(name)
}

// Flush flushes the active backend.
func Flush() {
	log.RLock()
	defer log.RUnlock()
	log.active.Flush()
}

// get returns the logger for source, creating it if necessary.
func (l *logging) get(source string) logger {
	source = strings.Trim(source, "[] ")

	l.Lock()
	defer l.Unlock()

	if lg, ok := l.loggers[source]; ok {
		return lg
	}

	lg := logger(len(l.loggers))
	l.loggers[source] = lg
	l.sources[lg] = source
	l.configs[lg] = mkConfig(opt.Enable.isOn(source, true), opt.Debug.isOn(source, false))
	l.realign()

	return lg
}

func (l *logging) setLevel(level Level) {
	l.level = level
}

func (l *logging) setBackend(name string) error {
	if l.active != nil && l.active.Name() == name {
		return nil
	}
	fn, ok := l.backend[name]
	if !ok {
		return loggerError("can't activate unknown backend %q", name)
	}
	if l.active != nil {
		l.active.Stop()
	}
	l.active = fn()
	l.realign()
	return nil
}

// update reconfigures loggers from the given source maps. A nil map leaves
// the corresponding setting untouched.
func (l *logging) update(enable, debug srcmap) {
	for lg, source := range l.sources {
		cfg := l.configs[lg]
		if enable != nil {
			cfg.setLogging(enable.isOn(source, true))
		}
		if debug != nil {
			cfg.setDebugging(debug.isOn(source, false))
		}
		l.configs[lg] = cfg
	}
	l.realign()
}

// realign updates the source alignment of the active backend.
func (l *logging) realign() {
	align := 0
	for lg, source := range l.sources {
		cfg := l.configs[lg]
		if (cfg.isLogging() || cfg.isDebugging()) && len(source) > align {
			align = len(source)
		}
	}
	if l.active != nil {
		l.active.SetSourceAlignment(align)
	}
}
