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
	"encoding/json"
	"flag"
	"fmt"
	"sort"
	"strings"

	"github.com/intel/mmecon/pkg/config"
	"github.com/intel/mmecon/pkg/utils"
)

const (
	// DefaultLevel is the default logging severity level.
	DefaultLevel = LevelInfo
	// command line option prefix, also our configuration module name
	optPrefix = "logger"
	optEnable = optPrefix + "-sources"
	optDebug  = optPrefix + "-debug"
	optLevel  = optPrefix + "-level"
	optLogger = optPrefix
)

// options are the logger settings from the command line or the configuration.
type options struct {
	// Level is the lowest severity passed through.
	Level Level
	// Enable enables or disables sources.
	Enable srcmap
	// Debug enables or disables debugging for sources.
	Debug srcmap
	// Logger is the name of the backend to use.
	Logger string
}

// srcmap maps sources to on/off states, with '*' matching any source.
type srcmap map[string]bool

// command line settings, these serve as configuration defaults
var defaults = &options{
	Level:  DefaultLevel,
	Enable: make(srcmap),
	Debug:  make(srcmap),
	Logger: FmtBackendName,
}

// active settings
var opt = &options{
	Level:  DefaultLevel,
	Enable: make(srcmap),
	Debug:  make(srcmap),
	Logger: FmtBackendName,
}

var levelNames = map[Level]string{
	LevelDebug: "debug",
	LevelInfo:  "info",
	LevelWarn:  "warning",
	LevelError: "error",
	LevelPanic: "panic",
	LevelFatal: "fatal",
}

// ParseLevel parses the name of a severity level.
func ParseLevel(name string) (Level, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "warn" {
		name = "warning"
	}
	for level, n := range levelNames {
		if n == name {
			return level, nil
		}
	}
	return DefaultLevel, loggerError("invalid logging level %q", name)
}

// String returns the name of the level.
func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("level#%d", int(l))
}

// MarshalJSON is the JSON marshaller for Level.
func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON is the JSON unmarshaller for Level.
func (l *Level) UnmarshalJSON(raw []byte) error {
	var name string
	if err := json.Unmarshal(raw, &name); err != nil {
		return loggerError("invalid logging level %s: %v", string(raw), err)
	}
	level, err := ParseLevel(name)
	if err != nil {
		return err
	}
	*l = level
	return nil
}

// levelFlag sets the default and active levels from the command line.
type levelFlag struct{}

func (levelFlag) Set(value string) error {
	level, err := ParseLevel(value)
	if err != nil {
		return err
	}
	defaults.Level = level
	opt.Level = level
	SetLevel(level)
	return nil
}

func (levelFlag) String() string {
	return defaults.Level.String()
}

// backendFlag selects the default and active backend from the command line.
type backendFlag struct{}

func (backendFlag) Set(value string) error {
	if err := SetBackend(value); err != nil {
		return err
	}
	defaults.Logger = value
	opt.Logger = value
	return nil
}

func (backendFlag) String() string {
	return defaults.Logger
}

// srcmapFlag updates a default source map and the corresponding active one.
type srcmapFlag struct {
	dflt  *srcmap
	debug bool
}

func (f srcmapFlag) Set(value string) error {
	m, err := parseSrcmap(value)
	if err != nil {
		return err
	}

	log.Lock()
	defer log.Unlock()

	f.dflt.copy(m)
	if f.debug {
		opt.Debug.copy(m)
		log.update(nil, opt.Debug)
	} else {
		opt.Enable.copy(m)
		log.update(opt.Enable, nil)
	}
	return nil
}

func (f srcmapFlag) String() string {
	if f.dflt == nil {
		return ""
	}
	return f.dflt.String()
}

// parseSrcmap parses a comma-separated list of [state:]source entries.
// A state applies to all subsequent sources until the next state.
func parseSrcmap(value string) (srcmap, error) {
	m := make(srcmap)
	prev := "on"
	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		state, src := prev, entry
		if split := strings.Split(entry, ":"); len(split) == 2 {
			state, src = split[0], split[1]
		} else if len(split) > 2 {
			return nil, loggerError("invalid source map entry %q", entry)
		}
		enabled, err := utils.ParseEnabled(state)
		if err != nil {
			return nil, loggerError("invalid state %q in source map: %v", state, err)
		}
		prev = state
		if src == "all" {
			src = "*"
		}
		if src != "" {
			m[src] = enabled
		}
	}
	return m, nil
}

// isOn returns the state of source, falling back to '*' and then to dflt.
func (m srcmap) isOn(source string, dflt bool) bool {
	if state, ok := m[source]; ok {
		return state
	}
	if state, ok := m["*"]; ok {
		return state
	}
	return dflt
}

func (m srcmap) copy(o srcmap) {
	for src, state := range o {
		m[src] = state
	}
}

// String returns the source map in a form parseSrcmap accepts.
func (m srcmap) String() string {
	on, off := []string{}, []string{}
	for src, state := range m {
		if state {
			on = append(on, src)
		} else {
			off = append(off, src)
		}
	}
	sort.Strings(on)
	sort.Strings(off)

	switch {
	case len(on) == 0 && len(off) == 0:
		return ""
	case len(off) == 0:
		return "on:" + strings.Join(on, ",")
	case len(on) == 0:
		return "off:" + strings.Join(off, ",")
	}
	return "on:" + strings.Join(on, ",") + ",off:" + strings.Join(off, ",")
}

// MarshalJSON is the JSON marshaller for srcmap.
func (m srcmap) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON is the JSON unmarshaller for srcmap.
func (m *srcmap) UnmarshalJSON(raw []byte) error {
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		parsed, err := parseSrcmap(str)
		if err != nil {
			return err
		}
		*m = parsed
		return nil
	}

	boolmap := map[string]bool{}
	if err := json.Unmarshal(raw, &boolmap); err != nil {
		return loggerError("failed to unmarshal source map %s: %v", string(raw), err)
	}
	*m = make(srcmap)
	for src, state := range boolmap {
		if src == "all" {
			src = "*"
		}
		(*m)[src] = state
	}
	return nil
}

// configNotify activates updated logger configuration.
func (o *options) configNotify(event config.Event, source config.Source) error {
	log.Lock()
	defer log.Unlock()

	if o.Logger == "" {
		o.Logger = defaults.Logger
	}
	if err := log.setBackend(o.Logger); err != nil {
		return err
	}
	if len(o.Enable) == 0 {
		o.Enable.copy(defaults.Enable)
	}
	if len(o.Debug) == 0 {
		o.Debug.copy(defaults.Debug)
	}
	log.setLevel(o.Level)
	log.update(o.Enable, o.Debug)

	return nil
}

func defaultOptions() interface{} {
	o := &options{
		Level:  defaults.Level,
		Enable: make(srcmap),
		Debug:  make(srcmap),
		Logger: defaults.Logger,
	}
	o.Enable.copy(defaults.Enable)
	o.Debug.copy(defaults.Debug)
	return o
}

func loggerError(format string, args ...interface{}) error {
	return fmt.Errorf("logger: "+format, args...)
}

func init() {
	cfglog := log.get("config")
	config.SetLogger(config.Logger{
		DebugEnabled: cfglog.DebugEnabled,
		Debug:        cfglog.Debug,
		Info:         cfglog.Info,
		Warning:      cfglog.Warn,
		Error:        cfglog.Error,
	})

	flag.Var(backendFlag{}, optLogger,
		"logger backend to use (fmt, klog).")
	flag.Var(levelFlag{}, optLevel,
		"lowest severity level to pass through (debug, info, warning, error).")
	flag.Var(srcmapFlag{dflt: &defaults.Enable}, optEnable,
		"comma-separated list of sources to enable or disable.\n"+
			"Use '*' or 'all' for every source. Prefix with 'off:' to disable.")
	flag.Var(srcmapFlag{dflt: &defaults.Debug, debug: true}, optDebug,
		"comma-separated list of sources to enable debug messages for.\n"+
			"Use '*' or 'all' for every source. Prefix with 'off:' to disable.")

	config.Register(optPrefix, configHelp, opt, defaultOptions,
		config.WithNotify(opt.configNotify))
}
