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
	"os"
)

// Level describes the severity of log messages.
type Level int

const (
	// LevelDebug is the severity for debug messages.
	LevelDebug Level = iota
	// LevelInfo is the severity for informational messages.
	LevelInfo
	// LevelWarn is the severity for warnings.
	LevelWarn
	// LevelError is the severity for errors.
	LevelError
	// LevelPanic is the severity for panic messages.
	LevelPanic
	// LevelFatal is the severity for fatal errors.
	LevelFatal
)

// Logger is the interface for producing log messages for/from a particular source.
type Logger interface {
	// Debug formats and emits a debug message.
	Debug(format string, args ...interface{})
	// Info formats and emits an informational message.
	Info(format string, args ...interface{})
	// Warn formats and emits a warning message.
	Warn(format string, args ...interface{})
	// Error formats and emits an error message.
	Error(format string, args ...interface{})
	// Panic formats and emits an error message then panics with the same.
	Panic(format string, args ...interface{})
	// Fatal formats and emits an error message and os.Exit()'s with status 1.
	Fatal(format string, args ...interface{})

	// DebugBlock formats and emits a multiline debug message.
	DebugBlock(prefix string, format string, args ...interface{})
	// InfoBlock formats and emits a multiline information message.
	InfoBlock(prefix string, format string, args ...interface{})
	// WarnBlock formats and emits a multiline warning message.
	WarnBlock(prefix string, format string, args ...interface{})
	// ErrorBlock formats and emits a multiline error message.
	ErrorBlock(prefix string, format string, args ...interface{})

	// EnableDebug enables debug messages for this Logger, returning the old state.
	EnableDebug(bool) bool
	// DebugEnabled checks if debug messages are enabled for this Logger.
	DebugEnabled() bool

	// Source returns the source name of this Logger.
	Source() string
}

// logger implements Logger as an index into the runtime logging state.
type logger uint

// NewLogger creates a Logger for the source, or returns the existing one.
func NewLogger(source string) Logger {
	return log.get(source)
}

// Get is an alias for NewLogger.
func Get(source string) Logger {
	return log.get(source)
}

func (l logger) EnableDebug(state bool) bool {
	log.Lock()
	defer log.Unlock()

	cfg := log.configs[l]
	old := cfg.setDebugging(state)
	log.configs[l] = cfg
	log.realign()

	return old
}

func (l logger) DebugEnabled() bool {
	log.RLock()
	defer log.RUnlock()

	cfg := log.configs[l]
	return cfg.isDebugging() || log.forced
}

func (l logger) Source() string {
	log.RLock()
	defer log.RUnlock()

	return log.sources[l]
}

func (l logger) Debug(format string, args ...interface{}) {
	l.emit(LevelDebug, format, args...)
}

func (l logger) Info(format string, args ...interface{}) {
	l.emit(LevelInfo, format, args...)
}

func (l logger) Warn(format string, args ...interface{}) {
	l.emit(LevelWarn, format, args...)
}

func (l logger) Error(format string, args ...interface{}) {
	l.emit(LevelError, format, args...)
}

func (l logger) Fatal(format string, args ...interface{}) {
	source, active, _ := l.check(LevelFatal)
	active.Log(LevelFatal, source, format, args...)
	active.Sync()
	os.Exit(1)
}

func (l logger) Panic(format string, args ...interface{}) {
	source, active, _ := l.check(LevelPanic)
	active.Log(LevelPanic, source, format, args...)
	active.Sync()
	panic(fmt.Sprintf("["+source+"] "+format, args...))
}

func (l logger) DebugBlock(prefix string, format string, args ...interface{}) {
	l.emitBlock(LevelDebug, prefix, format, args...)
}

func (l logger) InfoBlock(prefix string, format string, args ...interface{}) {
	l.emitBlock(LevelInfo, prefix, format, args...)
}

func (l logger) WarnBlock(prefix string, format string, args ...interface{}) {
	l.emitBlock(LevelWarn, prefix, format, args...)
}

func (l logger) ErrorBlock(prefix string, format string, args ...interface{}) {
	l.emitBlock(LevelError, prefix, format, args...)
}

func (l logger) emit(level Level, format string, args ...interface{}) {
	if source, active, ok := l.check(level); ok {
		active.Log(level, source, format, args...)
	}
}

func (l logger) emitBlock(level Level, prefix, format string, args ...interface{}) {
	if source, active, ok := l.check(level); ok {
		active.Block(level, source, prefix, format, args...)
	}
}

// check returns the source, the active backend, and whether level passes through.
func (l logger) check(level Level) (string, Backend, bool) {
	log.RLock()
	defer log.RUnlock()

	cfg := log.configs[l]
	source := log.sources[l]

	switch {
	case level == LevelDebug:
		return source, log.active, cfg.isDebugging() || log.forced
	case level < log.level:
		return source, log.active, false
	case level == LevelInfo:
		return source, log.active, cfg.isLogging()
	default:
		return source, log.active, true
	}
}

// srcConfig is the runtime state of a single logger.
type srcConfig struct {
	enable uint8
}

const (
	loggingBit = 1 << iota
	debuggingBit
)

func mkConfig(logging, debugging bool) srcConfig {
	cfg := srcConfig{}
	cfg.setLogging(logging)
	cfg.setDebugging(debugging)
	return cfg
}

func (cfg *srcConfig) setLogging(enable bool) bool {
	old := cfg.isLogging()
	if enable {
		cfg.enable |= loggingBit
	} else {
		cfg.enable &^= loggingBit
	}
	return old
}

func (cfg *srcConfig) isLogging() bool {
	return cfg.enable&loggingBit != 0
}

func (cfg *srcConfig) setDebugging(enable bool) bool {
	old := cfg.isDebugging()
	if enable {
		cfg.enable |= debuggingBit
	} else {
		cfg.enable &^= debuggingBit
	}
	return old
}

func (cfg *srcConfig) isDebugging() bool {
	return cfg.enable&debuggingBit != 0
}
