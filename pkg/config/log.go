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
	"fmt"
)

// Logger is our set of logging functions. pkg/log implements its own
// configuration using this package, so it sets our logger at init time.
type Logger struct {
	DebugEnabled func() bool
	Debug        func(string, ...interface{})
	Info         func(string, ...interface{})
	Warning      func(string, ...interface{})
	Error        func(string, ...interface{})
}

var log = Logger{
	DebugEnabled: func() bool { return false },
	Debug:        func(string, ...interface{}) {},
	Info:         fmtLogger("I"),
	Warning:      fmtLogger("W"),
	Error:        fmtLogger("E"),
}

// SetLogger sets the non-nil functions of logger as our logging functions.
func SetLogger(logger Logger) {
	if logger.DebugEnabled != nil {
		log.DebugEnabled = logger.DebugEnabled
	}
	if logger.Debug != nil {
		log.Debug = logger.Debug
	}
	if logger.Info != nil {
		log.Info = logger.Info
	}
	if logger.Warning != nil {
		log.Warning = logger.Warning
	}
	if logger.Error != nil {
		log.Error = logger.Error
	}
}

func fmtLogger(tag string) func(string, ...interface{}) {
	return func(format string, args ...interface{}) {
		fmt.Printf(tag+": [config] "+format+"\n", args...)
	}
}
