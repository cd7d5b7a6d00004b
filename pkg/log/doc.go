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

// Package log implements leveled, per-source logging for mmecon.
//
// Each package creates its own named Logger with NewLogger(). Messages
// of a source can be turned on or off, and debug messages can be enabled
// per source, from the command line or from the 'logger' module of the
// runtime configuration.
package log

var configHelp = `
Logging and debugging messages.

The logger module controls the lowest severity of messages to pass through,
which log sources are enabled, which log sources produce debug messages and
which backend emits the messages. For instance, to pass through only warnings
and errors and to turn on debugging for the econ and http sources use:

  logger:
    Level: warning
    Debug: econ,http

Sources can be prefixed with 'on:' or 'off:' to toggle them. To turn on
debugging for everything except the config source use:

  logger:
    Debug: on:*,off:config

The available backends are 'fmt' (default) and 'klog'.
`
