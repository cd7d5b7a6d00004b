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
	"context"
	"os"
	"os/signal"
)

// ToggleDebugOnSignal flips forced full debugging each time one of the
// given signals is received, until ctx is done.
func ToggleDebugOnSignal(ctx context.Context, sigs ...os.Signal) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, sigs...)

	go func() {
		defer signal.Stop(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ch:
				if ToggleForcedDebug() {
					deflog.Warn("forced full debugging is now on")
				} else {
					deflog.Warn("forced full debugging is now off")
				}
			}
		}
	}()
}

// ToggleForcedDebug flips forced full debugging and returns its new state.
func ToggleForcedDebug() bool {
	log.Lock()
	defer log.Unlock()
	log.forced = !log.forced
	return log.forced
}

// ForcedDebug returns whether full debugging is forced on.
func ForcedDebug() bool {
	log.RLock()
	defer log.RUnlock()
	return log.forced
}
