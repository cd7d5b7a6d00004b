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
	"encoding/json"
	"time"
)

// Duration is a time.Duration which (un)marshals as a duration string.
type Duration time.Duration

// String returns the duration formatted as a string.
func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalJSON marshals the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON unmarshals a duration string, or an integer of nanoseconds.
func (d *Duration) UnmarshalJSON(raw []byte) error {
	var val interface{}
	if err := json.Unmarshal(raw, &val); err != nil {
		return configError("invalid duration %s: %v", string(raw), err)
	}
	switch v := val.(type) {
	case float64:
		*d = Duration(time.Duration(v))
	case string:
		dur, err := time.ParseDuration(v)
		if err != nil {
			return configError("invalid duration %q: %v", v, err)
		}
		*d = Duration(dur)
	default:
		return configError("invalid duration %s", string(raw))
	}
	return nil
}
