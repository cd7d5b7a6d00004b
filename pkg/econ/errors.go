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

package econ

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNoMemory is returned when the memory limit of internal data is hit.
	ErrNoMemory = errors.New("econ: memory limit exceeded")
	// ErrInvalidFilter is returned when no valid filter could be parsed.
	ErrInvalidFilter = errors.New("econ: invalid filter")
	// ErrInvalidMode is returned for an invalid mode.
	ErrInvalidMode = errors.New("econ: invalid mode")
	// ErrInvalidRange is returned for empty or inverted ranges.
	ErrInvalidRange = errors.New("econ: invalid range")
	// ErrNoRange is returned when a range does not exist.
	ErrNoRange = errors.New("econ: no such range")
	// ErrProfileExists is returned when a profile already exists for a pid.
	ErrProfileExists = errors.New("econ: profile already exists")
	// ErrNoProfile is returned when there is no profile for a pid.
	ErrNoProfile = errors.New("econ: no such profile")
)

// econError returns a package-specific formatted error.
func econError(format string, args ...interface{}) error {
	return fmt.Errorf("econ: "+format, args...)
}
