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

// Package version holds version metadata of mmecon binaries, set at link
// time with for instance
//
//	-ldflags "-X=github.com/intel/mmecon/pkg/version.Version=<version> \
//	          -X=github.com/intel/mmecon/pkg/version.Build=<build-id>"
package version

import (
	"fmt"
	"io"
)

var (
	// Version is our version as given by 'git describe'.
	Version = "unknown"
	// Build is the SHA1 of the repository we've been built from.
	Build = "unknown"
)

// String returns a one-line summary of the version metadata.
func String() string {
	return fmt.Sprintf("%s (build %s)", Version, Build)
}

// Fprint prints version information about the named binary.
func Fprint(w io.Writer, binary string) {
	fmt.Fprintf(w, "%s version information:\n", binary)
	fmt.Fprintf(w, "  - version: %s\n", Version)
	fmt.Fprintf(w, "  - build:   %s\n", Build)
}
