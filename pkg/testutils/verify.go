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

// Package testutils contains helpers for tests.
package testutils

import (
	"strings"
	"testing"

	"github.com/hashicorp/go-multierror"
)

// VerifyError checks that err is a multierror with expectedCount errors,
// or nil if expectedCount is 0, and that its message contains every
// expected substring. It fails the test otherwise.
func VerifyError(t *testing.T, err error, expectedCount int, expectedSubstrings []string) bool {
	t.Helper()

	if expectedCount == 0 {
		if err != nil {
			t.Errorf("expected no errors, got %v", err)
			return false
		}
		return true
	}

	if err == nil {
		t.Errorf("expected %d errors, got nil", expectedCount)
		return false
	}
	merr, ok := err.(*multierror.Error)
	if !ok {
		t.Errorf("expected %d errors, got non-multierror %#v", expectedCount, err)
		return false
	}
	if len(merr.Errors) != expectedCount {
		t.Errorf("expected %d errors, got %d: %v", expectedCount, len(merr.Errors), merr)
		return false
	}
	for _, substring := range expectedSubstrings {
		if !strings.Contains(err.Error(), substring) {
			t.Errorf("expected error with substring %q, got %q", substring, err)
			return false
		}
	}
	return true
}
