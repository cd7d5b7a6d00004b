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
	"sync/atomic"
)

// accountant keeps track of memory used for internal data.
type accountant struct {
	used  uint64
	limit uint64 // 0 is unlimited
}

func newAccountant(limit uint64) *accountant {
	return &accountant{limit: limit}
}

// charge accounts size more bytes, failing with ErrNoMemory over the limit.
func (a *accountant) charge(size uint64) error {
	for {
		used := atomic.LoadUint64(&a.used)
		limit := atomic.LoadUint64(&a.limit)
		if limit != 0 && used+size > limit {
			return ErrNoMemory
		}
		if atomic.CompareAndSwapUint64(&a.used, used, used+size) {
			return nil
		}
	}
}

// release gives back size bytes.
func (a *accountant) release(size uint64) {
	if size == 0 {
		return
	}
	atomic.AddUint64(&a.used, ^(size - 1))
}

// Used returns the number of bytes currently in use.
func (a *accountant) Used() uint64 {
	return atomic.LoadUint64(&a.used)
}

// Limit returns the current limit, 0 for unlimited.
func (a *accountant) Limit() uint64 {
	return atomic.LoadUint64(&a.limit)
}

// SetLimit sets the limit. It does not affect memory already in use.
func (a *accountant) SetLimit(limit uint64) {
	atomic.StoreUint64(&a.limit, limit)
}
