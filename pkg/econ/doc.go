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

// Package econ implements a cost-benefit engine for memory management
// actions.
//
// Processes are profiled with filters. A filter matches newly created
// memory mappings of a process by section and by static mapping properties,
// optionally narrowing the match down to a subrange of the mapping by
// address or by section offset, and assigns a benefit to the matching
// ranges. Matched ranges are kept per process in two range trees, one for
// the huge page and one for the eager paging policy.
//
// The estimator turns an action (promote a huge page, run a background
// daemon, eagerly fault in pages, etc.) into a cost and a benefit, using
// the profiles, the state of the page allocator and the system load. The
// decider then tells whether the action should be taken.
package econ
