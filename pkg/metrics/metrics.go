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

// Package metrics collects prometheus collectors registered by other
// packages into a single gatherer.
package metrics

import (
	"fmt"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	logger "github.com/intel/mmecon/pkg/log"
)

// InitCollector is the type for functions that initialize collectors.
type InitCollector func() (prometheus.Collector, error)

var (
	log  = logger.NewLogger("metrics")
	lock sync.Mutex
	// registered collector initializers by name
	builtInCollectors = make(map[string]InitCollector)
	// collectors initialized so far by name
	initializedCollectors = make(map[string]prometheus.Collector)
)

// RegisterCollector registers the named prometheus.Collector for metrics collection.
func RegisterCollector(name string, init InitCollector) error {
	lock.Lock()
	defer lock.Unlock()

	if _, found := builtInCollectors[name]; found {
		return metricsError("collector %s already registered", name)
	}
	log.Info("registering collector %s...", name)
	builtInCollectors[name] = init

	return nil
}

// NewMetricGatherer creates a new prometheus.Gatherer with all registered
// collectors. Collectors which fail to initialize are skipped.
func NewMetricGatherer() (prometheus.Gatherer, error) {
	lock.Lock()
	defer lock.Unlock()

	reg := prometheus.NewPedanticRegistry()

	names := make([]string, 0, len(builtInCollectors))
	for name := range builtInCollectors {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		c, ok := initializedCollectors[name]
		if !ok {
			var err error
			if c, err = builtInCollectors[name](); err != nil {
				log.Error("failed to initialize collector %q: %v, skipping it", name, err)
				continue
			}
			initializedCollectors[name] = c
		}
		if err := reg.Register(c); err != nil {
			return nil, metricsError("failed to register collector %q: %v", name, err)
		}
	}

	return reg, nil
}

func metricsError(format string, args ...interface{}) error {
	return fmt.Errorf("metrics: "+format, args...)
}
