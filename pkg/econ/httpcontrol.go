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
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

const (
	// ControlPrefix is the URL prefix of the global control entries.
	ControlPrefix = "/mm_econ/"
	// ProcPrefix is the URL prefix of the per-process control entries.
	ProcPrefix = "/proc/"

	maxRequestSize = 1 << 20
)

// Mux is a HTTP request multiplexer the control plane can register with.
type Mux interface {
	HandleFunc(pattern string, fn func(http.ResponseWriter, *http.Request)) error
}

type tunable struct {
	get func() string
	set func(string) error
}

// RegisterHTTP registers the control plane HTTP handlers with mux.
func (c *Control) RegisterHTTP(mux Mux) error {
	tunables := map[string]tunable{
		"enabled":        {c.Mode, c.SetMode},
		"debugging_mode": {c.DebugLevel, c.SetDebugLevel},
		"contention_ms":  {c.ContentionMs, c.SetContentionMs},
		"freq_mhz":       {c.FreqMHz, c.SetFreqMHz},
	}
	for name, t := range tunables {
		if err := mux.HandleFunc(ControlPrefix+name, t.serveHTTP); err != nil {
			return err
		}
	}
	if err := mux.HandleFunc(ControlPrefix+"stats", c.serveStats); err != nil {
		return err
	}
	return mux.HandleFunc(ProcPrefix, c.serveProc)
}

func (t tunable) serveHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		fmt.Fprintln(w, t.get())
	case http.MethodPut, http.MethodPost:
		data, err := readRequest(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := t.set(string(data)); err != nil {
			http.Error(w, err.Error(), httpStatus(err))
			return
		}
		fmt.Fprintln(w, t.get())
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodPost)
	}
}

func (c *Control) serveStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	io.WriteString(w, c.Stats())
}

// serveProc serves /proc/<pid>/mmap_filters and /proc/<pid>/mem_ranges.
func (c *Control) serveProc(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, ProcPrefix), "/")
	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}
	pid, err := strconv.Atoi(parts[0])
	if err != nil || pid <= 0 {
		http.NotFound(w, r)
		return
	}

	switch parts[1] {
	case "mmap_filters":
		switch r.Method {
		case http.MethodGet:
			io.WriteString(w, c.ReadFilters(pid))
		case http.MethodPut, http.MethodPost:
			data, err := readRequest(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			n, err := c.WriteFilters(pid, data)
			if err != nil {
				http.Error(w, err.Error(), httpStatus(err))
				return
			}
			fmt.Fprintf(w, "%d\n", n)
		default:
			methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodPost)
		}

	case "mem_ranges":
		if r.Method != http.MethodGet {
			methodNotAllowed(w, http.MethodGet)
			return
		}
		dump, ok := c.ReadProfile(pid)
		if !ok {
			http.Error(w, fmt.Sprintf("no profile for pid %d", pid), http.StatusNotFound)
			return
		}
		io.WriteString(w, dump)

	default:
		http.NotFound(w, r)
	}
}

func readRequest(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxRequestSize))
	if err != nil {
		return nil, errors.Wrap(err, "failed to read request")
	}
	return data, nil
}

func httpStatus(err error) int {
	if errors.Is(err, ErrNoMemory) {
		return http.StatusInsufficientStorage
	}
	return http.StatusBadRequest
}

func methodNotAllowed(w http.ResponseWriter, methods ...string) {
	w.Header().Set("Allow", strings.Join(methods, ", "))
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
}
