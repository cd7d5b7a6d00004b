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

package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/intel/mmecon/pkg/econ"
)

const clientTimeout = 10 * time.Second

func newFiltersCmd(opt *options) *cobra.Command {
	var pid int

	cmd := &cobra.Command{
		Use:   "filters [file|-]",
		Short: "Show or load the filters of a process through a running daemon.",
		Long: "Show the filters of a process, or load filters from a file or the\n" +
			"standard input, through the HTTP control plane of a running daemon.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if pid <= 0 {
				return errors.Errorf("missing or invalid --pid %d", pid)
			}

			url := filtersURL(opt.httpAddress, pid)
			if len(args) == 0 {
				return doRequest(http.MethodGet, url, nil, cmd.OutOrStdout())
			}

			var (
				data []byte
				err  error
			)
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return errors.Wrapf(err, "failed to read filters")
			}
			return doRequest(http.MethodPut, url, data, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&pid, "pid", 0, "process to show or load filters for.")

	return cmd
}

func filtersURL(address string, pid int) string {
	if !strings.Contains(address, "://") {
		address = "http://" + address
	}
	return fmt.Sprintf("%s%s%d/mmap_filters", strings.TrimSuffix(address, "/"), econ.ProcPrefix, pid)
}

func doRequest(method, url string, body []byte, out io.Writer) error {
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrapf(err, "failed to create request")
	}

	client := &http.Client{Timeout: clientTimeout}
	rsp, err := client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s failed", method, url)
	}
	defer rsp.Body.Close()

	reply, err := io.ReadAll(rsp.Body)
	if err != nil {
		return errors.Wrapf(err, "failed to read reply")
	}
	if rsp.StatusCode != http.StatusOK {
		return errors.Errorf("%s %s: %s: %s", method, url, rsp.Status, strings.TrimSpace(string(reply)))
	}

	_, err = out.Write(reply)
	return err
}
