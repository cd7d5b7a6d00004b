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
	"bufio"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/intel/mmecon/pkg/econ"
)

func newPromptCmd(opt *options) *cobra.Command {
	var (
		echo bool
		ps1  string
	)

	cmd := &cobra.Command{
		Use:   "prompt [command...]",
		Short: "Run an interactive prompt on an in-process engine.",
		Long: "Run an interactive prompt on an in-process engine, reading commands\n" +
			"from the standard input. With arguments, run them as a single command.",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setupEcon(opt)
			if err != nil {
				return err
			}

			p := econ.NewPrompt(e, ps1, bufio.NewReader(os.Stdin), bufio.NewWriter(os.Stdout))
			if len(args) > 0 {
				p.RunCmdString(strings.Join(args, " "))
				return nil
			}
			p.SetEcho(echo)
			p.Interact()
			return nil
		},
	}

	cmd.Flags().BoolVar(&echo, "echo", false, "echo commands read from the input.")
	cmd.Flags().StringVar(&ps1, "ps1", "mmecon> ", "prompt string.")

	return cmd
}
