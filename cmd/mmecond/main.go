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
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/intel/mmecon/pkg/config"
	"github.com/intel/mmecon/pkg/econ"
	logger "github.com/intel/mmecon/pkg/log"
	"github.com/intel/mmecon/pkg/version"
)

const (
	binaryName = "mmecond"

	optConfigFile  = "config"
	optHTTPAddress = "http-address"
	optProcRoot    = "proc-root"
	optSysRoot     = "sys-root"

	defaultHTTPAddress = "localhost:8891"
)

var log = logger.Default()

// options are our command line options.
type options struct {
	configFile  string
	httpAddress string
	procRoot    string
	sysRoot     string
}

func newRootCmd() *cobra.Command {
	opt := &options{}

	cmd := &cobra.Command{
		Use:   binaryName,
		Short: "Memory management cost-benefit estimation daemon.",
		Long: binaryName + " keeps per-process profiles of memory ranges that benefit from\n" +
			"huge pages or eager paging, estimates the cost and benefit of memory\n" +
			"management actions and decides whether to take them.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd.Context(), opt)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opt.configFile, optConfigFile, "", "YAML file to read configuration from.")
	flags.StringVar(&opt.procRoot, optProcRoot, econ.DefaultProcRoot, "procfs mount point.")
	flags.StringVar(&opt.sysRoot, optSysRoot, econ.DefaultSysRoot, "sysfs mount point.")
	flags.StringVar(&opt.httpAddress, optHTTPAddress, defaultHTTPAddress,
		"address to serve the control plane and metrics on, empty to disable.")
	flags.SetNormalizeFunc(wordSepNormalizeFunc)
	flags.AddGoFlagSet(flag.CommandLine)

	cmd.AddCommand(
		newPromptCmd(opt),
		newFiltersCmd(opt),
		newConfigHelpCmd(),
		newVersionCmd(),
	)

	return cmd
}

// wordSepNormalizeFunc lets "log_dir" and friends be spelled "log-dir".
func wordSepNormalizeFunc(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			version.Fprint(cmd.OutOrStdout(), binaryName)
		},
	}
}

func newConfigHelpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config-help [module...]",
		Short: "Print help on configuration modules.",
		Run: func(cmd *cobra.Command, args []string) {
			registerEconConfig(nil)
			fmt.Fprint(cmd.OutOrStdout(), config.Help(args...))
		},
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error("%v", err)
		logger.Flush()
		os.Exit(1)
	}
	logger.Flush()
}
