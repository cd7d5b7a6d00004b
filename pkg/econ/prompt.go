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

// This file implements interactive prompt and command execution.

package econ

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/intel/mmecon/pkg/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Cmd is a prompt command.
type Cmd struct {
	description string
	Run         func([]string) CommandStatus
}

// Prompt is an interactive shell for inspecting and driving an Econ.
type Prompt struct {
	r    *bufio.Reader
	w    *bufio.Writer
	f    *flag.FlagSet
	econ *Econ
	cmds map[string]Cmd
	ps1  string
	echo bool
	quit bool
}

// CommandStatus is the outcome of running a command.
type CommandStatus int

const (
	csOk CommandStatus = iota
	csUnknownCommand
	csPipeCreateError
	csPipeProcessStartError
	csError
)

// NewPrompt creates a prompt for e.
func NewPrompt(e *Econ, ps1 string, reader *bufio.Reader, writer *bufio.Writer) *Prompt {
	p := Prompt{
		r:    reader,
		w:    writer,
		ps1:  ps1,
		econ: e,
	}
	p.cmds = map[string]Cmd{
		"q":        {"quit interactive prompt.", p.cmdQuit},
		"mode":     {"show or set decision mode.", p.cmdMode},
		"debug":    {"show or set debug level.", p.cmdDebug},
		"tunables": {"show or set estimator tunables.", p.cmdTunables},
		"stats":    {"print statistics.", p.cmdStats},
		"metrics":  {"print metrics in text exposition format.", p.cmdMetrics},
		"filters":  {"show or add filters of a process.", p.cmdFilters},
		"ranges":   {"show profiled ranges of a process.", p.cmdRanges},
		"mmap":     {"add a mapping to a process.", p.cmdMmap},
		"fork":     {"copy the profile of a process to another one.", p.cmdFork},
		"exit":     {"drop the profile of a process.", p.cmdExit},
		"scan":     {"add the current mappings of a process.", p.cmdScan},
		"estimate": {"estimate cost and benefit of an action.", p.cmdEstimate},
		"promote":  {"register a huge page promotion.", p.cmdPromote},
		"help":     {"print help.", p.cmdHelp},
		"nop":      {"no operation.", p.cmdNop},
	}
	return &p
}

func (p *Prompt) output(format string, a ...interface{}) {
	if p.w == nil {
		return
	}
	p.w.WriteString(fmt.Sprintf(format, a...))
	p.w.Flush()
}

// RunCmdSlice runs a command given as a slice of words.
func (p *Prompt) RunCmdSlice(cmdSlice []string) CommandStatus {
	if len(cmdSlice) == 0 {
		return csOk
	}
	if cmdSlice[0] == "" {
		cmdSlice[0] = "nop"
	}
	p.f = flag.NewFlagSet(cmdSlice[0], flag.ContinueOnError)
	if p.w != nil {
		p.f.SetOutput(p.w)
	}
	cmd, ok := p.cmds[cmdSlice[0]]
	if !ok {
		p.output("unknown command %q\n", cmdSlice[0])
		return csUnknownCommand
	}
	status := cmd.Run(cmdSlice[1:])
	if p.w != nil {
		p.w.Flush()
	}
	return status
}

// RunCmdString runs a command line. Output of the command can be piped to
// a shell command with "|".
func (p *Prompt) RunCmdString(cmdString string) CommandStatus {
	var err error
	origOutputWriter := p.w
	pipeCmd := ""
	pipeIndex := strings.Index(cmdString, "|")
	if pipeIndex > -1 {
		pipeCmd = cmdString[pipeIndex+1:]
		cmdString = cmdString[:pipeIndex]
	}
	cmdSlice := strings.Fields(cmdString)
	if len(cmdSlice) == 0 {
		cmdSlice = []string{"nop"}
	}

	var pipeProcess *exec.Cmd
	var pipeInput io.WriteCloser
	if pipeCmd != "" {
		pipeProcess = exec.Command("sh", "-c", pipeCmd)
		pipeInput, err = pipeProcess.StdinPipe()
		if err != nil {
			p.output("failed to create pipe for command %q", pipeCmd)
			return csPipeCreateError
		}
		pipeProcess.Stdout = origOutputWriter
		pipeProcess.Stderr = origOutputWriter
		if err := pipeProcess.Start(); err != nil {
			p.output("failed to start: sh -c %q: %s\n", pipeCmd, err)
			pipeInput.Close()
			return csPipeProcessStartError
		}
		p.w = bufio.NewWriter(pipeInput)
	}
	runRv := p.RunCmdSlice(cmdSlice)
	if pipeCmd != "" {
		p.w.Flush()
		pipeInput.Close()
		pipeProcess.Wait()
		p.w = origOutputWriter
	}
	return runRv
}

// Interact reads and runs commands until quit or end of input.
func (p *Prompt) Interact() {
	for !p.quit {
		p.output(p.ps1)
		cmdString, err := p.r.ReadString(byte('\n'))
		if err != nil {
			p.output("quit: %s\n", err)
			break
		}
		if p.echo {
			p.output("%s", cmdString)
		}
		p.RunCmdString(cmdString)
	}
	p.output("quit.\n")
}

// SetEcho sets whether commands are echoed.
func (p *Prompt) SetEcho(newEcho bool) {
	p.echo = newEcho
}

func sortedStringKeys(m map[string]Cmd) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (p *Prompt) cmdNop(args []string) CommandStatus {
	return csOk
}

func (p *Prompt) cmdHelp(args []string) CommandStatus {
	p.output("Available commands:\n")
	for _, name := range sortedStringKeys(p.cmds) {
		p.output("        %-12s %s\n", name, p.cmds[name].description)
	}
	p.output("Syntax:\n")
	p.output("        <command> -h show help on command options.\n")
	p.output("        [command] | <shell-command>\n")
	p.output("                     pipe command output to shell-command.\n")
	return csOk
}

func (p *Prompt) cmdQuit(args []string) CommandStatus {
	if err := p.f.Parse(args); err != nil {
		return csOk
	}
	p.quit = true
	return csOk
}

func (p *Prompt) cmdMode(args []string) CommandStatus {
	if err := p.f.Parse(args); err != nil {
		return csOk
	}
	ctl := p.econ.Control()
	if p.f.NArg() > 0 {
		value := p.f.Arg(0)
		if on, err := utils.ParseEnabled(value); err == nil {
			value = map[bool]string{false: "0", true: "1"}[on]
		}
		if err := ctl.SetMode(value); err != nil {
			p.output("%s\n", err)
			return csError
		}
	}
	p.output("%s\n", ctl.Mode())
	return csOk
}

func (p *Prompt) cmdDebug(args []string) CommandStatus {
	if err := p.f.Parse(args); err != nil {
		return csOk
	}
	ctl := p.econ.Control()
	if p.f.NArg() > 0 {
		if err := ctl.SetDebugLevel(p.f.Arg(0)); err != nil {
			p.output("%s\n", err)
			return csError
		}
	}
	p.output("%s\n", ctl.DebugLevel())
	return csOk
}

func (p *Prompt) cmdTunables(args []string) CommandStatus {
	contention := p.f.String("contention-ms", "", "set lock contention window in milliseconds")
	freq := p.f.String("freq-mhz", "", "set assumed CPU frequency in MHz")
	if err := p.f.Parse(args); err != nil {
		return csOk
	}
	ctl := p.econ.Control()
	if *contention != "" {
		if err := ctl.SetContentionMs(*contention); err != nil {
			p.output("%s\n", err)
			return csError
		}
	}
	if *freq != "" {
		if err := ctl.SetFreqMHz(*freq); err != nil {
			p.output("%s\n", err)
			return csError
		}
	}
	p.output("contention-ms=%s\nfreq-mhz=%s\n", ctl.ContentionMs(), ctl.FreqMHz())
	return csOk
}

func (p *Prompt) cmdStats(args []string) CommandStatus {
	if err := p.f.Parse(args); err != nil {
		return csOk
	}
	p.output("%s", p.econ.Control().Stats())
	return csOk
}

func (p *Prompt) cmdMetrics(args []string) CommandStatus {
	if err := p.f.Parse(args); err != nil || p.w == nil {
		return csOk
	}
	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(p.econ.Stats()); err != nil {
		p.output("failed to register metrics: %v\n", err)
		return csError
	}
	families, err := reg.Gather()
	if err != nil {
		p.output("failed to gather metrics: %v\n", err)
		return csError
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(p.w, mf); err != nil {
			p.output("failed to format metrics: %v\n", err)
			return csError
		}
	}
	return csOk
}

func (p *Prompt) cmdFilters(args []string) CommandStatus {
	pid := p.f.Int("pid", -1, "process to show or add filters for")
	add := p.f.String("add", "", "add filter")
	file := p.f.String("file", "", "add filters from file")
	if err := p.f.Parse(args); err != nil {
		return csOk
	}
	if *pid <= 0 {
		p.output("missing -pid\n")
		return csError
	}
	ctl := p.econ.Control()
	var data []byte
	switch {
	case *add != "":
		data = []byte(*add + "\n")
	case *file != "":
		buf, err := os.ReadFile(*file)
		if err != nil {
			p.output("%s\n", err)
			return csError
		}
		data = buf
	}
	if data != nil {
		n, err := ctl.WriteFilters(*pid, data)
		if err != nil {
			p.output("%s\n", err)
			return csError
		}
		p.output("consumed %d of %d bytes\n", n, len(data))
		return csOk
	}
	p.output("%s", ctl.ReadFilters(*pid))
	return csOk
}

func (p *Prompt) cmdRanges(args []string) CommandStatus {
	pid := p.f.Int("pid", -1, "process to show ranges of")
	if err := p.f.Parse(args); err != nil {
		return csOk
	}
	dump, ok := p.econ.Control().ReadProfile(*pid)
	if !ok {
		p.output("no profile for pid %d\n", *pid)
		return csError
	}
	p.output("%s", dump)
	return csOk
}

func (p *Prompt) cmdMmap(args []string) CommandStatus {
	pid := p.f.Int("pid", -1, "process the mapping belongs to")
	section := p.f.String("section", "mmap", "section of the mapping: code, data, heap, mmap")
	addr := p.f.Uint64("addr", 0, "address of the mapping")
	secoff := p.f.Uint64("secoff", 0, "offset of the mapping from its section base")
	length := p.f.Uint64("len", 0, "length of the mapping")
	prot := p.f.Uint64("prot", 0, "protection bits")
	flags := p.f.Uint64("flags", 0, "mapping flags")
	fd := p.f.Uint64("fd", NoFd, "file descriptor")
	off := p.f.Uint64("off", 0, "file offset")
	if err := p.f.Parse(args); err != nil {
		return csOk
	}
	s, err := ParseSection(*section)
	if err != nil {
		p.output("%s\n", err)
		return csError
	}
	m := Mapping{
		Pid:           *pid,
		Section:       s,
		Addr:          *addr,
		SectionOffset: *secoff,
		Hint:          *addr,
		Len:           *length,
		Prot:          *prot,
		Flags:         *flags,
		Fd:            *fd,
		Off:           *off,
	}
	if err := p.econ.OnMappingCreated(m); err != nil {
		p.output("%s\n", err)
		return csError
	}
	return csOk
}

func (p *Prompt) cmdFork(args []string) CommandStatus {
	parent := p.f.Int("parent", -1, "process to copy the profile of")
	child := p.f.Int("child", -1, "process to copy the profile to")
	if err := p.f.Parse(args); err != nil {
		return csOk
	}
	if err := p.econ.OnFork(*parent, *child); err != nil {
		p.output("%s\n", err)
		return csError
	}
	return csOk
}

func (p *Prompt) cmdExit(args []string) CommandStatus {
	pid := p.f.Int("pid", -1, "process to drop the profile of")
	if err := p.f.Parse(args); err != nil {
		return csOk
	}
	p.econ.OnExit(*pid)
	return csOk
}

func (p *Prompt) cmdScan(args []string) CommandStatus {
	pid := p.f.Int("pid", -1, "process to scan the mappings of")
	if err := p.f.Parse(args); err != nil {
		return csOk
	}
	if err := p.econ.ReplayMappings(*pid); err != nil {
		p.output("%s\n", err)
		return csError
	}
	return csOk
}

func (p *Prompt) cmdEstimate(args []string) CommandStatus {
	action := p.f.String("action", "promote-huge", "action to estimate")
	pid := p.f.Int("pid", -1, "process the action is taken for")
	addr := p.f.Uint64("addr", 0, "faulting address")
	length := p.f.Uint64("len", 0, "eager paging window length")
	prezero := p.f.Uint64("n", 0, "number of pages to prezero")
	decide := p.f.Bool("decide", false, "decide whether to take the action")
	if err := p.f.Parse(args); err != nil {
		return csOk
	}
	kind, err := ParseActionKind(*action)
	if err != nil {
		p.output("%s\n", err)
		return csError
	}
	cd := p.econ.Estimate(Action{
		Kind:     kind,
		Pid:      *pid,
		Address:  *addr,
		Len:      *length,
		PrezeroN: *prezero,
	})
	p.output("cost=%d benefit=%d extra=%d\n", cd.Cost, cd.Benefit, cd.Extra)
	for _, r := range cd.Ranges {
		p.output("    %s\n", r)
	}
	if *decide {
		p.output("decision=%v\n", p.econ.Decide(cd))
	}
	return csOk
}

func (p *Prompt) cmdPromote(args []string) CommandStatus {
	addr := p.f.Uint64("addr", 0, "address of the promoted huge page")
	if err := p.f.Parse(args); err != nil {
		return csOk
	}
	p.econ.RegisterPromotion(*addr)
	return csOk
}
