// Copyright 2024 The m1n1 Authors.
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
	"context"
	"flag"
	"fmt"
	"strconv"

	"github.com/google/subcommands"

	"github.com/theoparis/m1n1/pkg/psci"
)

// smcCmd implements subcommands.Command for "smc": issue a single SMC
// call against a simulated chip on behalf of the CPU named by -cpu
// (CPU0 by default) and print the result that would land in the guest's
// X0.
type smcCmd struct {
	chip string
	cpu  int
}

func (*smcCmd) Name() string     { return "smc" }
func (*smcCmd) Synopsis() string { return "issue one PSCI SMC call and print the X0 result" }
func (*smcCmd) Usage() string {
	return "smc -chip=<name> [-cpu=N] <function_id> [x1] [x2] [x3]\n"
}

func (c *smcCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.chip, "chip", "t8103", "chip to model")
	f.IntVar(&c.cpu, "cpu", 0, "logical CPU index issuing the call")
}

func (c *smcCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() < 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	args, err := parseSMCArgs(f.Args())
	if err != nil {
		fatalf("%v", err)
	}

	chip, err := resolveChip(c.chip)
	if err != nil {
		fatalf("%v", err)
	}
	ctx, _, err := newSimContext(chip)
	if err != nil {
		fatalf("%v", err)
	}

	dispatcher := psci.NewDispatcher(ctx)
	result := dispatcher.Dispatch(c.cpu, args)
	fmt.Printf("x0 = 0x%x (%d)\n", result, int64(result))
	return subcommands.ExitSuccess
}

func parseSMCArgs(raw []string) (psci.Args, error) {
	var a psci.Args
	vals := make([]uint64, len(raw))
	for i, s := range raw {
		v, err := strconv.ParseUint(s, 0, 64)
		if err != nil {
			return psci.Args{}, fmt.Errorf("argument %d (%q): %w", i, s, err)
		}
		vals[i] = v
	}
	a.FunctionID = uint32(vals[0])
	if len(vals) > 1 {
		a.X1 = vals[1]
	}
	if len(vals) > 2 {
		a.X2 = vals[2]
	}
	if len(vals) > 3 {
		a.X3 = vals[3]
	}
	return a, nil
}
