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
	"time"

	"github.com/google/subcommands"
	"golang.org/x/sync/errgroup"

	"github.com/theoparis/m1n1/pkg/psci"
)

// bootCmd implements subcommands.Command for "boot": simulate CPU0
// bringing up every secondary core with CPU_ON, then each secondary
// immediately suspending to standby and CPU0 waking it back up, to
// exercise the lifecycle operations end to end against the simulator.
type bootCmd struct {
	chip string
}

func (*bootCmd) Name() string     { return "boot" }
func (*bootCmd) Synopsis() string { return "simulate bringing up every core on a chip" }
func (*bootCmd) Usage() string    { return "boot -chip=<name>\n" }

func (c *bootCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.chip, "chip", "t8103", "chip to model")
}

func (c *bootCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	chip, err := resolveChip(c.chip)
	if err != nil {
		fatalf("%v", err)
	}
	pctx, power, err := newSimContext(chip)
	if err != nil {
		fatalf("%v", err)
	}
	dispatcher := psci.NewDispatcher(pctx)

	fmt.Printf("version: 0x%08x\n", dispatcher.Dispatch(0, psci.Args{FunctionID: psci.FuncPSCIVersion}))

	for cpu := 1; cpu < pctx.NumCPUs(); cpu++ {
		mpidr := pctx.MPIDR(cpu)
		status := dispatcher.Dispatch(0, psci.Args{
			FunctionID: psci.FuncCPUOn64,
			X1:         mpidr,
			X2:         0,
			X3:         uint64(cpu),
		})
		fmt.Printf("cpu_on(cpu=%d, mpidr=0x%x) -> %d\n", cpu, mpidr, int64(status))
	}

	// Every secondary now runs concurrently with CPU0: each one picks up
	// at its spintable entry, immediately requests a standby suspend of
	// its own accord, and waits to be woken. errgroup.WithContext mirrors
	// how a real hvpscictl-driven test harness would fan out across
	// simulated cores and fail fast if any of them misbehaves.
	group, groupCtx := errgroup.WithContext(ctx)
	for cpu := 1; cpu < pctx.NumCPUs(); cpu++ {
		cpu := cpu
		group.Go(func() error {
			status := dispatcher.Dispatch(cpu, psci.Args{
				FunctionID: psci.FuncCPUSuspend32,
				X1:         uint64(psci.IdleStandby),
			})
			if int64(status) != int64(psci.StatusSuccess) {
				return fmt.Errorf("cpu %d: cpu_suspend returned %d", cpu, int64(status))
			}
			return nil
		})
	}

	// Give every secondary a moment to reach EnterStandby before CPU0
	// wakes the bunch of them back up.
	select {
	case <-time.After(10 * time.Millisecond):
	case <-groupCtx.Done():
	}
	power.WakeSpinningCores()

	if err := group.Wait(); err != nil {
		fatalf("%v", err)
	}
	fmt.Println("all secondaries suspended and resumed cleanly")

	return subcommands.ExitSuccess
}
