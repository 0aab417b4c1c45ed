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

	"github.com/google/subcommands"

	"github.com/theoparis/m1n1/pkg/socconfig"
)

// topologyCmd implements subcommands.Command for "topology".
type topologyCmd struct {
	chip string
}

func (*topologyCmd) Name() string     { return "topology" }
func (*topologyCmd) Synopsis() string { return "print the power-domain tree for a chip" }
func (*topologyCmd) Usage() string    { return "topology -chip=<name>\n" }

func (c *topologyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.chip, "chip", "t8103", "chip to model (t8103, t8112, t6000, t6001, t6002, t6020, t6021)")
}

func (c *topologyCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	chip, err := resolveChip(c.chip)
	if err != nil {
		fatalf("%v", err)
	}
	topo, err := socconfig.Descriptor(chip)
	if err != nil {
		fatalf("%v", err)
	}

	fmt.Printf("chip: %s\n", c.chip)
	fmt.Printf("clusters: %d, cores: %d\n", topo.NumClusters, topo.NumCores)
	fmt.Printf("cpu_start_offset: 0x%x, die_stride: 0x%x\n", topo.CPUStartOffset, topo.DieStride)

	descriptors := socconfig.SyntheticDescriptors(topo)
	clusterCounts := topo.Tree[2 : 2+topo.NumClusters]
	cpu := 0
	for clusterIndex, count := range clusterCounts {
		kind := "E"
		if descriptors[cpu].IsPCore {
			kind = "P"
		}
		fmt.Printf("  cluster %d (%s-core, %d cores):\n", clusterIndex, kind, count)
		for i := 0; i < int(count); i++ {
			d := descriptors[cpu]
			fmt.Printf("    cpu %d: mpidr=0x%x reg=%d\n", d.CPUID, d.MPIDR(), d.Reg)
			cpu++
		}
	}
	return subcommands.ExitSuccess
}
