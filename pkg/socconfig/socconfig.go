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

// Package socconfig holds the compile-time-shaped, per-SoC topology
// tables PSCI needs to build a power-domain tree: how many clusters and
// cores an Apple Silicon chip family has, and the MMIO offsets PSCI pokes
// to arm a core's power-off.
//
// This mirrors the apple_t*_power_domain_tree_descriptor tables in the
// original hv_psci.c, generalized so a new chip only needs a new table
// entry, not a new code path.
package socconfig

import "fmt"

// ChipID identifies an Apple Silicon SoC family.
type ChipID int

const (
	T8103 ChipID = iota // M1
	T8112               // M2
	T6000               // M1 Pro
	T6001               // M1 Max
	T6002               // M1 Ultra (two T6001 dies)
	T6020               // M2 Pro
	T6021               // M2 Max (Ultra is two of these)
)

// String implements fmt.Stringer.
func (c ChipID) String() string {
	switch c {
	case T8103:
		return "t8103"
	case T8112:
		return "t8112"
	case T6000:
		return "t6000"
	case T6001:
		return "t6001"
	case T6002:
		return "t6002"
	case T6020:
		return "t6020"
	case T6021:
		return "t6021"
	default:
		return fmt.Sprintf("chip(%d)", int(c))
	}
}

// numSystemsActive is the number of root ("system") nodes in any
// single-guest topology; always 1.
const numSystemsActive = 1

// chipInfo is the static per-SoC descriptor: a breadth-first child-count
// table ([1, num_clusters, children_of_cluster_0, ...]) plus the MMIO
// layout PSCI needs for cpu_off.
type chipInfo struct {
	tree           []byte
	cpuStartOffset uint64
	dieStride      uint64
	coresPerDie    uint64
}

// Apple SoC power-domain tree descriptors. E-core clusters are listed
// before P-core clusters, matching the original source's ordering
// convention (and the reg/cluster-type ADT properties it reads).
var chipTable = map[ChipID]chipInfo{
	T8103: {
		tree:           []byte{numSystemsActive, 2, 4, 4},
		cpuStartOffset: 0x20020,
		dieStride:      0,
		coresPerDie:    8,
	},
	T8112: {
		tree:           []byte{numSystemsActive, 2, 4, 4},
		cpuStartOffset: 0x26020,
		dieStride:      0,
		coresPerDie:    8,
	},
	T6000: {
		tree:           []byte{numSystemsActive, 3, 2, 4, 4},
		cpuStartOffset: 0x210e0,
		dieStride:      0,
		coresPerDie:    10,
	},
	T6001: {
		tree:           []byte{numSystemsActive, 4, 2, 4, 4, 4},
		cpuStartOffset: 0x210e0,
		dieStride:      0,
		coresPerDie:    14,
	},
	T6002: {
		// Two T6001 dies fused under one root: the cluster list is
		// simply doubled, the Ultra variant's "two-die" construction.
		tree:           []byte{numSystemsActive, 8, 2, 4, 4, 4, 2, 4, 4, 4},
		cpuStartOffset: 0x210e0,
		dieStride:      0x20_0000_0000,
		coresPerDie:    14,
	},
	T6020: {
		tree:           []byte{numSystemsActive, 3, 4, 4, 4},
		cpuStartOffset: 0x28e10,
		dieStride:      0,
		coresPerDie:    12,
	},
	T6021: {
		tree:           []byte{numSystemsActive, 3, 4, 4, 4},
		cpuStartOffset: 0x28e10,
		dieStride:      0,
		coresPerDie:    12,
	},
}

// Topology is the resolved, breadth-first power-domain descriptor for a
// chip: the raw byte table, plus the derived counts the original C code
// kept as separate (and easy-to-desync) globals psci_num_cores and
// psci_num_clusters.
type Topology struct {
	// Tree is the breadth-first child-count table: Tree[0] is the
	// number of root (system) nodes (always 1), Tree[1] is the number of
	// the root's children, the clusters, and Tree[2:] is the number of
	// cores in each cluster in order.
	Tree []byte
	// NumClusters is len(Tree[2:]).
	NumClusters int
	// NumCores is the sum of all per-cluster core counts.
	NumCores int
	// CPUStartOffset is the "CPU start" MMIO register offset from the
	// pmgr base, used by cpu_off to arm a core's power-down.
	CPUStartOffset uint64
	// DieStride is added to CPUStartOffset per die index (0 for
	// single-die chips).
	DieStride uint64
}

// Descriptor resolves chip into a Topology, computing NumClusters and
// NumCores once from the tree table instead of maintaining them as
// separate globals prone to off-by-one desync: there is now exactly one
// source of truth.
func Descriptor(chip ChipID) (Topology, error) {
	info, ok := chipTable[chip]
	if !ok {
		return Topology{}, fmt.Errorf("socconfig: unknown chip %v", chip)
	}
	return topologyFromInfo(info), nil
}

func topologyFromInfo(info chipInfo) Topology {
	numClusters := int(info.tree[1])
	numCores := 0
	for _, n := range info.tree[2 : 2+numClusters] {
		numCores += int(n)
	}
	return Topology{
		Tree:           append([]byte(nil), info.tree...),
		NumClusters:    numClusters,
		NumCores:       numCores,
		CPUStartOffset: info.cpuStartOffset,
		DieStride:      info.dieStride,
	}
}

// CPUDescriptor mirrors the per-core ADT properties PSCI needs: cpu-id,
// reg, die-cluster-id, die-id, cluster-core-id, cluster-type. The ADT
// parser itself is an external collaborator outside this module; this
// struct only gives its output a concrete shape for socconfig/psci to
// consume.
type CPUDescriptor struct {
	CPUID          int
	Reg            uint32
	DieClusterID   uint32
	DieID          uint32
	ClusterCoreID  uint32
	IsPCore        bool // cluster-type == "P"
}

// MPIDR computes the MPIDR_EL1 value for this core: bit31=1, bit16=1 for
// P-cores, lower 16 bits the ADT "reg" value.
func (d CPUDescriptor) MPIDR() uint64 {
	v := uint64(1) << 31
	if d.IsPCore {
		v |= uint64(1) << 16
	}
	return v | uint64(d.Reg)
}

// SyntheticDescriptors builds a plausible CPUDescriptor list for topo
// without reading an actual ADT: useful for the CLI's simulation mode
// and for tests that need a topology's worth of descriptors but have no
// device tree to parse. Only the first cluster in Tree is marked non-P
// (E-cores), matching Apple's convention of listing the efficiency
// cluster before performance ones; every other cluster is marked P,
// including a second die's E-core cluster in a doubled two-die table.
func SyntheticDescriptors(topo Topology) []CPUDescriptor {
	descriptors := make([]CPUDescriptor, 0, topo.NumCores)
	clusterCounts := topo.Tree[2 : 2+topo.NumClusters]
	cpuID := 0
	for clusterIndex, count := range clusterCounts {
		isPCore := clusterIndex > 0
		for core := 0; core < int(count); core++ {
			descriptors = append(descriptors, CPUDescriptor{
				CPUID:         cpuID,
				Reg:           uint32(cpuID),
				DieClusterID:  uint32(clusterIndex),
				DieID:         0,
				ClusterCoreID: uint32(core),
				IsPCore:       isPCore,
			})
			cpuID++
		}
	}
	return descriptors
}
