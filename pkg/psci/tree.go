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

package psci

import (
	"fmt"
	"sync"

	"github.com/theoparis/m1n1/pkg/socconfig"
)

// CPUNode is a leaf of the power-domain tree: a single core's link to its
// parent cluster.
type CPUNode struct {
	// MPIDR is the affinity value a guest's MPIDR_EL1 read (or an
	// AFFINITY_INFO/CPU_ON target_cpu argument) will carry for this core.
	MPIDR uint64
	// ParentIndex indexes into Tree.NonCPU: the cluster this core belongs
	// to.
	ParentIndex int
}

// NonCPUNode is a cluster or the system root.
type NonCPUNode struct {
	// Level is ClusterLevel or MaxLevel.
	Level Level
	// ParentIndex indexes into Tree.NonCPU. The root node's own
	// ParentIndex is its own index: the parent chain is well defined
	// everywhere without a sentinel, even though nothing walks past the
	// root in practice.
	ParentIndex int
	// FirstCPUIndex is the lowest CPU index among this node's
	// descendants, and NumCPUSiblings is how many there are; together
	// they index the contiguous run of that node's columns in the
	// coordinator's per-level requested-state matrix.
	FirstCPUIndex  int
	NumCPUSiblings int
	// LocalPowerState is this node's last-coordinated local power state.
	LocalPowerState LocalPowerState
	// LockIndex indexes into Tree's parallel spinlock array.
	LockIndex int
}

// Tree is the power-domain tree: a CPU-level array of leaves and a
// non-CPU-level array of clusters-plus-root, built once from a chip
// topology and then mutated only through Coordinate/AcquireLocks/
// ReleaseLocks for the life of the hypervisor.
type Tree struct {
	CPU    []CPUNode
	NonCPU []NonCPUNode

	locks []sync.Mutex
	// requested[level-1][cpu] is the last power state that cpu voted for
	// at level (1-indexed, since CPULevel never needs a vote: a CPU's own
	// state is never coordinated against siblings).
	requested [][]LocalPowerState
}

// BuildTree lays out a Tree breadth-first from topo: first the single
// root, then one node per cluster (topo.Tree[1] of them), then one leaf
// per core grouped by cluster in topo.Tree[2:] order. cpus must list
// exactly topo.NumCores descriptors in that same cluster-major order.
func BuildTree(topo socconfig.Topology, cpus []socconfig.CPUDescriptor) (*Tree, error) {
	if len(topo.Tree) < 2 {
		return nil, fmt.Errorf("psci: malformed topology: tree descriptor too short")
	}
	if topo.Tree[0] != 1 {
		return nil, fmt.Errorf("psci: malformed topology: expected exactly one root node, got %d", topo.Tree[0])
	}
	if len(cpus) != topo.NumCores {
		return nil, fmt.Errorf("psci: got %d cpu descriptors, topology expects %d cores", len(cpus), topo.NumCores)
	}
	if topo.NumClusters != len(topo.Tree)-2 {
		return nil, fmt.Errorf("psci: malformed topology: cluster count %d disagrees with tree length", topo.NumClusters)
	}

	const rootIndex = 0
	nonCPU := make([]NonCPUNode, topo.NumClusters+1)
	nonCPU[rootIndex] = NonCPUNode{
		Level:           MaxLevel,
		ParentIndex:     rootIndex,
		LocalPowerState: MaxOffState,
	}

	clusterCounts := topo.Tree[2 : 2+topo.NumClusters]
	for i := range clusterCounts {
		nonCPU[i+1] = NonCPUNode{
			Level:           ClusterLevel,
			ParentIndex:     rootIndex,
			LocalPowerState: MaxOffState,
		}
	}

	cpuNodes := make([]CPUNode, topo.NumCores)
	cursor := 0
	for clusterOffset, count := range clusterCounts {
		clusterIndex := clusterOffset + 1
		for k := 0; k < int(count); k++ {
			cpuNodes[cursor] = CPUNode{
				MPIDR:       cpus[cursor].MPIDR(),
				ParentIndex: clusterIndex,
			}
			cursor++
		}
	}

	for i := range nonCPU {
		nonCPU[i].LockIndex = i
	}

	t := &Tree{
		CPU:    cpuNodes,
		NonCPU: nonCPU,
		locks:  make([]sync.Mutex, len(nonCPU)),
	}
	t.requested = make([][]LocalPowerState, MaxLevel)
	for lvl := range t.requested {
		row := make([]LocalPowerState, topo.NumCores)
		for i := range row {
			row[i] = MaxOffState
		}
		t.requested[lvl] = row
	}
	t.updateLimits()
	return t, nil
}

// updateLimits walks every CPU's parent chain and, for each ancestor,
// lowers FirstCPUIndex to the smallest CPU index seen and counts
// NumCPUSiblings — the second pass the tree builder runs once, after
// every node exists, so the coordinator never has to walk the tree to
// find a node's CPU range.
func (t *Tree) updateLimits() {
	const unset = -1
	for i := range t.NonCPU {
		t.NonCPU[i].FirstCPUIndex = unset
		t.NonCPU[i].NumCPUSiblings = 0
	}
	for cpu := range t.CPU {
		for _, idx := range t.GetParents(cpu, MaxLevel) {
			n := &t.NonCPU[idx]
			if n.FirstCPUIndex == unset || cpu < n.FirstCPUIndex {
				n.FirstCPUIndex = cpu
			}
			n.NumCPUSiblings++
		}
	}
}

// GetParents returns cpu's ancestor chain from ClusterLevel up to and
// including endLevel: parents[0] is the cluster, parents[1] (if
// endLevel is MaxLevel) is the system root.
func (t *Tree) GetParents(cpu int, endLevel Level) []int {
	parents := make([]int, 0, endLevel)
	idx := t.CPU[cpu].ParentIndex
	for lvl := ClusterLevel; lvl <= endLevel; lvl++ {
		parents = append(parents, idx)
		idx = t.NonCPU[idx].ParentIndex
	}
	return parents
}

// AcquireLocks takes the spinlocks guarding every level from ClusterLevel
// up to but not including endLevel, in ascending level order, so two CPUs
// racing to coordinate never deadlock taking the same locks in opposite
// order.
func (t *Tree) AcquireLocks(parents []int, endLevel Level) {
	for lvl := ClusterLevel; lvl < endLevel; lvl++ {
		t.locks[t.NonCPU[parents[lvl-ClusterLevel]].LockIndex].Lock()
	}
}

// ReleaseLocks undoes AcquireLocks, releasing in the reverse order they
// were taken.
func (t *Tree) ReleaseLocks(parents []int, endLevel Level) {
	for lvl := endLevel - 1; lvl >= ClusterLevel && lvl < endLevel; lvl-- {
		t.locks[t.NonCPU[parents[lvl-ClusterLevel]].LockIndex].Unlock()
	}
}
