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

import "unsafe"

// StateInfo is the coordinated power_state record a cpu_off/cpu_suspend
// caller passes down to Coordinate and reads back. PowerDomainState[0]
// is the CPU's own requested/coordinated state; PowerDomainState[level]
// for level >= 1 is the cluster's and then the system's.
type StateInfo struct {
	PowerDomainState [int(MaxLevel) + 1]LocalPowerState
}

// minState returns the numerically smallest (shallowest) state among
// states — the "coordinated state is the min of the children" rule.
func minState(states []LocalPowerState) LocalPowerState {
	m := states[0]
	for _, s := range states[1:] {
		if s < m {
			m = s
		}
	}
	return m
}

// Coordinate runs the three-phase snapshot/coordinate/commit sequence
// for cpu's request up to endLevel: record cpu's vote at every level
// from ClusterLevel to endLevel, fold it against its siblings' last
// recorded votes to get that level's coordinated state, and stop
// climbing the moment a level comes back ON (an ON ancestor means every
// level above it must also stay ON, since a running cluster implies a
// running system). Every level skipped that way, and cpu's own vote for
// it, is forced back to ON. The result is committed to the tree and
// cpu's own CPUData, with a cache clean+invalidate after each write so
// another CPU's next coordination sees it.
//
// Callers must hold the locks AcquireLocks(parents, endLevel) takes
// for the same parents/endLevel before calling Coordinate.
func (c *Context) Coordinate(cpu int, endLevel Level, info *StateInfo) {
	nodeIndex := c.tree.CPU[cpu].ParentIndex
	coordinated := CPULevel

	for lvl := ClusterLevel; lvl <= endLevel; lvl++ {
		c.tree.requested[lvl-ClusterLevel][cpu] = info.PowerDomainState[lvl]

		node := &c.tree.NonCPU[nodeIndex]
		column := c.tree.requested[lvl-ClusterLevel][node.FirstCPUIndex : node.FirstCPUIndex+node.NumCPUSiblings]
		target := minState(column)
		info.PowerDomainState[lvl] = target
		coordinated = lvl

		if target == On {
			break
		}
		nodeIndex = node.ParentIndex
	}

	for lvl := coordinated + 1; lvl <= endLevel; lvl++ {
		c.tree.requested[lvl-ClusterLevel][cpu] = On
		info.PowerDomainState[lvl] = On
	}

	c.commitTargetStates(cpu, endLevel, info)
}

// commitTargetStates writes the coordinated state of every level from
// CPULevel to endLevel into its owning record (cpu's CPUData for level
// 0, the tree node for every level above), cleaning and invalidating
// the affected cache line after each write.
func (c *Context) commitTargetStates(cpu int, endLevel Level, info *StateInfo) {
	c.withCPU(cpu, func(d *CPUData) {
		d.LocalCPUState = info.PowerDomainState[CPULevel]
	})
	c.cache.CleanInvalidate(unsafe.Pointer(&c.cpus[cpu].LocalCPUState), unsafe.Sizeof(c.cpus[cpu].LocalCPUState))

	nodeIndex := c.tree.CPU[cpu].ParentIndex
	for lvl := ClusterLevel; lvl <= endLevel; lvl++ {
		node := &c.tree.NonCPU[nodeIndex]
		node.LocalPowerState = info.PowerDomainState[lvl]
		c.cache.CleanInvalidate(unsafe.Pointer(&node.LocalPowerState), unsafe.Sizeof(node.LocalPowerState))
		nodeIndex = node.ParentIndex
	}
}

// snapshotRequested reads back the current coordinated state of cpu's
// whole ancestor chain without mutating anything. finishCPUSuspend does
// not call it: it sets every level on the path to ON without reading
// the previous states first.
func (c *Context) snapshotRequested(cpu int, endLevel Level) StateInfo {
	var info StateInfo
	c.withCPU(cpu, func(d *CPUData) {
		info.PowerDomainState[CPULevel] = d.LocalCPUState
	})
	for i, idx := range c.tree.GetParents(cpu, endLevel) {
		info.PowerDomainState[ClusterLevel+Level(i)] = c.tree.NonCPU[idx].LocalPowerState
	}
	return info
}
