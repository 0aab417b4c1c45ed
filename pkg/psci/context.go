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
	"sync"

	"github.com/theoparis/m1n1/pkg/hwplatform"
	"github.com/theoparis/m1n1/pkg/socconfig"
)

// Context owns the whole PSCI state for one guest: the power-domain
// tree, the per-CPU data records, and the platform seams lifecycle
// operations call through. There is exactly one Context per running
// hypervisor instance; every SMC call is a method on it.
type Context struct {
	topo socconfig.Topology
	tree *Tree

	// cpuMu[i] guards cpus[i]. Each CPU normally only touches its own
	// entry, except AffinityInfo reading a target CPU's AffinityState
	// and cpu_on writing the target's before waking it.
	cpuMu []sync.Mutex
	cpus  []CPUData

	mpidrIndex map[uint64]int

	cache hwplatform.CacheMaintainer
	power hwplatform.PowerController

	caps capabilities
}

// New builds a Context from a resolved chip topology and its per-core
// ADT descriptors, wiring in the platform's cache-maintenance and
// power-control backends.
func New(topo socconfig.Topology, descriptors []socconfig.CPUDescriptor, cache hwplatform.CacheMaintainer, power hwplatform.PowerController) (*Context, error) {
	tree, err := BuildTree(topo, descriptors)
	if err != nil {
		return nil, err
	}

	cpus := make([]CPUData, len(descriptors))
	mpidrIndex := make(map[uint64]int, len(descriptors))
	for i, d := range descriptors {
		cpus[i] = newCPUData(i, d)
		mpidrIndex[tree.CPU[i].MPIDR] = i
	}

	ctx := &Context{
		topo:       topo,
		tree:       tree,
		cpuMu:      make([]sync.Mutex, len(cpus)),
		cpus:       cpus,
		mpidrIndex: mpidrIndex,
		cache:      cache,
		power:      power,
		caps:       supportedCapabilities,
	}

	// The hypervisor always boots with exactly one core already running
	// the guest; every other core is parked until a CPU_ON brings it up.
	// Seed that one core's vote through the tree now, so the requested
	// matrix's all-OFF initial value represents "never voted" for every
	// other core rather than leaving cpu 0's own cluster and the system
	// root looking OFF before any SMC call has happened.
	if len(cpus) > 0 {
		ctx.cpus[0].AffinityState = AffinityOn
		ctx.cpus[0].LocalCPUState = On
		var info StateInfo
		for lvl := CPULevel; lvl <= MaxLevel; lvl++ {
			info.PowerDomainState[lvl] = On
		}
		parents := tree.GetParents(0, MaxLevel)
		tree.AcquireLocks(parents, MaxLevel)
		ctx.Coordinate(0, MaxLevel, &info)
		tree.ReleaseLocks(parents, MaxLevel)
	}

	return ctx, nil
}

// NumCPUs returns the number of cores the tree was built with.
func (c *Context) NumCPUs() int { return len(c.cpus) }

// CPUFromMPIDR resolves an MPIDR_EL1-shaped affinity value (as carried
// by a CPU_ON/AFFINITY_INFO target_cpu argument) to a CPU index.
func (c *Context) CPUFromMPIDR(mpidr uint64) (int, bool) {
	idx, ok := c.mpidrIndex[mpidr]
	return idx, ok
}

// MPIDR returns cpu's MPIDR_EL1 value, the inverse of CPUFromMPIDR.
func (c *Context) MPIDR(cpu int) uint64 {
	return c.tree.CPU[cpu].MPIDR
}

// withCPU runs fn with cpu's data locked against concurrent readers
// (AffinityInfo) and writers (cpu_on targeting cpu from elsewhere).
func (c *Context) withCPU(cpu int, fn func(*CPUData)) {
	c.cpuMu[cpu].Lock()
	defer c.cpuMu[cpu].Unlock()
	fn(&c.cpus[cpu])
}
