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
	"testing"

	"github.com/theoparis/m1n1/pkg/hwplatform/sim"
	"github.com/theoparis/m1n1/pkg/socconfig"
)

func newTestContext(t *testing.T, tree []byte, numClusters, numCores int) (*Context, *sim.Power) {
	t.Helper()
	topo := socconfig.Topology{Tree: tree, NumClusters: numClusters, NumCores: numCores}
	cpus := socconfig.SyntheticDescriptors(topo)
	power := sim.NewPower()
	ctx, err := New(topo, cpus, sim.NewCache(), power)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return ctx, power
}

func TestCoordinateClusterStaysOnWhileOneSiblingOn(t *testing.T) {
	ctx, _ := newTestContext(t, []byte{1, 1, 2}, 1, 2)

	var info StateInfo
	info.PowerDomainState[ClusterLevel] = Off
	info.PowerDomainState[MaxLevel] = Off
	parents := ctx.tree.GetParents(1, MaxLevel)
	ctx.tree.AcquireLocks(parents, MaxLevel)
	ctx.Coordinate(1, MaxLevel, &info)
	ctx.tree.ReleaseLocks(parents, MaxLevel)

	if got := ctx.tree.NonCPU[1].LocalPowerState; got != On {
		t.Errorf("cluster.LocalPowerState = %v, want ON (CPU0 still voting ON)", got)
	}
	if got := ctx.tree.requested[ClusterLevel-ClusterLevel][1]; got != Off {
		t.Errorf("requested[cluster][cpu1] = %v, want OFF", got)
	}
	if got := ctx.cpus[0].LocalCPUState; got == Off {
		t.Error("cpu0's own local state was touched by cpu1's coordination")
	}
}

func TestCoordinateAllOffReachesSystem(t *testing.T) {
	ctx, _ := newTestContext(t, []byte{1, 1, 1}, 1, 1)

	var info StateInfo
	info.PowerDomainState[ClusterLevel] = Off
	info.PowerDomainState[MaxLevel] = Off
	parents := ctx.tree.GetParents(0, MaxLevel)
	ctx.tree.AcquireLocks(parents, MaxLevel)
	ctx.Coordinate(0, MaxLevel, &info)
	ctx.tree.ReleaseLocks(parents, MaxLevel)

	if got := ctx.tree.NonCPU[1].LocalPowerState; got != Off {
		t.Errorf("cluster.LocalPowerState = %v, want OFF", got)
	}
	if got := ctx.tree.NonCPU[0].LocalPowerState; got != Off {
		t.Errorf("root.LocalPowerState = %v, want OFF", got)
	}
	if got := info.PowerDomainState[MaxLevel]; got != Off {
		t.Errorf("info.PowerDomainState[MaxLevel] = %v, want OFF", got)
	}
}

func TestCoordinateBreaksOnFirstOnLevel(t *testing.T) {
	// Two clusters under the root; cpu0 (alone in cluster0) requests
	// OFF, but cluster1's cores have each recorded an ON vote at the
	// system level (as they would on waking from a suspend), so cluster0
	// goes OFF while the root's coordinated minimum comes back ON and the
	// climb stops there. cluster1 is not on cpu0's path and is untouched.
	ctx, _ := newTestContext(t, []byte{1, 2, 1, 2}, 2, 3)
	for _, cpu := range []int{1, 2} {
		var onInfo StateInfo
		onInfo.PowerDomainState[ClusterLevel] = On
		onInfo.PowerDomainState[MaxLevel] = On
		parents := ctx.tree.GetParents(cpu, MaxLevel)
		ctx.tree.AcquireLocks(parents, MaxLevel)
		ctx.Coordinate(cpu, MaxLevel, &onInfo)
		ctx.tree.ReleaseLocks(parents, MaxLevel)
	}

	var info StateInfo
	info.PowerDomainState[ClusterLevel] = Off
	info.PowerDomainState[MaxLevel] = Off
	parents := ctx.tree.GetParents(0, MaxLevel)
	ctx.tree.AcquireLocks(parents, MaxLevel)
	ctx.Coordinate(0, MaxLevel, &info)
	ctx.tree.ReleaseLocks(parents, MaxLevel)

	if got := ctx.tree.NonCPU[1].LocalPowerState; got != Off {
		t.Errorf("cluster0.LocalPowerState = %v, want OFF (its only core voted OFF)", got)
	}
	if got := ctx.tree.NonCPU[0].LocalPowerState; got != On {
		t.Errorf("root.LocalPowerState = %v, want ON (cluster1 untouched)", got)
	}
	if got := info.PowerDomainState[MaxLevel]; got != On {
		t.Errorf("info.PowerDomainState[MaxLevel] = %v, want ON", got)
	}
}

func TestSnapshotRequestedMatchesLastCommit(t *testing.T) {
	ctx, _ := newTestContext(t, []byte{1, 1, 2}, 1, 2)

	var info StateInfo
	info.PowerDomainState[ClusterLevel] = IdleStandby
	info.PowerDomainState[MaxLevel] = IdleStandby
	parents := ctx.tree.GetParents(1, MaxLevel)
	ctx.tree.AcquireLocks(parents, MaxLevel)
	ctx.Coordinate(1, MaxLevel, &info)
	ctx.tree.ReleaseLocks(parents, MaxLevel)

	snap := ctx.snapshotRequested(1, MaxLevel)
	if snap.PowerDomainState[CPULevel] != ctx.cpus[1].LocalCPUState {
		t.Errorf("snapshot cpu level = %v, want %v", snap.PowerDomainState[CPULevel], ctx.cpus[1].LocalCPUState)
	}
	if snap.PowerDomainState[ClusterLevel] != ctx.tree.NonCPU[ctx.tree.CPU[1].ParentIndex].LocalPowerState {
		t.Errorf("snapshot cluster level = %v, want the node's own LocalPowerState", snap.PowerDomainState[ClusterLevel])
	}
}
