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

import "github.com/theoparis/m1n1/pkg/socconfig"

// CPUData is the per-CPU PSCI data that lives outside the power-domain
// tree proper, mutated only by its owning CPU except for AffinityState,
// which a different CPU may observe (e.g. AFFINITY_INFO reading a
// sibling's state).
type CPUData struct {
	// AffinityState is ON/OFF/ON_PENDING, the state AFFINITY_INFO reports.
	AffinityState AffinityState
	// TargetSuspendLevel is the level a power-down suspend targeted,
	// recorded (and cache-flushed) before the CPU enters WFI.
	// finishCPUSuspend receives the level as an argument and only resets
	// this field. InvalidLevel when no power-down suspend is in flight.
	TargetSuspendLevel Level
	// LocalCPUState is this CPU's own local power state (the level-0
	// entry of the coordinated state).
	LocalCPUState LocalPowerState

	// Cached topology identity, populated once at init from the ADT and
	// never mutated afterward.
	CPUIndex        int
	ClusterIndex    uint32
	DieIndex        uint32
	LocalCoreNumber uint32
	RegValue        uint32

	// SpintableEntry/SpintableContext are the values cpu_on's mandatory
	// spintable path writes for this CPU to pick up out of its boot
	// stub: the entry point to branch to and the argument to carry in
	// its first general register.
	SpintableEntry   uint64
	SpintableContext uint64
}

// newCPUData builds the initial per-CPU data record for one ADT-derived
// CPU descriptor: created once at init, affinity_state starts OFF,
// local_cpu_state starts OFF.
func newCPUData(index int, d socconfig.CPUDescriptor) CPUData {
	return CPUData{
		AffinityState:      AffinityOff,
		TargetSuspendLevel: InvalidLevel,
		LocalCPUState:      MaxOffState,
		CPUIndex:           index,
		ClusterIndex:       d.DieClusterID,
		DieIndex:           d.DieID,
		LocalCoreNumber:    d.ClusterCoreID,
		RegValue:           d.Reg,
	}
}
