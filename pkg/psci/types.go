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

// Package psci implements the Power State Coordination Interface service
// that a guest kernel invokes via SMC: the power-domain tree, the per-CPU
// coordination state machine, and the lifecycle operations (cpu_on,
// cpu_off, cpu_suspend, system_off, system_reset, features, mem_protect).
//
// This is the only part of the hypervisor this module substantially
// engineers; the stage-2 MMU, vGIC emulation, UART proxy and watchdog are
// external collaborators reached through pkg/hwplatform.
package psci

import "fmt"

// Level is a power domain level. 0 is a CPU, 1 is a cluster, 2 is the
// system as a whole.
type Level uint8

const (
	// CPULevel is the leaf level: a single core.
	CPULevel Level = 0
	// ClusterLevel groups CPUs sharing a power domain.
	ClusterLevel Level = 1
	// MaxLevel is the deepest level the platform supports (the system).
	MaxLevel Level = 2
	// InvalidLevel marks "no level" (e.g. no level will be powered down).
	InvalidLevel Level = 3
)

// String implements fmt.Stringer.
func (l Level) String() string {
	switch l {
	case CPULevel:
		return "cpu"
	case ClusterLevel:
		return "cluster"
	case MaxLevel:
		return "system"
	case InvalidLevel:
		return "invalid"
	default:
		return fmt.Sprintf("level(%d)", uint8(l))
	}
}

// LocalPowerState is the local power state of a single power domain node.
// Ordering matters: ON < IdleStandby < Off, and the coordinator's
// coordinated state of a non-CPU node is the numeric minimum (the
// shallowest) of its children's requested states.
type LocalPowerState uint8

const (
	// On is the running state.
	On LocalPowerState = 0
	// IdleStandby is shallow retention, equivalent to a WFI clock-gate.
	IdleStandby LocalPowerState = 1
	// Off is fully powered down.
	Off LocalPowerState = 2

	// MaxOffState is the deepest (numerically largest) state a node can
	// be asked to enter; used as the tree's and the requested matrix's
	// initial value before any CPU votes, and as cpu_off's request at
	// every level.
	MaxOffState = Off
	// MaxRetentionState is the deepest non-OFF state.
	MaxRetentionState = IdleStandby
)

// String implements fmt.Stringer.
func (s LocalPowerState) String() string {
	switch s {
	case On:
		return "ON"
	case IdleStandby:
		return "IDLE_STANDBY"
	case Off:
		return "OFF"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// localStateType is the coarse category a LocalPowerState falls into,
// used by validateSuspendRequest to enforce monotonicity across levels.
type localStateType uint8

const (
	stateTypeRun localStateType = iota
	stateTypeRetention
	stateTypeOff
)

func categorizeState(s LocalPowerState) localStateType {
	switch {
	case s == On:
		return stateTypeRun
	case s > MaxRetentionState:
		return stateTypeOff
	default:
		return stateTypeRetention
	}
}

// AffinityState is the PSCI-visible on/off/pending state of a CPU, as
// read back by AFFINITY_INFO and mutated by cpu_on/cpu_off.
type AffinityState uint8

const (
	// AffinityOn means the CPU is running.
	AffinityOn AffinityState = 0
	// AffinityOff means the CPU is powered down.
	AffinityOff AffinityState = 1
	// AffinityOnPending means cpu_on was accepted but the CPU has not
	// yet reached AffinityOn (not reachable via the mandatory spintable
	// path; reserved for a future full power-up path).
	AffinityOnPending AffinityState = 2
)

// PowerStateType distinguishes a standby (clock-gate) suspend request
// from a power-down (lose-state) suspend request; it is bit 30 of the
// power_state argument to CPU_SUSPEND.
type PowerStateType uint8

const (
	// PowerStateTypeStandby requests a shallow, context-preserving sleep.
	PowerStateTypeStandby PowerStateType = 0
	// PowerStateTypePowerDown requests a deep sleep that may lose state.
	PowerStateTypePowerDown PowerStateType = 1
)

// platLocalPStateWidth is the number of bits each level occupies when
// packed into a power_state's StateID field.
const platLocalPStateWidth = 4

const platLocalPStateMask = (1 << platLocalPStateWidth) - 1
