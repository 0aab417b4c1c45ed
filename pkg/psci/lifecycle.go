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

// versionMajor/versionMinor are the PSCI version this implementation
// answers PSCI_VERSION with: 1.1, returned packed as (major<<16)|minor.
const (
	versionMajor = 1
	versionMinor = 1
)

// Version implements the PSCI_VERSION call.
func (c *Context) Version() uint32 {
	return uint32(versionMajor)<<16 | uint32(versionMinor)
}

// CPUOff implements cpu_off for the calling CPU: coordinate every level
// to OFF, mark the CPU itself off, arm the platform's CPU-start register
// and enter deep sleep. It does not return on success; callers only see
// a Status when the operation could not be completed.
func (c *Context) CPUOff(cpu int) Status {
	var info StateInfo
	for lvl := CPULevel; lvl <= MaxLevel; lvl++ {
		info.PowerDomainState[lvl] = MaxOffState
	}

	parents := c.tree.GetParents(cpu, MaxLevel)
	c.tree.AcquireLocks(parents, MaxLevel)
	c.Coordinate(cpu, MaxLevel, &info)
	c.tree.ReleaseLocks(parents, MaxLevel)

	c.cache.DisableDataCache()
	c.cache.CleanInvalidateAll()

	c.withCPU(cpu, func(d *CPUData) {
		d.AffinityState = AffinityOff
	})
	c.cache.CleanInvalidate(unsafe.Pointer(&c.cpus[cpu].AffinityState), unsafe.Sizeof(c.cpus[cpu].AffinityState))

	d := &c.cpus[cpu]
	c.power.ArmCPUStop(cpu, d.DieIndex, d.ClusterIndex, d.LocalCoreNumber)

	c.power.EnterDeepSleep(cpu)
	// EnterDeepSleep is not expected to return; if it does, the hardware
	// failed to take the core offline.
	return StatusOperationDenied
}

// EntryPoint is the resume address and argument a woken CPU picks up,
// carrying the same PC/Arg0/SPSR fields original_source/hv_psci.c's
// entry_point_info_t builds, even though the mandatory spintable path
// only ever consumes PC and Arg0.
type EntryPoint struct {
	PC   uint64
	Arg0 uint64
	SPSR uint64
}

// entryPointAlignment is the minimum alignment of an instruction address;
// PC must be a multiple of this.
const entryPointAlignment = 4

// buildEntryPoint validates entryPoint and packs it with contextID into
// an EntryPoint, mirroring hv_psci_validate_entry_point. Unlike the
// original, which never rejects, a misaligned entry point is rejected
// with StatusInvalidAddress.
func buildEntryPoint(entryPoint, contextID uint64) (EntryPoint, Status) {
	if entryPoint%entryPointAlignment != 0 {
		return EntryPoint{}, StatusInvalidAddress
	}
	return EntryPoint{PC: entryPoint, Arg0: contextID}, StatusSuccess
}

// CPUOn implements cpu_on: resolve targetMPIDR to a logical CPU, reject
// if it is already running or already accepted, and otherwise hand it
// an entry point via the mandatory spintable path (the full power-up
// path gated by the original source's compile-time flag is future work,
// per the state diagram this package implements only ON/OFF/ON_PENDING
// through the spintable).
func (c *Context) CPUOn(targetMPIDR, entryPoint, contextID uint64) Status {
	target, ok := c.CPUFromMPIDR(targetMPIDR)
	if !ok {
		return StatusInvalidParameters
	}

	ep, status := buildEntryPoint(entryPoint, contextID)
	if status != StatusSuccess {
		return status
	}

	c.withCPU(target, func(d *CPUData) {
		switch d.AffinityState {
		case AffinityOn:
			status = StatusAlreadyOn
		case AffinityOnPending:
			status = StatusOnPending
		default:
			d.SpintableEntry = ep.PC
			d.SpintableContext = ep.Arg0
			status = StatusSuccess
		}
	})
	if status != StatusSuccess {
		return status
	}

	c.cache.CleanInvalidate(unsafe.Pointer(&c.cpus[target].SpintableEntry),
		unsafe.Sizeof(c.cpus[target].SpintableEntry)+unsafe.Sizeof(c.cpus[target].SpintableContext))
	c.power.WakeSpinningCores()
	return StatusSuccess
}

// AffinityInfo implements AFFINITY_INFO: report the addressed CPU's
// affinity state without otherwise touching it.
func (c *Context) AffinityInfo(targetMPIDR uint64) (AffinityState, Status) {
	target, ok := c.CPUFromMPIDR(targetMPIDR)
	if !ok {
		return 0, StatusInvalidParameters
	}
	var state AffinityState
	c.withCPU(target, func(d *CPUData) { state = d.AffinityState })
	return state, StatusSuccess
}

// powerState is a decoded CPU_SUSPEND power_state argument.
type powerState struct {
	isPowerDown bool
	levels      [int(MaxLevel) + 1]LocalPowerState
}

const powerStateTypeBit = uint32(1) << 30

// validIdlePowerStates is the whitelist of power_state encodings this
// platform accepts, mirroring original_source/hv_psci.c's
// valid_idle_states[]: a CPU-level standby, a cluster-level standby, and
// a system-wide power-down. Any other combination of per-level states -
// even one that is otherwise in range and monotonic - is rejected, the
// same as the original's linear scan over valid_idle_states before it
// ever unpacks the per-level array.
var validIdlePowerStates = []powerState{
	// (On, On, Idle Standby) - core is in standby mode.
	{isPowerDown: false, levels: [int(MaxLevel) + 1]LocalPowerState{CPULevel: IdleStandby, ClusterLevel: On, MaxLevel: On}},
	// (On, Idle Retention, Idle Retention) - level 1 is in standby.
	{isPowerDown: false, levels: [int(MaxLevel) + 1]LocalPowerState{CPULevel: IdleStandby, ClusterLevel: IdleStandby, MaxLevel: On}},
	// (Off, Off, Off) - system off.
	{isPowerDown: true, levels: [int(MaxLevel) + 1]LocalPowerState{CPULevel: Off, ClusterLevel: Off, MaxLevel: Off}},
}

func (ps powerState) isWhitelisted() bool {
	for _, valid := range validIdlePowerStates {
		if ps == valid {
			return true
		}
	}
	return false
}

// decodePowerState rejects reserved bits and out-of-range per-level
// state IDs, unpacks one PLAT_LOCAL_PSTATE_WIDTH-wide nibble per level,
// and rejects anything not in validIdlePowerStates.
func decodePowerState(raw uint32) (powerState, bool) {
	stateIDBits := uint(platLocalPStateWidth * (int(MaxLevel) + 1))
	stateIDMask := uint32(1)<<stateIDBits - 1
	if raw&^(powerStateTypeBit|stateIDMask) != 0 {
		return powerState{}, false
	}

	var ps powerState
	ps.isPowerDown = raw&powerStateTypeBit != 0
	for lvl := 0; lvl <= int(MaxLevel); lvl++ {
		nibble := (raw >> uint(platLocalPStateWidth*lvl)) & platLocalPStateMask
		if nibble > uint32(Off) {
			return powerState{}, false
		}
		ps.levels[lvl] = LocalPowerState(nibble)
	}
	if !ps.isWhitelisted() {
		return powerState{}, false
	}
	return ps, true
}

// targetLevel returns the deepest level whose requested state is not
// ON, or InvalidLevel if every level requested ON (nothing to suspend).
func (ps powerState) targetLevel() Level {
	for lvl := MaxLevel; lvl > CPULevel; lvl-- {
		if ps.levels[lvl] != On {
			return lvl
		}
	}
	if ps.levels[CPULevel] != On {
		return CPULevel
	}
	return InvalidLevel
}

// validateSuspendRequest walks levels from targetLevel down to the CPU
// and requires each shallower level's depth category not exceed the
// one above it; a standby (non-power-down) request may never pass
// through an OFF level.
func validateSuspendRequest(ps powerState, targetLevel Level) Status {
	prev := categorizeState(ps.levels[targetLevel])
	if !ps.isPowerDown && prev == stateTypeOff {
		return StatusInvalidParameters
	}
	for lvl := targetLevel; lvl > CPULevel; lvl-- {
		cur := categorizeState(ps.levels[lvl-1])
		if cur > prev {
			return StatusInvalidParameters
		}
		if !ps.isPowerDown && cur == stateTypeOff {
			return StatusInvalidParameters
		}
		prev = cur
	}
	return StatusSuccess
}

// CPUSuspend implements cpu_suspend for the calling CPU.
func (c *Context) CPUSuspend(cpu int, rawPowerState uint32, entryPoint, contextID uint64) Status {
	ps, ok := decodePowerState(rawPowerState)
	if !ok {
		return StatusInvalidParameters
	}
	targetLevel := ps.targetLevel()
	if targetLevel == InvalidLevel {
		return StatusInvalidParameters
	}
	if status := validateSuspendRequest(ps, targetLevel); status != StatusSuccess {
		return status
	}

	if !ps.isPowerDown && targetLevel == CPULevel {
		return c.suspendStandby(cpu, ps.levels[CPULevel])
	}

	if ps.isPowerDown {
		ep, status := buildEntryPoint(entryPoint, contextID)
		if status != StatusSuccess {
			return status
		}
		c.withCPU(cpu, func(d *CPUData) {
			d.SpintableEntry = ep.PC
			d.SpintableContext = ep.Arg0
		})
	}
	return c.startCPUSuspend(cpu, targetLevel, ps)
}

// suspendStandby is cpu_suspend's fast path: no locks, no coordination,
// just set local_cpu_state, WFI, and restore it to ON on wake.
func (c *Context) suspendStandby(cpu int, state LocalPowerState) Status {
	c.withCPU(cpu, func(d *CPUData) { d.LocalCPUState = state })
	c.cache.CleanInvalidate(unsafe.Pointer(&c.cpus[cpu].LocalCPUState), unsafe.Sizeof(c.cpus[cpu].LocalCPUState))

	c.power.EnterStandby(cpu)

	c.withCPU(cpu, func(d *CPUData) { d.LocalCPUState = On })
	c.cache.CleanInvalidate(unsafe.Pointer(&c.cpus[cpu].LocalCPUState), unsafe.Sizeof(c.cpus[cpu].LocalCPUState))
	return StatusSuccess
}

// startCPUSuspend is cpu_suspend's slow path: coordinate up to
// targetLevel under lock, optionally record a power-down, then WFI
// (unless a pending interrupt cancels it), then finishCPUSuspend
// restores everything to ON.
func (c *Context) startCPUSuspend(cpu int, targetLevel Level, ps powerState) Status {
	var info StateInfo
	for lvl := CPULevel; lvl <= targetLevel; lvl++ {
		info.PowerDomainState[lvl] = ps.levels[lvl]
	}

	parents := c.tree.GetParents(cpu, targetLevel)
	c.tree.AcquireLocks(parents, targetLevel)

	skipWFI := c.power.PendingInterrupt(cpu)
	if !skipWFI {
		c.Coordinate(cpu, targetLevel, &info)
		if ps.isPowerDown {
			c.withCPU(cpu, func(d *CPUData) { d.TargetSuspendLevel = targetLevel })
			c.cache.CleanInvalidate(unsafe.Pointer(&c.cpus[cpu].TargetSuspendLevel), unsafe.Sizeof(c.cpus[cpu].TargetSuspendLevel))
			c.cache.DisableDataCache()
			c.cache.CleanInvalidateAll()
		}
	}

	c.tree.ReleaseLocks(parents, targetLevel)
	if skipWFI {
		return StatusSuccess
	}

	c.power.EnterStandby(cpu)

	c.finishCPUSuspend(cpu, targetLevel)
	return StatusSuccess
}

// finishCPUSuspend restores cpu and every level up to targetLevel back
// to ON after a wake, under the same lock ordering startCPUSuspend
// used.
func (c *Context) finishCPUSuspend(cpu int, targetLevel Level) {
	parents := c.tree.GetParents(cpu, targetLevel)
	c.tree.AcquireLocks(parents, targetLevel)

	var info StateInfo
	for lvl := CPULevel; lvl <= targetLevel; lvl++ {
		info.PowerDomainState[lvl] = On
	}
	c.Coordinate(cpu, targetLevel, &info)

	c.tree.ReleaseLocks(parents, targetLevel)

	c.withCPU(cpu, func(d *CPUData) {
		d.AffinityState = AffinityOn
		d.TargetSuspendLevel = InvalidLevel
	})
	c.cache.CleanInvalidate(unsafe.Pointer(&c.cpus[cpu].AffinityState), unsafe.Sizeof(c.cpus[cpu].AffinityState))
}

// SystemOff implements system_off: request the platform power off. Does
// not return on real hardware; if the platform's PowerOff does return,
// SystemOff reports StatusInternalFailure.
func (c *Context) SystemOff() Status {
	c.power.PowerOff()
	return StatusInternalFailure
}

// SystemReset implements system_reset: request a platform reset. Does
// not return on real hardware; if the platform's Reboot does return,
// SystemReset reports StatusInternalFailure.
func (c *Context) SystemReset() Status {
	c.power.Reboot()
	return StatusInternalFailure
}

// Features implements PSCI_FEATURES: SUCCESS if fid's capability bit is
// set, else NOT_SUPPORTED.
func (c *Context) Features(fid uint32) Status {
	bit, ok := capabilityForFunctionID(fid)
	if !ok || !c.caps.has(bit) {
		return StatusNotSupported
	}
	return StatusSuccess
}

// MemProtect implements the mem_protect stub: always accepted, no
// memory ranges are actually tracked.
func (c *Context) MemProtect(enable bool) Status {
	return StatusSuccess
}

// MemProtectCheckRange implements the mem_protect_check_range stub:
// always reports the range as protected.
func (c *Context) MemProtectCheckRange(base, length uint64) Status {
	return StatusSuccess
}
