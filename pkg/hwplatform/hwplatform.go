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

// Package hwplatform declares the seams PSCI reaches into the platform
// through: cache maintenance and the "CPU start" MMIO / WFI / reset path.
// Everything here is a collaborator the core PSCI packages call through
// an interface; the actual asm/MMIO backing it is out of this module's
// scope (the stage-2 MMU, vGIC, UART proxy and watchdog live elsewhere).
package hwplatform

import "unsafe"

// CacheMaintainer performs the cache clean/invalidate operations required
// after every write to power-domain tree state that another CPU may read
// with its own data cache disabled.
type CacheMaintainer interface {
	// CleanInvalidate writes back and invalidates the cache line(s)
	// covering [addr, addr+size), so another core's fresh read from
	// main memory observes the update.
	CleanInvalidate(addr unsafe.Pointer, size uintptr)
	// Invalidate discards the cache line(s) covering [addr, addr+size)
	// without writing back, used once a CPU has disabled its own data
	// cache and wants to force a fresh read.
	Invalidate(addr unsafe.Pointer, size uintptr)
	// DisableDataCache clears the data-cache enable bit of the calling
	// CPU's SCTLR_EL2, the cpu_off / suspend-to-power-down step.
	DisableDataCache()
	// CleanInvalidateAll cleans and invalidates the entire data cache
	// hierarchy local to the calling CPU (the "clean+invalidate entire
	// D-cache" step of cpu_off / suspend-to-power-down).
	CleanInvalidateAll()
}

// PowerController is the platform seam for the actual power transition:
// arming a core's power-off in the SoC's power manager, entering WFI,
// and the irreversible system_off/system_reset operations.
//
// On real hardware, "the calling CPU" is implicit (each physical core
// runs its own copy of this code). This module instead runs each
// logical CPU as a goroutine, the natural Go way to model "one thread
// per physical core", so every per-CPU method takes the logical cpu
// index explicitly rather than reading it back out of a register.
// WakeSpinningCores, Reboot and PowerOff act on the whole system and
// take no cpu.
type PowerController interface {
	// ArmCPUStop programs the "CPU start" MMIO register so cpu is taken
	// offline the next time it enters deep sleep, cpu_off's final step.
	ArmCPUStop(cpu int, dieIndex, clusterIndex, localCoreNumber uint32)
	// EnterDeepSleep blocks cpu in the architectural WFI expecting not
	// to return (cpu_off); it only returns if WakeSpinningCores targets
	// cpu again afterwards, mirroring "left the WFI loop" being an
	// unexpected condition on real hardware.
	EnterDeepSleep(cpu int)
	// EnterStandby blocks cpu in a context-preserving WFI (cpu_suspend
	// standby fast path / power-down suspend path) until woken.
	EnterStandby(cpu int)
	// PendingInterrupt reports whether cpu's interrupt status register
	// is non-zero, i.e. a hardware interrupt is already pending and a
	// suspend should be aborted before WFI.
	PendingInterrupt(cpu int) bool
	// WakeSpinningCores issues a system event (SEV) to wake any cores
	// spinning on WFE, used by cpu_on's mandatory spintable path and to
	// resume a core blocked in EnterStandby/EnterDeepSleep.
	WakeSpinningCores()
	// Reboot requests a platform reset; does not return (system_reset).
	Reboot()
	// PowerOff requests the platform power off; does not return
	// (system_off).
	PowerOff()
}

// MemRegion is the seam PSCI's mem_protect/mem_protect_check_range
// operations would consult, were memory protection implemented beyond
// the always-succeeds stub. It is declared here, unused by the stub
// handlers, purely so a later implementation has a natural type to fill
// in without inventing new plumbing through pkg/psci.
type MemRegion struct {
	Base   uint64
	Length uint64
}
