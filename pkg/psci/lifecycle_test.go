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
	"time"
)

func TestCPUOffLoneCore(t *testing.T) {
	ctx, power := newTestContext(t, []byte{1, 1, 1}, 1, 1)

	done := make(chan Status, 1)
	go func() { done <- ctx.CPUOff(0) }()

	// CPUOff blocks in EnterDeepSleep; give the goroutine a moment to
	// reach it, then confirm the MMIO arm write and state happened
	// before waking it back up (as a restart would).
	time.Sleep(10 * time.Millisecond)

	if got := ctx.cpus[0].AffinityState; got != AffinityOff {
		t.Errorf("AffinityState = %v, want AffinityOff", got)
	}
	if got := ctx.tree.NonCPU[1].LocalPowerState; got != Off {
		t.Errorf("cluster.LocalPowerState = %v, want OFF", got)
	}
	if got := ctx.tree.NonCPU[0].LocalPowerState; got != Off {
		t.Errorf("root.LocalPowerState = %v, want OFF", got)
	}
	if len(power.StartWrites) != 1 {
		t.Fatalf("len(StartWrites) = %d, want 1", len(power.StartWrites))
	}
	if power.StartWrites[0].Bitmap != 1 {
		t.Errorf("StartWrites[0].Bitmap = %d, want 1", power.StartWrites[0].Bitmap)
	}

	power.WakeCPU(0)
	if status := <-done; status != StatusOperationDenied {
		t.Errorf("CPUOff returned %v after being woken, want StatusOperationDenied", status)
	}
}

func TestCPUOffTwoCoresClusterStaysOn(t *testing.T) {
	ctx, power := newTestContext(t, []byte{1, 1, 2}, 1, 2)

	done := make(chan Status, 1)
	go func() { done <- ctx.CPUOff(1) }()
	time.Sleep(10 * time.Millisecond)

	if got := ctx.cpus[1].AffinityState; got != AffinityOff {
		t.Errorf("cpu1 AffinityState = %v, want AffinityOff", got)
	}
	if got := ctx.tree.NonCPU[1].LocalPowerState; got != On {
		t.Errorf("cluster.LocalPowerState = %v, want ON (cpu0 still on)", got)
	}

	power.WakeCPU(1)
	<-done
}

func TestCPUOnRejectsUnknownMPIDR(t *testing.T) {
	ctx, _ := newTestContext(t, []byte{1, 1, 1}, 1, 1)
	if got := ctx.CPUOn(0xdeadbeef, 0x1000, 0); got != StatusInvalidParameters {
		t.Errorf("CPUOn(unknown mpidr) = %v, want StatusInvalidParameters", got)
	}
}

func TestCPUOnAlreadyOn(t *testing.T) {
	ctx, _ := newTestContext(t, []byte{1, 1, 1}, 1, 1)
	mpidr := ctx.MPIDR(0)
	// cpu 0 is the boot CPU and starts AffinityOn.
	if got := ctx.CPUOn(mpidr, 0x1000, 0); got != StatusAlreadyOn {
		t.Errorf("CPUOn(running cpu) = %v, want StatusAlreadyOn", got)
	}
}

func TestCPUOnRejectsMisalignedEntryPoint(t *testing.T) {
	ctx, _ := newTestContext(t, []byte{1, 1, 2}, 1, 2)
	mpidr := ctx.MPIDR(1)
	if got := ctx.CPUOn(mpidr, 0x1001, 0); got != StatusInvalidAddress {
		t.Errorf("CPUOn(misaligned entry point) = %v, want StatusInvalidAddress", got)
	}
	if got := ctx.cpus[1].AffinityState; got != AffinityOff {
		t.Errorf("AffinityState after rejected CPUOn = %v, want unchanged AffinityOff", got)
	}
}

func TestCPUOnWakesSecondary(t *testing.T) {
	ctx, power := newTestContext(t, []byte{1, 1, 2}, 1, 2)
	mpidr := ctx.MPIDR(1)

	woke := make(chan struct{}, 1)
	go func() {
		power.EnterDeepSleep(1)
		woke <- struct{}{}
	}()
	time.Sleep(5 * time.Millisecond)

	if status := ctx.CPUOn(mpidr, 0x41414140, 0xabc); status != StatusSuccess {
		t.Fatalf("CPUOn = %v, want StatusSuccess", status)
	}
	select {
	case <-woke:
	case <-time.After(time.Second):
		t.Fatal("CPUOn did not wake the spinning core")
	}
	if ctx.cpus[1].SpintableEntry != 0x41414140 {
		t.Errorf("SpintableEntry = 0x%x, want 0x41414140", ctx.cpus[1].SpintableEntry)
	}
	if ctx.cpus[1].SpintableContext != 0xabc {
		t.Errorf("SpintableContext = 0x%x, want 0xabc", ctx.cpus[1].SpintableContext)
	}
}

func TestAffinityInfo(t *testing.T) {
	ctx, _ := newTestContext(t, []byte{1, 1, 2}, 1, 2)
	state, status := ctx.AffinityInfo(ctx.MPIDR(0))
	if status != StatusSuccess || state != AffinityOn {
		t.Errorf("AffinityInfo(cpu0) = (%v, %v), want (AffinityOn, Success)", state, status)
	}
	state, status = ctx.AffinityInfo(ctx.MPIDR(1))
	if status != StatusSuccess || state != AffinityOff {
		t.Errorf("AffinityInfo(cpu1) = (%v, %v), want (AffinityOff, Success)", state, status)
	}
}

func TestCPUSuspendStandbyRoundTrip(t *testing.T) {
	ctx, power := newTestContext(t, []byte{1, 1, 1}, 1, 1)

	done := make(chan Status, 1)
	go func() {
		done <- ctx.CPUSuspend(0, uint32(IdleStandby), 0, 0)
	}()
	time.Sleep(10 * time.Millisecond)

	if got := ctx.cpus[0].LocalCPUState; got != IdleStandby {
		t.Errorf("LocalCPUState during standby = %v, want IdleStandby", got)
	}

	power.WakeCPU(0)
	if status := <-done; status != StatusSuccess {
		t.Errorf("CPUSuspend returned %v, want StatusSuccess", status)
	}
	if got := ctx.cpus[0].LocalCPUState; got != On {
		t.Errorf("LocalCPUState after wake = %v, want ON", got)
	}
}

func TestCPUSuspendRejectsReservedBits(t *testing.T) {
	ctx, _ := newTestContext(t, []byte{1, 1, 1}, 1, 1)
	if status := ctx.CPUSuspend(0, 0xFFFFFFFF, 0, 0); status != StatusInvalidParameters {
		t.Errorf("CPUSuspend(garbage power_state) = %v, want StatusInvalidParameters", status)
	}
}

func TestCPUSuspendRejectsStateNotOnWhitelist(t *testing.T) {
	ctx, _ := newTestContext(t, []byte{1, 1, 2}, 1, 2)
	// System-wide standby (every level requesting IdleStandby): in range
	// and monotonic, so it would pass validateSuspendRequest, but it is
	// not one of the concrete encodings this platform supports.
	raw := uint32(IdleStandby) | uint32(IdleStandby)<<platLocalPStateWidth | uint32(IdleStandby)<<(2*platLocalPStateWidth)
	if status := ctx.CPUSuspend(1, raw, 0, 0); status != StatusInvalidParameters {
		t.Errorf("CPUSuspend(non-whitelisted power_state) = %v, want StatusInvalidParameters", status)
	}
}

func TestDecodePowerStateAcceptsWhitelistedEncodings(t *testing.T) {
	for _, tc := range []struct {
		name string
		raw  uint32
	}{
		{"cpu standby", uint32(IdleStandby)},
		{"cluster standby", uint32(IdleStandby) | uint32(IdleStandby)<<platLocalPStateWidth},
		{"system power-down", powerStateTypeBit | uint32(Off) | uint32(Off)<<platLocalPStateWidth | uint32(Off)<<(2*platLocalPStateWidth)},
	} {
		if _, ok := decodePowerState(tc.raw); !ok {
			t.Errorf("%s: decodePowerState(0x%x) = not ok, want a whitelisted encoding to decode", tc.name, tc.raw)
		}
	}
}

func TestFeatures(t *testing.T) {
	ctx, _ := newTestContext(t, []byte{1, 1, 1}, 1, 1)
	if status := ctx.Features(FuncPSCIVersion); status != StatusSuccess {
		t.Errorf("Features(PSCI_VERSION) = %v, want Success", status)
	}
	if status := ctx.Features(0x84000099); status != StatusNotSupported {
		t.Errorf("Features(unknown) = %v, want NotSupported", status)
	}
}

func TestMemProtectStubs(t *testing.T) {
	ctx, _ := newTestContext(t, []byte{1, 1, 1}, 1, 1)
	if status := ctx.MemProtect(true); status != StatusSuccess {
		t.Errorf("MemProtect = %v, want Success", status)
	}
	if status := ctx.MemProtectCheckRange(0x80000000, 0x1000); status != StatusSuccess {
		t.Errorf("MemProtectCheckRange = %v, want Success", status)
	}
}
