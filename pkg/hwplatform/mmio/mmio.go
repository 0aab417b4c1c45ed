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

//go:build linux

// Package mmio is the real, on-hardware hwplatform.PowerController: it
// mmaps the SoC's pmgr register window out of /dev/mem and pokes the
// "CPU start" bitmap cpu_off arms, the way the original hypervisor wrote
// it directly from EL2. EnterDeepSleep/EnterStandby/WakeSpinningCores
// are left to the caller's own WFI/SEV assembly, which this Go package
// cannot emit; Power only owns the MMIO and reboot/poweroff syscalls.
package mmio

import (
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/theoparis/m1n1/pkg/hwplatform"
)

// Power is a hwplatform.PowerController backed by a real mmap'd pmgr
// register window and the host's reboot syscall.
type Power struct {
	mem            *os.File
	region         []byte
	cpuStartOffset uint64
	dieStride      uint64
}

var _ hwplatform.PowerController = (*Power)(nil)

// Open mmaps length bytes of physical memory starting at physBase
// (the pmgr block's base address) from /dev/mem, for a platform whose
// CPU-start register lives at physBase+cpuStartOffset+die*dieStride.
func Open(physBase uint64, length int, cpuStartOffset, dieStride uint64) (*Power, error) {
	f, err := os.OpenFile("/dev/mem", os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("mmio: open /dev/mem: %w", err)
	}
	region, err := unix.Mmap(int(f.Fd()), int64(physBase), length, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmio: mmap 0x%x/%d: %w", physBase, length, err)
	}
	return &Power{mem: f, region: region, cpuStartOffset: cpuStartOffset, dieStride: dieStride}, nil
}

// Close unmaps the register window and closes /dev/mem.
func (p *Power) Close() error {
	if err := unix.Munmap(p.region); err != nil {
		return fmt.Errorf("mmio: munmap: %w", err)
	}
	return p.mem.Close()
}

func (p *Power) regAt(offset uint64) *uint32 {
	return (*uint32)(unsafe.Pointer(&p.region[offset]))
}

// ArmCPUStop implements hwplatform.PowerController: OR dieIndex's
// CPU-start bitmap with this core's bit, matching the hv_wdt_pet-style
// MMIO discipline of a read-modify-write via an atomic OR.
func (p *Power) ArmCPUStop(cpu int, dieIndex, clusterIndex, localCoreNumber uint32) {
	offset := p.cpuStartOffset + uint64(dieIndex)*p.dieStride
	bit := uint32(1) << (4*clusterIndex + localCoreNumber)
	reg := p.regAt(offset)
	for {
		old := atomic.LoadUint32(reg)
		if atomic.CompareAndSwapUint32(reg, old, old|bit) {
			return
		}
	}
}

// EnterDeepSleep is not implementable in pure Go: actually halting the
// calling physical core requires a WFI instruction this package cannot
// emit. It panics so a misconfigured build fails loudly instead of
// silently not sleeping.
func (p *Power) EnterDeepSleep(cpu int) {
	panic("mmio: EnterDeepSleep requires assembly WFI support outside this package")
}

// EnterStandby has the same limitation as EnterDeepSleep.
func (p *Power) EnterStandby(cpu int) {
	panic("mmio: EnterStandby requires assembly WFI support outside this package")
}

// PendingInterrupt always reports false: reading ISR_EL1 requires a
// system-register access this package cannot emit in pure Go.
func (p *Power) PendingInterrupt(cpu int) bool { return false }

// WakeSpinningCores requires an SEV instruction outside this package's
// reach; it is a no-op here.
func (p *Power) WakeSpinningCores() {}

// Reboot asks the kernel to restart the host.
func (p *Power) Reboot() {
	_ = unix.Reboot(unix.LINUX_REBOOT_CMD_RESTART)
}

// PowerOff asks the kernel to power off the host.
func (p *Power) PowerOff() {
	_ = unix.Reboot(unix.LINUX_REBOOT_CMD_POWER_OFF)
}
