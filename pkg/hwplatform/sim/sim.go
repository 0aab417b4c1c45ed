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

// Package sim provides an in-memory, goroutine-safe implementation of
// pkg/hwplatform's CacheMaintainer and PowerController, for use by tests
// and the hvpscictl CLI's simulation mode. There is no real cache or MMIO
// to model on a hosted Go process, so CacheMaintainer is a no-op (Go's
// memory model gives coherence for free across goroutines once a
// synchronizing operation, e.g. a mutex unlock, has happened) and
// PowerController models WFI as blocking on a channel until woken.
package sim

import (
	"sync"
	"unsafe"

	"github.com/theoparis/m1n1/pkg/hwplatform"
)

// Cache is a no-op CacheMaintainer: a simulated guest has no cache
// hierarchy to maintain, but the type exists so test code exercises the
// same call sites production code does.
type Cache struct {
	mu  sync.Mutex
	log []string
}

var _ hwplatform.CacheMaintainer = (*Cache)(nil)

// NewCache returns a ready Cache.
func NewCache() *Cache { return &Cache{} }

func (c *Cache) record(op string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = append(c.log, op)
}

// CleanInvalidate implements hwplatform.CacheMaintainer.
func (c *Cache) CleanInvalidate(addr unsafe.Pointer, size uintptr) { c.record("clean-invalidate") }

// Invalidate implements hwplatform.CacheMaintainer.
func (c *Cache) Invalidate(addr unsafe.Pointer, size uintptr) { c.record("invalidate") }

// DisableDataCache implements hwplatform.CacheMaintainer.
func (c *Cache) DisableDataCache() { c.record("disable-dcache") }

// CleanInvalidateAll implements hwplatform.CacheMaintainer.
func (c *Cache) CleanInvalidateAll() { c.record("clean-invalidate-all") }

// Ops returns a snapshot of the recorded operation log, for tests that
// assert the cache-maintenance discipline was actually followed.
func (c *Cache) Ops() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.log...)
}

// cpuState tracks one simulated core's armed/sleeping status.
type cpuState struct {
	armed  bool
	wake   chan struct{}
	sleep  bool
}

// Power is a PowerController backed by per-CPU channels: EnterDeepSleep
// and EnterStandby block until WakeSpinningCores (or a targeted wake) is
// called, the same shape as a real core blocking on WFI until SEV.
type Power struct {
	mu        sync.Mutex
	cpus      map[int]*cpuState
	rebooted  bool
	poweredOff bool
	// StartWrites records every ArmCPUStop call, in order, so tests can
	// assert the MMIO write cpu_off makes happened with the right bitmap.
	StartWrites []StartWrite
	pending     map[int]bool
}

// StartWrite is one recorded ArmCPUStop call.
type StartWrite struct {
	CPU                                          int
	DieIndex, ClusterIndex, LocalCoreNumber       uint32
	Bitmap                                        uint32
}

var _ hwplatform.PowerController = (*Power)(nil)

// NewPower returns a ready Power controller.
func NewPower() *Power {
	return &Power{
		cpus:    make(map[int]*cpuState),
		pending: make(map[int]bool),
	}
}

func (p *Power) state(cpu int) *cpuState {
	s, ok := p.cpus[cpu]
	if !ok {
		s = &cpuState{wake: make(chan struct{}, 1)}
		p.cpus[cpu] = s
	}
	return s
}

// ArmCPUStop implements hwplatform.PowerController.
func (p *Power) ArmCPUStop(cpu int, dieIndex, clusterIndex, localCoreNumber uint32) {
	p.mu.Lock()
	bitmap := uint32(1) << (4*clusterIndex + localCoreNumber)
	p.StartWrites = append(p.StartWrites, StartWrite{
		CPU: cpu, DieIndex: dieIndex, ClusterIndex: clusterIndex,
		LocalCoreNumber: localCoreNumber, Bitmap: bitmap,
	})
	p.state(cpu).armed = true
	p.mu.Unlock()
}

// EnterDeepSleep implements hwplatform.PowerController.
func (p *Power) EnterDeepSleep(cpu int) {
	p.mu.Lock()
	s := p.state(cpu)
	s.sleep = true
	wake := s.wake
	p.mu.Unlock()

	<-wake

	p.mu.Lock()
	p.state(cpu).sleep = false
	p.mu.Unlock()
}

// EnterStandby implements hwplatform.PowerController.
func (p *Power) EnterStandby(cpu int) {
	p.EnterDeepSleep(cpu)
}

// PendingInterrupt implements hwplatform.PowerController.
func (p *Power) PendingInterrupt(cpu int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending[cpu]
}

// SetPendingInterrupt lets test code simulate ISR_EL1 becoming non-zero
// for cpu, exercising cpu_suspend's early-cancellation path.
func (p *Power) SetPendingInterrupt(cpu int, pending bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending[cpu] = pending
}

// WakeSpinningCores implements hwplatform.PowerController.
func (p *Power) WakeSpinningCores() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.cpus {
		select {
		case s.wake <- struct{}{}:
		default:
		}
	}
}

// WakeCPU wakes a single simulated core out of EnterDeepSleep/EnterStandby.
func (p *Power) WakeCPU(cpu int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.state(cpu)
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Reboot implements hwplatform.PowerController.
func (p *Power) Reboot() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rebooted = true
}

// PowerOff implements hwplatform.PowerController.
func (p *Power) PowerOff() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.poweredOff = true
}

// Rebooted reports whether Reboot was called.
func (p *Power) Rebooted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rebooted
}

// PoweredOff reports whether PowerOff was called.
func (p *Power) PoweredOff() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.poweredOff
}
