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

package exc

import (
	"testing"

	"github.com/theoparis/m1n1/pkg/hwplatform/sim"
	"github.com/theoparis/m1n1/pkg/psci"
	"github.com/theoparis/m1n1/pkg/socconfig"
)

func newTestDispatcher(t *testing.T) *psci.Dispatcher {
	t.Helper()
	topo := socconfig.Topology{Tree: []byte{1, 1, 1}, NumClusters: 1, NumCores: 1}
	cpus := socconfig.SyntheticDescriptors(topo)
	ctx, err := psci.New(topo, cpus, sim.NewCache(), sim.NewPower())
	if err != nil {
		t.Fatalf("psci.New: %v", err)
	}
	return psci.NewDispatcher(ctx)
}

func esrForClass(class Class) uint64 {
	return uint64(class) << 26
}

type recordingForwarder struct {
	called bool
	cpu    int
	tf     *TrapFrame
}

func (f *recordingForwarder) Forward(cpu int, tf *TrapFrame) {
	f.called = true
	f.cpu = cpu
	f.tf = tf
}

func TestClassExtraction(t *testing.T) {
	tf := &TrapFrame{ESR: esrForClass(ClassSMC64) | 0x1234}
	if got := tf.Class(); got != ClassSMC64 {
		t.Errorf("Class() = 0x%x, want 0x%x", got, ClassSMC64)
	}
}

func TestHandleSyncRoutesSMCToPSCIAndAdvancesELR(t *testing.T) {
	h := NewHandler(newTestDispatcher(t), nil)
	tf := &TrapFrame{
		ESR: esrForClass(ClassSMC64),
		ELR: 0x1000,
	}
	tf.X[0] = uint64(psci.FuncPSCIVersion)

	h.HandleSync(0, tf)

	if tf.ELR != 0x1004 {
		t.Errorf("ELR = 0x%x, want 0x1004", tf.ELR)
	}
	if tf.X[0] != uint64(1)<<16|1 {
		t.Errorf("X[0] = 0x%x, want PSCI version 1.1", tf.X[0])
	}
}

func TestHandleSyncRoutesSMC32(t *testing.T) {
	h := NewHandler(newTestDispatcher(t), nil)
	tf := &TrapFrame{ESR: esrForClass(ClassSMC32), ELR: 0x2000}
	tf.X[0] = uint64(psci.FuncPSCIVersion)

	h.HandleSync(0, tf)

	if tf.ELR != 0x2004 {
		t.Errorf("ELR = 0x%x, want 0x2004", tf.ELR)
	}
}

func TestHandleSyncForwardsNonSMC(t *testing.T) {
	fwd := &recordingForwarder{}
	h := NewHandler(newTestDispatcher(t), fwd)
	tf := &TrapFrame{ESR: esrForClass(ClassDataAbortLowerEL), ELR: 0x3000}

	h.HandleSync(7, tf)

	if !fwd.called {
		t.Fatal("Forward was not called for a data-abort trap")
	}
	if fwd.cpu != 7 {
		t.Errorf("Forward cpu = %d, want 7", fwd.cpu)
	}
	if tf.ELR != 0x3000 {
		t.Error("ELR was advanced for a non-SMC trap, want unchanged")
	}
}

func TestHandleSyncNilForwarderIsSafe(t *testing.T) {
	h := NewHandler(newTestDispatcher(t), nil)
	tf := &TrapFrame{ESR: esrForClass(ClassSystemRegister)}
	h.HandleSync(0, tf) // must not panic
}
