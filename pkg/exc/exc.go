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

// Package exc is the synchronous-exception entry glue: it classifies a
// trapped lower-EL exception by ESR_EC and routes SMC calls into PSCI,
// forwarding everything else to a collaborator outside this module's
// scope (system-register traps, data aborts, debug exceptions).
package exc

import "github.com/theoparis/m1n1/pkg/psci"

// Class is the ESR_EL2.EC field: the reason a lower-EL exception
// trapped to EL2.
type Class uint8

// Exception classes this package distinguishes. Values match the
// architectural ESR_EC encoding.
const (
	ClassSMC32            Class = 0x13
	ClassHVC64            Class = 0x16
	ClassSMC64            Class = 0x17
	ClassSystemRegister   Class = 0x18
	ClassDataAbortLowerEL Class = 0x24
)

// TrapFrame is the register state captured on entry to a synchronous
// exception handler: the general registers a guest SMC/HVC call passes
// its arguments and return values through, plus the system registers
// needed to classify the trap and resume the guest afterward.
type TrapFrame struct {
	// X holds X0..X30 as the guest left them; PSCI reads its function ID
	// and arguments from X0..X3 and writes its return value back to X0.
	X [31]uint64

	SPSR  uint64
	ELR   uint64
	ESR   uint64
	FAR   uint64
	SPEL0 uint64
	SPEL1 uint64
}

// Class extracts the exception class from ESR.
func (tf *TrapFrame) Class() Class {
	return Class((tf.ESR >> 26) & 0x3F)
}

// Forwarder handles every synchronous exception this package does not
// own. It is the seam into the generic system-register / data-abort /
// debug path, out of this module's scope.
type Forwarder interface {
	Forward(cpu int, tf *TrapFrame)
}

// Handler is the entry point a per-CPU exception vector calls on every
// synchronous lower-EL exception.
type Handler struct {
	psci    *psci.Dispatcher
	forward Forwarder
}

// NewHandler builds a Handler serving d for SMC traps and forward for
// everything else. forward may be nil if no other trap is expected to
// reach this path.
func NewHandler(d *psci.Dispatcher, forward Forwarder) *Handler {
	return &Handler{psci: d, forward: forward}
}

// HandleSync classifies tf and, if it is an SMC, dispatches it into
// PSCI without taking any whole-hypervisor lock (PSCI serializes itself
// through its own per-node locks) and advances ELR past the SMC
// instruction so the guest resumes after it. Any other class is handed
// to the Forwarder unchanged.
func (h *Handler) HandleSync(cpu int, tf *TrapFrame) {
	switch tf.Class() {
	case ClassSMC32, ClassSMC64:
		args := psci.Args{FunctionID: uint32(tf.X[0]), X1: tf.X[1], X2: tf.X[2], X3: tf.X[3]}
		tf.X[0] = h.psci.Dispatch(cpu, args)
		tf.ELR += 4
	default:
		if h.forward != nil {
			h.forward.Forward(cpu, tf)
		}
	}
}
