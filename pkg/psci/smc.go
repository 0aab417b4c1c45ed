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

// PSCI function IDs, the Arm SMC calling convention's "which service"
// identifier placed in X0. SMC64 variants set bit 30; everything else
// about the encoding (service owner in bits 31/24:8) is the caller's
// concern, not the dispatcher's.
const (
	FuncPSCIVersion            uint32 = 0x84000000
	FuncCPUSuspend32           uint32 = 0x84000001
	FuncCPUSuspend64           uint32 = 0xC4000001
	FuncCPUOff                 uint32 = 0x84000002
	FuncCPUOn32                uint32 = 0x84000003
	FuncCPUOn64                uint32 = 0xC4000003
	FuncAffinityInfo32         uint32 = 0x84000004
	FuncAffinityInfo64         uint32 = 0xC4000004
	FuncSystemOff              uint32 = 0x84000008
	FuncSystemReset            uint32 = 0x84000009
	FuncFeatures               uint32 = 0x8400000A
	FuncMemProtect             uint32 = 0x84000013
	FuncMemProtectCheckRange32 uint32 = 0x84000014
	FuncMemProtectCheckRange64 uint32 = 0xC4000014

	smc64Bit = uint32(1) << 30
)

// functionTable maps every function ID this package answers to the
// capability bit PSCI_FEATURES reports for it. A table here, rather
// than a chain of ID comparisons in Dispatch, is what makes adding the
// 64-bit variant of a call and answering PSCI_FEATURES for it mechanical
// instead of two places to remember to keep in sync.
var functionTable = map[uint32]capabilities{
	FuncPSCIVersion:            capVersion,
	FuncCPUSuspend32:           capSuspendCPU,
	FuncCPUSuspend64:           capSuspendCPU,
	FuncCPUOff:                 capCPUOff,
	FuncCPUOn32:                capCPUOn,
	FuncCPUOn64:                capCPUOn,
	FuncAffinityInfo32:         capAffinityInfo,
	FuncAffinityInfo64:         capAffinityInfo,
	FuncSystemOff:              capSystemOff,
	FuncSystemReset:            capSystemReset,
	FuncFeatures:               capFeatures,
	FuncMemProtect:             capMemProtect,
	FuncMemProtectCheckRange32: capMemProtectCheckRange,
	FuncMemProtectCheckRange64: capMemProtectCheckRange,
}

func capabilityForFunctionID(fid uint32) (capabilities, bool) {
	bit, ok := functionTable[fid]
	return bit, ok
}

// Args is the guest's SMC register file, as an exception handler would
// capture it from the trap frame: the function ID from X0/W0 and three
// argument registers.
type Args struct {
	FunctionID uint32
	X1, X2, X3 uint64
}

// Dispatcher demultiplexes SMC32/SMC64 PSCI calls against one Context.
type Dispatcher struct {
	ctx *Context
}

// NewDispatcher returns a Dispatcher serving ctx.
func NewDispatcher(ctx *Context) *Dispatcher {
	return &Dispatcher{ctx: ctx}
}

// Dispatch runs the PSCI call named by a.FunctionID on behalf of cpu and
// returns the value to place in the guest's X0. Every call, recognised
// or not, produces a result: unrecognised or unsupported IDs answer
// NOT_SUPPORTED rather than leaving the dispatch unhandled, matching
// the "PSCI owns the entire 0x84/0xC4 function ID space" contract.
func (d *Dispatcher) Dispatch(cpu int, a Args) uint64 {
	bit, known := capabilityForFunctionID(a.FunctionID)
	if !known || !d.ctx.caps.has(bit) {
		return statusResult(StatusNotSupported)
	}

	x1, x2, x3 := a.X1, a.X2, a.X3
	if a.FunctionID&smc64Bit == 0 {
		x1, x2, x3 = uint64(uint32(x1)), uint64(uint32(x2)), uint64(uint32(x3))
	}

	switch a.FunctionID {
	case FuncPSCIVersion:
		return uint64(d.ctx.Version())
	case FuncCPUSuspend32, FuncCPUSuspend64:
		return statusResult(d.ctx.CPUSuspend(cpu, uint32(x1), x2, x3))
	case FuncCPUOff:
		return statusResult(d.ctx.CPUOff(cpu))
	case FuncCPUOn32, FuncCPUOn64:
		return statusResult(d.ctx.CPUOn(x1, x2, x3))
	case FuncAffinityInfo32, FuncAffinityInfo64:
		state, status := d.ctx.AffinityInfo(x1)
		if status != StatusSuccess {
			return statusResult(status)
		}
		return uint64(state)
	case FuncSystemOff:
		return statusResult(d.ctx.SystemOff())
	case FuncSystemReset:
		return statusResult(d.ctx.SystemReset())
	case FuncFeatures:
		return statusResult(d.ctx.Features(uint32(x1)))
	case FuncMemProtect:
		return statusResult(d.ctx.MemProtect(x1 != 0))
	case FuncMemProtectCheckRange32, FuncMemProtectCheckRange64:
		return statusResult(d.ctx.MemProtectCheckRange(x1, x2))
	default:
		return statusResult(StatusNotSupported)
	}
}

// statusResult sign-extends a Status into the full 64-bit X0 value an
// SMC64 caller reads; an SMC32 caller only looks at the low 32 bits,
// which carry the same value either way.
func statusResult(s Status) uint64 {
	return uint64(int64(s))
}
