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

// capabilities is the bitmask PSCI_FEATURES reports for the "which
// functions exist" query (function ID 0x8400000A), one bit per function
// this implementation handles.
type capabilities uint64

const (
	capVersion capabilities = 1 << iota
	capSuspendCPU
	capCPUOff
	capCPUOn
	capAffinityInfo
	capFeatures
	capSystemOff
	capSystemReset
	capMemProtect
	capMemProtectCheckRange
)

// supportedCapabilities is every function this package implements.
// Functions outside this set are rejected with StatusNotSupported before
// ever reaching a handler.
const supportedCapabilities = capVersion | capSuspendCPU | capCPUOff | capCPUOn |
	capAffinityInfo | capFeatures | capSystemOff | capSystemReset |
	capMemProtect | capMemProtectCheckRange

func (c capabilities) has(bit capabilities) bool { return c&bit != 0 }
