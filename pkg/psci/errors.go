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

import "github.com/theoparis/m1n1/pkg/hvlog"

// Status is a PSCI return code. Every handler in this package surfaces
// exactly one Status to the guest in X0; Go errors never cross the SMC
// boundary.
type Status int32

// PSCI return values, as specified by the Arm PSCI specification. Values
// are signed and echoed directly into X0.
const (
	StatusSuccess             Status = 0
	StatusNotSupported        Status = -1
	StatusInvalidParameters   Status = -2
	StatusOperationDenied     Status = -3
	StatusAlreadyOn           Status = -4
	StatusOnPending           Status = -5
	StatusInternalFailure     Status = -6
	StatusNotPresent          Status = -7
	StatusDisabled            Status = -8
	StatusInvalidAddress      Status = -9
)

// String implements fmt.Stringer.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusNotSupported:
		return "NOT_SUPPORTED"
	case StatusInvalidParameters:
		return "INVALID_PARAMETERS"
	case StatusOperationDenied:
		return "OPERATION_DENIED"
	case StatusAlreadyOn:
		return "ALREADY_ON"
	case StatusOnPending:
		return "ON_PENDING"
	case StatusInternalFailure:
		return "INTERNAL_FAILURE"
	case StatusNotPresent:
		return "NOT_PRESENT"
	case StatusDisabled:
		return "DISABLED"
	case StatusInvalidAddress:
		return "INVALID_ADDRESS"
	default:
		return "UNKNOWN_STATUS"
	}
}

// invariantViolation logs a diagnostic and panics: an internal invariant
// failure that must not occur in any tested path.
func invariantViolation(format string, args ...any) {
	msg := hvlog.Sprint(format, args...)
	hvlog.Warningf("PSCI invariant violation: %s", msg)
	panic("psci: " + msg)
}
