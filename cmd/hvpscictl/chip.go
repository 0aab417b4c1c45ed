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

package main

import (
	"fmt"

	"github.com/theoparis/m1n1/pkg/hwplatform/sim"
	"github.com/theoparis/m1n1/pkg/psci"
	"github.com/theoparis/m1n1/pkg/socconfig"
)

var chipByName = map[string]socconfig.ChipID{
	"t8103": socconfig.T8103,
	"t8112": socconfig.T8112,
	"t6000": socconfig.T6000,
	"t6001": socconfig.T6001,
	"t6002": socconfig.T6002,
	"t6020": socconfig.T6020,
	"t6021": socconfig.T6021,
}

func resolveChip(name string) (socconfig.ChipID, error) {
	id, ok := chipByName[name]
	if !ok {
		return 0, fmt.Errorf("unknown chip %q", name)
	}
	return id, nil
}

// newSimContext builds a psci.Context for chip backed by the in-memory
// simulator, along with the Power controller so callers can drive or
// observe it directly.
func newSimContext(chip socconfig.ChipID) (*psci.Context, *sim.Power, error) {
	topo, err := socconfig.Descriptor(chip)
	if err != nil {
		return nil, nil, err
	}
	descriptors := socconfig.SyntheticDescriptors(topo)
	power := sim.NewPower()
	ctx, err := psci.New(topo, descriptors, sim.NewCache(), power)
	if err != nil {
		return nil, nil, err
	}
	return ctx, power, nil
}
