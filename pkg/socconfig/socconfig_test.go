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

package socconfig

import "testing"

func TestDescriptorKnownChips(t *testing.T) {
	cases := []struct {
		chip            ChipID
		wantClusters    int
		wantCores       int
	}{
		{T8103, 2, 8},
		{T8112, 2, 8},
		{T6000, 3, 10},
		{T6001, 4, 14},
		{T6002, 8, 28},
		{T6020, 3, 12},
		{T6021, 3, 12},
	}
	for _, tc := range cases {
		topo, err := Descriptor(tc.chip)
		if err != nil {
			t.Fatalf("Descriptor(%v): %v", tc.chip, err)
		}
		if topo.NumClusters != tc.wantClusters {
			t.Errorf("%v: NumClusters = %d, want %d", tc.chip, topo.NumClusters, tc.wantClusters)
		}
		if topo.NumCores != tc.wantCores {
			t.Errorf("%v: NumCores = %d, want %d", tc.chip, topo.NumCores, tc.wantCores)
		}
	}
}

func TestDescriptorUnknownChip(t *testing.T) {
	if _, err := Descriptor(ChipID(999)); err == nil {
		t.Fatal("Descriptor(999): want error, got nil")
	}
}

func TestT6002IsDoubledT6001(t *testing.T) {
	single, err := Descriptor(T6001)
	if err != nil {
		t.Fatalf("Descriptor(T6001): %v", err)
	}
	ultra, err := Descriptor(T6002)
	if err != nil {
		t.Fatalf("Descriptor(T6002): %v", err)
	}
	if ultra.NumClusters != 2*single.NumClusters {
		t.Errorf("T6002 clusters = %d, want %d (2x T6001)", ultra.NumClusters, 2*single.NumClusters)
	}
	if ultra.NumCores != 2*single.NumCores {
		t.Errorf("T6002 cores = %d, want %d (2x T6001)", ultra.NumCores, 2*single.NumCores)
	}
	if ultra.DieStride == 0 {
		t.Error("T6002 DieStride = 0, want nonzero for a two-die part")
	}
}

func TestSyntheticDescriptorsCount(t *testing.T) {
	topo, err := Descriptor(T8103)
	if err != nil {
		t.Fatalf("Descriptor: %v", err)
	}
	descriptors := SyntheticDescriptors(topo)
	if len(descriptors) != topo.NumCores {
		t.Fatalf("len(descriptors) = %d, want %d", len(descriptors), topo.NumCores)
	}
	for i, d := range descriptors {
		if d.CPUID != i {
			t.Errorf("descriptors[%d].CPUID = %d, want %d", i, d.CPUID, i)
		}
	}
	// T8103's first cluster (E-cores) must not be marked P-core; the
	// second (P-cores) must be.
	if descriptors[0].IsPCore {
		t.Error("descriptors[0] (E-core cluster): IsPCore = true, want false")
	}
	if !descriptors[topo.NumCores-1].IsPCore {
		t.Error("last descriptor (P-core cluster): IsPCore = false, want true")
	}
}

func TestMPIDREncoding(t *testing.T) {
	eCore := CPUDescriptor{Reg: 3, IsPCore: false}
	pCore := CPUDescriptor{Reg: 3, IsPCore: true}

	if got := eCore.MPIDR(); got != (1<<31)|3 {
		t.Errorf("E-core MPIDR = 0x%x, want 0x%x", got, (uint64(1)<<31)|3)
	}
	if got := pCore.MPIDR(); got != (1<<31)|(1<<16)|3 {
		t.Errorf("P-core MPIDR = 0x%x, want 0x%x", got, (uint64(1)<<31)|(uint64(1)<<16)|3)
	}
}
