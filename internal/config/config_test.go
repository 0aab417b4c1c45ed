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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/theoparis/m1n1/pkg/socconfig"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hvpscictl.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
chip = "t8112"
log_level = "debug"
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Chip != "t8112" {
		t.Errorf("Chip = %q, want t8112", c.Chip)
	}
	if c.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", c.LogLevel)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml")); err == nil {
		t.Fatal("Load(missing file): want error, got nil")
	}
}

func TestLoadMalformedTOML(t *testing.T) {
	path := writeConfig(t, "chip = [this is not valid toml")
	if _, err := Load(path); err == nil {
		t.Fatal("Load(malformed): want error, got nil")
	}
}

func TestChipID(t *testing.T) {
	cases := []struct {
		name string
		want socconfig.ChipID
	}{
		{"t8103", socconfig.T8103},
		{"t8112", socconfig.T8112},
		{"t6000", socconfig.T6000},
		{"t6001", socconfig.T6001},
		{"t6002", socconfig.T6002},
		{"t6020", socconfig.T6020},
		{"t6021", socconfig.T6021},
	}
	for _, tc := range cases {
		c := Config{Chip: tc.name}
		got, err := c.ChipID()
		if err != nil {
			t.Errorf("ChipID(%q): %v", tc.name, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ChipID(%q) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestChipIDUnknown(t *testing.T) {
	c := Config{Chip: "t9999"}
	if _, err := c.ChipID(); err == nil {
		t.Fatal("ChipID(unknown chip): want error, got nil")
	}
}
