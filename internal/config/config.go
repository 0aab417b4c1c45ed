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

// Package config loads the TOML file naming which Apple Silicon chip a
// hvpscictl invocation should model and at which level it should log.
// The cmd/hvpscictl subcommands do not read it; they take the chip and
// log level from their own flags.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/theoparis/m1n1/pkg/socconfig"
)

// Config is the on-disk shape of an hvpscictl config file.
type Config struct {
	// Chip names the SoC family to model, e.g. "t8103" for M1.
	Chip string `toml:"chip"`
	// LogLevel is one of "debug", "info", "warning".
	LogLevel string `toml:"log_level"`
}

// Load reads and decodes the TOML file at path.
func Load(path string) (Config, error) {
	var c Config
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return c, nil
}

// ChipID resolves the config's Chip name to a socconfig.ChipID.
func (c Config) ChipID() (socconfig.ChipID, error) {
	for id, name := range chipNames {
		if name == c.Chip {
			return id, nil
		}
	}
	return 0, fmt.Errorf("config: unknown chip %q", c.Chip)
}

var chipNames = map[socconfig.ChipID]string{
	socconfig.T8103: "t8103",
	socconfig.T8112: "t8112",
	socconfig.T6000: "t6000",
	socconfig.T6001: "t6001",
	socconfig.T6002: "t6002",
	socconfig.T6020: "t6020",
	socconfig.T6021: "t6021",
}
