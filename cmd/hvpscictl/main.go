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

// Command hvpscictl drives the PSCI core against a simulated platform
// backend: it builds the power-domain tree for a chip, issues SMC calls
// against it, and prints the result, without any real hardware.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/theoparis/m1n1/pkg/hvlog"
)

var logLevel = flag.String("log-level", "info", "one of debug, info, warning")

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&topologyCmd{}, "")
	subcommands.Register(&smcCmd{}, "")
	subcommands.Register(&bootCmd{}, "")

	flag.Parse()

	hvlog.SetEmitter(hvlog.NewWriterEmitter(os.Stderr))
	switch *logLevel {
	case "debug":
		hvlog.SetLevel(hvlog.Debug)
	case "warning":
		hvlog.SetLevel(hvlog.Warning)
	default:
		hvlog.SetLevel(hvlog.Info)
	}

	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx)))
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
