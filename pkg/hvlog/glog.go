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

package hvlog

import (
	"fmt"
	"io"
	"time"
)

// WriterEmitter formats log lines glog-style (level, timestamp, message)
// and writes them to w. This is the Emitter a real hypervisor build wires
// up over the UART proxy transport (an external collaborator outside
// this module); the hvpscictl CLI wires one over os.Stderr for operator
// visibility.
type WriterEmitter struct {
	w io.Writer
}

// NewWriterEmitter returns a WriterEmitter writing to w.
func NewWriterEmitter(w io.Writer) *WriterEmitter {
	return &WriterEmitter{w: w}
}

// Emit implements Emitter.Emit.
func (g *WriterEmitter) Emit(level Level, timestamp time.Time, format string, args ...any) {
	var prefix byte
	switch level {
	case Debug:
		prefix = 'D'
	case Info:
		prefix = 'I'
	case Warning:
		prefix = 'W'
	default:
		prefix = '?'
	}
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(g.w, "%c%s psci] %s\n", prefix, timestamp.Format("0102 15:04:05.000000"), msg)
}
