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

// Package hvlog provides the hypervisor's leveled logging facility.
//
// There is no stdout at EL2: every log line is eventually pushed through
// the (external) UART proxy transport. hvlog only knows about an Emitter,
// so the core PSCI packages never depend on how that transport works.
package hvlog

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Level is the importance of a log message.
type Level int32

const (
	// Debug is used for low level and per-request debugging.
	Debug Level = iota
	// Info is used for informative messages.
	Info
	// Warning is used for warning messages that require more visibility.
	Warning
)

// String implements fmt.Stringer.
func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warning:
		return "WARNING"
	default:
		return "UNKNOWN"
	}
}

// Emitter is the interface for a log backend: something that knows how
// to turn a (level, timestamp, message) triple into bytes somewhere.
type Emitter interface {
	Emit(level Level, timestamp time.Time, format string, args ...any)
}

// EmitterFunc adapts a function to an Emitter.
type EmitterFunc func(level Level, timestamp time.Time, format string, args ...any)

// Emit implements Emitter.Emit.
func (f EmitterFunc) Emit(level Level, timestamp time.Time, format string, args ...any) {
	f(level, timestamp, format, args...)
}

// Logger wraps an Emitter with an atomically-adjustable minimum level.
type Logger struct {
	level   atomic.Int32
	emitter atomic.Pointer[Emitter]
}

var (
	mu      sync.Mutex
	current = newDefaultLogger()
)

func newDefaultLogger() *Logger {
	l := &Logger{}
	l.level.Store(int32(Info))
	var e Emitter = discardEmitter{}
	l.emitter.Store(&e)
	return l
}

type discardEmitter struct{}

func (discardEmitter) Emit(Level, time.Time, string, ...any) {}

// SetEmitter installs the process-wide Emitter. Called once during
// hypervisor bring-up, after the UART proxy transport is available.
func SetEmitter(e Emitter) {
	mu.Lock()
	defer mu.Unlock()
	current.emitter.Store(&e)
}

// SetLevel adjusts the minimum level that will reach the Emitter.
func SetLevel(level Level) {
	current.level.Store(int32(level))
}

func emit(level Level, format string, args ...any) {
	if Level(current.level.Load()) > level {
		return
	}
	e := *current.emitter.Load()
	e.Emit(level, time.Now(), format, args...)
}

// Debugf logs at Debug level.
func Debugf(format string, args ...any) { emit(Debug, format, args...) }

// Infof logs at Info level.
func Infof(format string, args ...any) { emit(Info, format, args...) }

// Warningf logs at Warning level.
func Warningf(format string, args ...any) { emit(Warning, format, args...) }

// IsLogging returns whether the given level would currently reach the
// emitter, letting a caller skip building an expensive message.
func IsLogging(level Level) bool {
	return Level(current.level.Load()) <= level
}

// Sprint is a convenience wrapper used when constructing panic/invariant
// messages that should render the same whether or not logging is on.
func Sprint(format string, args ...any) string {
	return fmt.Sprintf(format, args...)
}
