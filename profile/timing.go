// Copyright (c) 2020 Siemens AG
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
//
// Author(s): Jonas Plum

package profile

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Multiplier bounds.
const (
	MinMultiplier = 0.5
	MaxMultiplier = 2.0
)

// Timing holds the delays of a collection run. It is passed to every
// component that waits, there is no global timing state.
type Timing struct {
	Name string `yaml:"name"`

	CommandDelay   time.Duration `yaml:"command_delay"`
	PromptWait     time.Duration `yaml:"prompt_wait"`
	FileSmall      time.Duration `yaml:"file_small"`
	FileMedium     time.Duration `yaml:"file_medium"`
	FileLarge      time.Duration `yaml:"file_large"`
	SystemResponse time.Duration `yaml:"system_response"`
	MemoryDump     time.Duration `yaml:"memory_dump"`
	NetworkConnect time.Duration `yaml:"network_connect"`
	RetryBackoff   time.Duration `yaml:"retry_backoff"`
	ErrorRecovery  time.Duration `yaml:"error_recovery"`

	// Multiplier scales every delay. Zero means 1.
	Multiplier float64 `yaml:"multiplier"`
}

const ms = time.Millisecond

// Fast has minimal delays for known fast systems.
func Fast() Timing {
	return Timing{
		Name:           "fast",
		CommandDelay:   200 * ms,
		PromptWait:     1000 * ms,
		FileSmall:      300 * ms,
		FileMedium:     1000 * ms,
		FileLarge:      3000 * ms,
		SystemResponse: 200 * ms,
		MemoryDump:     8000 * ms,
		NetworkConnect: 1500 * ms,
		RetryBackoff:   1000 * ms,
		ErrorRecovery:  500 * ms,
		Multiplier:     1,
	}
}

// Normal is the default preset.
func Normal() Timing {
	return Timing{
		Name:           "normal",
		CommandDelay:   300 * ms,
		PromptWait:     1500 * ms,
		FileSmall:      500 * ms,
		FileMedium:     1500 * ms,
		FileLarge:      4000 * ms,
		SystemResponse: 350 * ms,
		MemoryDump:     12000 * ms,
		NetworkConnect: 2000 * ms,
		RetryBackoff:   1500 * ms,
		ErrorRecovery:  700 * ms,
		Multiplier:     1,
	}
}

// Safe has conservative delays for slow systems.
func Safe() Timing {
	return Timing{
		Name:           "safe",
		CommandDelay:   500 * ms,
		PromptWait:     2000 * ms,
		FileSmall:      1000 * ms,
		FileMedium:     2000 * ms,
		FileLarge:      5000 * ms,
		SystemResponse: 500 * ms,
		MemoryDump:     15000 * ms,
		NetworkConnect: 3000 * ms,
		RetryBackoff:   2000 * ms,
		ErrorRecovery:  1000 * ms,
		Multiplier:     1,
	}
}

// Immediate has no delays. It is meant for tests and dry runs.
func Immediate() Timing {
	return Timing{Name: "immediate", Multiplier: 1}
}

// ParseTiming returns the preset with the given name. The empty string
// yields Normal.
func ParseTiming(name string) (Timing, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "fast":
		return Fast(), nil
	case "", "normal":
		return Normal(), nil
	case "safe":
		return Safe(), nil
	case "immediate", "none":
		return Immediate(), nil
	}
	return Timing{}, errors.Errorf("unknown timing preset %q", name)
}

// Scale applies the multiplier to d.
func (t Timing) Scale(d time.Duration) time.Duration {
	if t.Multiplier == 0 {
		return d
	}
	return time.Duration(float64(d) * t.Multiplier)
}

// Delay returns the scaled delay for an operation name such as
// "file_large", "memory_dump" or "command".
func (t Timing) Delay(operation string) time.Duration {
	op := strings.ToLower(operation)
	var d time.Duration
	switch {
	case strings.Contains(op, "file"):
		switch {
		case strings.Contains(op, "large"):
			d = t.FileLarge
		case strings.Contains(op, "medium"):
			d = t.FileMedium
		default:
			d = t.FileSmall
		}
	case strings.Contains(op, "memory"), strings.Contains(op, "dump"):
		d = t.MemoryDump
	case strings.Contains(op, "command"):
		d = t.CommandDelay
	case strings.Contains(op, "prompt"):
		d = t.PromptWait
	case strings.Contains(op, "network"):
		d = t.NetworkConnect
	case strings.Contains(op, "retry"):
		d = t.RetryBackoff
	case strings.Contains(op, "error"):
		d = t.ErrorRecovery
	default:
		d = t.SystemResponse
	}
	return t.Scale(d)
}

// Adjust returns a copy tuned for a slow (x1.5) or fast (x0.8) system. The
// multiplier stays within MinMultiplier and MaxMultiplier.
func (t Timing) Adjust(slow bool) Timing {
	m := t.Multiplier
	if m == 0 {
		m = 1
	}
	if slow {
		m *= 1.5
	} else {
		m *= 0.8
	}
	if m < MinMultiplier {
		m = MinMultiplier
	}
	if m > MaxMultiplier {
		m = MaxMultiplier
	}
	t.Multiplier = m
	return t
}

// Observe adjusts the timing after an operation took the given time. It
// slows down if the operation took more than twice the expected delay and
// speeds up if it took less than half.
func (t Timing) Observe(operation string, took time.Duration) Timing {
	return t.ObserveRuntime(t.Delay(operation), took)
}

// ObserveRuntime is Observe for an operation expected to take expected.
func (t Timing) ObserveRuntime(expected, took time.Duration) Timing {
	switch {
	case expected <= 0:
		return t
	case took > 2*expected:
		return t.Adjust(true)
	case took < expected/2:
		return t.Adjust(false)
	}
	return t
}

// Wait blocks for the scaled delay d or until ctx is done.
func (t Timing) Wait(ctx context.Context, d time.Duration) error {
	return sleep(ctx, t.Scale(d))
}

// Pause blocks for the delay of an operation (see Delay) or until ctx is
// done.
func (t Timing) Pause(ctx context.Context, operation string) error {
	return sleep(ctx, t.Delay(operation))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
