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

package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Priority is the execution tier of a module. Lower values run first.
type Priority int

// Priority tiers.
const (
	PriorityCritical Priority = iota + 1
	PriorityHigh
	PriorityNormal
	PriorityLow
	PriorityAnalysis
)

var priorityNames = map[Priority]string{ // nolint:gochecknoglobals
	PriorityCritical: "critical",
	PriorityHigh:     "high",
	PriorityNormal:   "normal",
	PriorityLow:      "low",
	PriorityAnalysis: "analysis",
}

func (p Priority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

// ParsePriority parses a priority tier name. The empty string yields
// PriorityNormal.
func ParsePriority(s string) (Priority, error) {
	if s == "" {
		return PriorityNormal, nil
	}
	for p, name := range priorityNames {
		if strings.EqualFold(name, s) {
			return p, nil
		}
	}
	return 0, errors.Errorf("unknown priority %q", s)
}

// Status is the runtime state of a module.
type Status int

// Module states.
const (
	StatusPending Status = iota
	StatusReady
	StatusRunning
	StatusCompleted
	StatusFailed
	StatusSkipped
	StatusDisabled
)

var statusNames = [...]string{"pending", "ready", "running", "completed", "failed", "skipped", "disabled"} // nolint:gochecknoglobals

func (s Status) String() string {
	if s >= 0 && int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Finished reports whether the status is terminal for the current run.
func (s Status) Finished() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusSkipped
}

// Module describes a unit of collection work.
type Module struct {
	ID          string
	Name        string
	Description string
	Priority    Priority
	Status      Status

	Dependencies []string
	Conflicts    []string
	Groups       []string

	RequiredFiles []string
	ProducedFiles []string

	RequiresAdmin   bool
	RequiresNetwork bool

	// Timeout is advisory. The scheduler records it, callers enforce it.
	Timeout           time.Duration
	EstimatedDuration time.Duration

	StartedAt time.Time
	EndedAt   time.Time
	Error     string

	// Forced modules ignore unmet dependencies when the ready set is computed.
	Forced bool
}

// Runtime returns the time between start and end of the module. A running
// module reports zero.
func (m Module) Runtime() time.Duration {
	if m.StartedAt.IsZero() || m.EndedAt.IsZero() {
		return 0
	}
	return m.EndedAt.Sub(m.StartedAt)
}

func (m Module) clone() Module {
	m.Dependencies = append([]string(nil), m.Dependencies...)
	m.Conflicts = append([]string(nil), m.Conflicts...)
	m.Groups = append([]string(nil), m.Groups...)
	m.RequiredFiles = append([]string(nil), m.RequiredFiles...)
	m.ProducedFiles = append([]string(nil), m.ProducedFiles...)
	return m
}

func contains(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}

func unique(list []string) []string {
	var out []string
	for _, e := range list {
		if e != "" && !contains(out, e) {
			out = append(out, e)
		}
	}
	return out
}

func remove(list []string, s string) []string {
	out := list[:0]
	for _, e := range list {
		if e != s {
			out = append(out, e)
		}
	}
	return out
}
