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
	"time"

	"github.com/pkg/errors"
)

// ReadyModules refreshes the pending and ready states and returns the ids of
// all ready modules sorted by priority and id. A module is ready if it is not
// disabled, all its dependencies are completed (or it was forced) and no
// conflicting module is running.
func (m *Manager) ReadyModules() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.refresh()

	var ids []string
	for _, id := range m.order {
		if m.modules[id].Status == StatusReady {
			ids = append(ids, id)
		}
	}
	m.sortByPriority(ids)
	return ids
}

// IsReady reports whether id could be started now.
func (m *Manager) IsReady(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mod, ok := m.modules[id]
	return ok && m.blocker(mod) == ""
}

func (m *Manager) refresh() {
	for _, mod := range m.modules {
		if mod.Status != StatusPending && mod.Status != StatusReady {
			continue
		}
		if m.blocker(mod) == "" {
			mod.Status = StatusReady
		} else {
			mod.Status = StatusPending
		}
	}
}

// blocker returns why mod cannot be started or the empty string.
func (m *Manager) blocker(mod *Module) string {
	if mod.Status != StatusPending && mod.Status != StatusReady {
		return "status is " + mod.Status.String()
	}
	if !mod.Forced {
		for _, dep := range mod.Dependencies {
			d, ok := m.modules[dep]
			if !ok {
				return "unknown dependency " + dep
			}
			if d.Status != StatusCompleted {
				return "dependency " + dep + " is " + d.Status.String()
			}
		}
	}
	for _, other := range m.modules {
		if other.Status == StatusRunning && m.conflicting(mod.ID, other.ID) {
			return "conflicting module " + other.ID + " is running"
		}
	}
	return ""
}

// StartModule marks a ready module as running.
func (m *Manager) StartModule(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mod, err := m.get(id)
	if err != nil {
		return err
	}
	if reason := m.blocker(mod); reason != "" {
		return errors.Wrapf(ErrNotReady, "%s: %s", id, reason)
	}
	mod.Status = StatusRunning
	mod.StartedAt = m.now()
	mod.EndedAt = time.Time{}
	mod.Error = ""
	return nil
}

// CompleteModule finishes a running module as completed or, if success is
// false, as failed.
func (m *Manager) CompleteModule(id string, success bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mod, err := m.get(id)
	if err != nil {
		return err
	}
	if mod.Status != StatusRunning {
		return errors.Wrapf(ErrInvalidTransition, "%s: complete from %s", id, mod.Status)
	}
	mod.EndedAt = m.now()
	if success {
		mod.Status = StatusCompleted
	} else {
		mod.Status = StatusFailed
		mod.Error = "module reported failure"
	}
	return nil
}

// FailModule marks a module as failed. Dependent modules are not touched.
func (m *Manager) FailModule(id, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mod, err := m.get(id)
	if err != nil {
		return err
	}
	if mod.Status == StatusCompleted || mod.Status == StatusDisabled {
		return errors.Wrapf(ErrInvalidTransition, "%s: fail from %s", id, mod.Status)
	}
	mod.Status = StatusFailed
	mod.EndedAt = m.now()
	mod.Error = message
	return nil
}

// SkipModule marks a module as skipped, e.g. because a dependency failed.
func (m *Manager) SkipModule(id, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mod, err := m.get(id)
	if err != nil {
		return err
	}
	if mod.Status == StatusCompleted || mod.Status == StatusDisabled {
		return errors.Wrapf(ErrInvalidTransition, "%s: skip from %s", id, mod.Status)
	}
	mod.Status = StatusSkipped
	mod.EndedAt = m.now()
	mod.Error = reason
	return nil
}

// ForceModule lets a pending module become ready even if its dependencies
// are not completed. Conflicts are still respected.
func (m *Manager) ForceModule(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mod, err := m.get(id)
	if err != nil {
		return err
	}
	if mod.Status != StatusPending && mod.Status != StatusReady {
		return errors.Wrapf(ErrInvalidTransition, "%s: force from %s", id, mod.Status)
	}
	mod.Forced = true
	return nil
}

// ResetModuleStatus moves a module back to pending and clears its run
// bookkeeping. Disabled modules stay disabled.
func (m *Manager) ResetModuleStatus(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mod, err := m.get(id)
	if err != nil {
		return err
	}
	reset(mod)
	return nil
}

// ResetAllModules resets every module.
func (m *Manager) ResetAllModules() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, mod := range m.modules {
		reset(mod)
	}
}

func reset(mod *Module) {
	if mod.Status != StatusDisabled {
		mod.Status = StatusPending
	}
	mod.StartedAt = time.Time{}
	mod.EndedAt = time.Time{}
	mod.Error = ""
	mod.Forced = false
}

// Stats summarizes the execution state of all modules.
type Stats struct {
	Total     int
	Pending   int
	Running   int
	Completed int
	Failed    int
	Skipped   int
	Disabled  int
	// Runtime is the cumulative runtime of completed modules.
	Runtime time.Duration
}

// Progress returns the share of finished modules among all enabled modules
// in percent.
func (s Stats) Progress() float64 {
	enabled := s.Total - s.Disabled
	if enabled == 0 {
		return 100
	}
	return float64(s.Completed+s.Failed+s.Skipped) * 100 / float64(enabled)
}

// Stats returns the execution statistics.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Stats{Total: len(m.modules)}
	for _, mod := range m.modules {
		switch mod.Status {
		case StatusPending, StatusReady:
			s.Pending++
		case StatusRunning:
			s.Running++
		case StatusCompleted:
			s.Completed++
			s.Runtime += mod.Runtime()
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		case StatusDisabled:
			s.Disabled++
		}
	}
	return s
}
