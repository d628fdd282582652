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
	"log"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Manager is the module registry. It also tracks module status during
// execution and computes execution plans.
type Manager struct {
	mu      sync.RWMutex
	modules map[string]*Module
	order   []string
	groups  map[string][]string
	now     func() time.Time
}

// New creates an empty Manager.
func New() *Manager {
	return &Manager{
		modules: map[string]*Module{},
		groups:  map[string][]string{},
		now:     time.Now,
	}
}

/* ################################
#   Registry
################################ */

// RegisterModule adds a module to the registry with status pending. A module
// registered with StatusDisabled stays disabled. Dependencies on ids that are
// not registered are accepted and reported by ValidationErrors.
func (m *Manager) RegisterModule(module Module) error {
	if module.ID == "" {
		return errors.New("module id must not be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.modules[module.ID]; ok {
		return errors.Wrap(ErrDuplicateModule, module.ID)
	}
	if contains(module.Dependencies, module.ID) {
		return errors.Wrap(ErrSelfDependency, module.ID)
	}
	if contains(module.Conflicts, module.ID) {
		return errors.Wrap(ErrSelfConflict, module.ID)
	}

	mod := module.clone()
	if mod.Name == "" {
		mod.Name = mod.ID
	}
	if mod.Priority == 0 {
		mod.Priority = PriorityNormal
	}
	mod.Dependencies = unique(mod.Dependencies)
	mod.Conflicts = unique(mod.Conflicts)
	mod.Groups = unique(mod.Groups)
	if mod.Status != StatusDisabled {
		mod.Status = StatusPending
	}
	mod.StartedAt, mod.EndedAt, mod.Error, mod.Forced = time.Time{}, time.Time{}, "", false

	m.modules[mod.ID] = &mod
	m.order = append(m.order, mod.ID)
	for _, group := range mod.Groups {
		if !contains(m.groups[group], mod.ID) {
			m.groups[group] = append(m.groups[group], mod.ID)
		}
	}
	return nil
}

// UnregisterModule removes a module. Running modules cannot be removed.
// References from other modules are kept and show up as validation errors.
func (m *Manager) UnregisterModule(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mod, ok := m.modules[id]
	if !ok {
		return errors.Wrap(ErrUnknownModule, id)
	}
	if mod.Status == StatusRunning {
		return errors.Wrap(ErrModuleRunning, id)
	}

	delete(m.modules, id)
	m.order = remove(m.order, id)
	for name, members := range m.groups {
		m.groups[name] = remove(members, id)
	}
	log.Printf("scheduler: unregistered module %s", id)
	return nil
}

// AddDependency records that id depends on dep. Cycles are not checked here.
func (m *Manager) AddDependency(id, dep string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mod, err := m.get(id)
	if err != nil {
		return err
	}
	if _, err := m.get(dep); err != nil {
		return err
	}
	if id == dep {
		return errors.Wrap(ErrSelfDependency, id)
	}
	if !contains(mod.Dependencies, dep) {
		mod.Dependencies = append(mod.Dependencies, dep)
	}
	return nil
}

// RemoveDependency removes the edge from id to dep if it exists.
func (m *Manager) RemoveDependency(id, dep string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mod, err := m.get(id)
	if err != nil {
		return err
	}
	mod.Dependencies = remove(mod.Dependencies, dep)
	return nil
}

// AddConflict declares that id and other must not run at the same time.
// Conflicts are symmetric: declaring it on one side is enough.
func (m *Manager) AddConflict(id, other string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mod, err := m.get(id)
	if err != nil {
		return err
	}
	if _, err := m.get(other); err != nil {
		return err
	}
	if id == other {
		return errors.Wrap(ErrSelfConflict, id)
	}
	if !contains(mod.Conflicts, other) {
		mod.Conflicts = append(mod.Conflicts, other)
	}
	return nil
}

// GetModule returns a copy of the module.
func (m *Manager) GetModule(id string) (Module, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mod, err := m.get(id)
	if err != nil {
		return Module{}, err
	}
	return mod.clone(), nil
}

// Modules returns copies of all modules in registration order.
func (m *Manager) Modules() []Module {
	m.mu.RLock()
	defer m.mu.RUnlock()

	modules := make([]Module, 0, len(m.order))
	for _, id := range m.order {
		modules = append(modules, m.modules[id].clone())
	}
	return modules
}

// Len returns the number of registered modules.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.modules)
}

// Dependencies returns the declared dependencies of id.
func (m *Manager) Dependencies(id string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	mod, err := m.get(id)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), mod.Dependencies...), nil
}

// Dependents returns the ids of all modules that directly depend on id, sorted.
func (m *Manager) Dependents(id string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dependents(id)
}

func (m *Manager) dependents(id string) []string {
	var ids []string
	for _, mod := range m.modules {
		if contains(mod.Dependencies, id) {
			ids = append(ids, mod.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

// ModulesByPriority returns the ids of all modules with the given priority
// in registration order.
func (m *Manager) ModulesByPriority(priority Priority) []string {
	return m.filter(func(mod *Module) bool { return mod.Priority == priority })
}

// ModulesByStatus returns the ids of all modules with the given status in
// registration order.
func (m *Manager) ModulesByStatus(status Status) []string {
	return m.filter(func(mod *Module) bool { return mod.Status == status })
}

// CompletedModules returns the ids of completed modules.
func (m *Manager) CompletedModules() []string { return m.ModulesByStatus(StatusCompleted) }

// FailedModules returns the ids of failed modules.
func (m *Manager) FailedModules() []string { return m.ModulesByStatus(StatusFailed) }

// CurrentModules returns the ids of running modules.
func (m *Manager) CurrentModules() []string { return m.ModulesByStatus(StatusRunning) }

// PendingModules returns the ids of modules that are pending or ready.
func (m *Manager) PendingModules() []string {
	return m.filter(func(mod *Module) bool {
		return mod.Status == StatusPending || mod.Status == StatusReady
	})
}

// RemainingModules returns the ids of modules that have not finished yet and
// are not disabled.
func (m *Manager) RemainingModules() []string {
	return m.filter(func(mod *Module) bool {
		return !mod.Status.Finished() && mod.Status != StatusDisabled
	})
}

func (m *Manager) filter(fn func(*Module) bool) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for _, id := range m.order {
		if fn(m.modules[id]) {
			ids = append(ids, id)
		}
	}
	return ids
}

// EnableModule moves a disabled module back to pending.
func (m *Manager) EnableModule(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mod, err := m.get(id)
	if err != nil {
		return err
	}
	if mod.Status == StatusDisabled {
		mod.Status = StatusPending
	}
	return nil
}

// DisableModule excludes a module from planning and from the ready set.
func (m *Manager) DisableModule(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mod, err := m.get(id)
	if err != nil {
		return err
	}
	if mod.Status == StatusRunning {
		return errors.Wrap(ErrModuleRunning, id)
	}
	mod.Status = StatusDisabled
	return nil
}

// SetModulePriority changes the priority tier of a module.
func (m *Manager) SetModulePriority(id string, priority Priority) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mod, err := m.get(id)
	if err != nil {
		return err
	}
	if _, ok := priorityNames[priority]; !ok {
		return errors.Errorf("invalid priority %d", priority)
	}
	mod.Priority = priority
	return nil
}

// SetModuleTimeout changes the advisory timeout of a module.
func (m *Manager) SetModuleTimeout(id string, timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mod, err := m.get(id)
	if err != nil {
		return err
	}
	mod.Timeout = timeout
	return nil
}

// ValidationErrors returns the problems of a single module: dependencies or
// conflicts on unknown ids and membership in a dependency cycle. Unknown
// module ids yield a single entry.
func (m *Manager) ValidationErrors(id string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.modules[id]; !ok {
		return []string{errors.Wrap(ErrUnknownModule, id).Error()}
	}
	return m.validate()[id]
}

// Validate returns the validation errors of all modules that have any.
func (m *Manager) Validate() map[string][]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.validate()
}

func (m *Manager) validate() map[string][]string {
	flaws := map[string][]string{}
	for _, id := range m.order {
		mod := m.modules[id]
		for _, dep := range mod.Dependencies {
			if _, ok := m.modules[dep]; !ok {
				flaws[id] = append(flaws[id], "unknown dependency "+dep)
			}
		}
		for _, other := range mod.Conflicts {
			if _, ok := m.modules[other]; !ok {
				flaws[id] = append(flaws[id], "unknown conflict "+other)
			}
		}
	}
	if cycle := m.findCycle(); cycle != nil {
		msg := "dependency cycle " + formatCycle(cycle)
		for _, id := range cycle[:len(cycle)-1] {
			flaws[id] = append(flaws[id], msg)
		}
	}
	return flaws
}

func (m *Manager) get(id string) (*Module, error) {
	mod, ok := m.modules[id]
	if !ok {
		return nil, errors.Wrap(ErrUnknownModule, id)
	}
	return mod, nil
}

// conflicting reports whether a and b declare a conflict in either direction.
func (m *Manager) conflicting(a, b string) bool {
	if ma, ok := m.modules[a]; ok && contains(ma.Conflicts, b) {
		return true
	}
	if mb, ok := m.modules[b]; ok && contains(mb.Conflicts, a) {
		return true
	}
	return false
}

func (m *Manager) sortedIDs() []string {
	ids := make([]string, 0, len(m.modules))
	for id := range m.modules {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
