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
	"sort"

	"github.com/pkg/errors"
)

// CreateGroup creates or extends a named group of modules.
func (m *Manager) CreateGroup(name string, ids ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range ids {
		if _, err := m.get(id); err != nil {
			return err
		}
	}
	members := m.groups[name]
	for _, id := range ids {
		if !contains(members, id) {
			members = append(members, id)
			m.modules[id].Groups = append(m.modules[id].Groups, name)
		}
	}
	m.groups[name] = members
	return nil
}

// Group returns the module ids of a group.
func (m *Manager) Group(name string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	members, ok := m.groups[name]
	if !ok {
		return nil, errors.Wrap(ErrUnknownGroup, name)
	}
	return append([]string(nil), members...), nil
}

// Groups returns the sorted group names.
func (m *Manager) Groups() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.groups))
	for name := range m.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EnableGroup enables all modules of a group.
func (m *Manager) EnableGroup(name string) error {
	members, err := m.Group(name)
	if err != nil {
		return err
	}
	for _, id := range members {
		if err := m.EnableModule(id); err != nil {
			return err
		}
	}
	return nil
}

// DisableGroup disables all modules of a group. It stops at the first
// module that cannot be disabled.
func (m *Manager) DisableGroup(name string) error {
	members, err := m.Group(name)
	if err != nil {
		return err
	}
	for _, id := range members {
		if err := m.DisableModule(id); err != nil {
			return err
		}
	}
	return nil
}
