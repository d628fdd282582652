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
	"strings"
)

// HasCyclicDependencies reports whether the dependency edges between
// registered modules contain a directed cycle.
func (m *Manager) HasCyclicDependencies() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findCycle() != nil
}

// FindCycle returns one dependency cycle as a path whose first and last
// element are equal, or nil if the graph is acyclic. The result is stable
// for a given registry.
func (m *Manager) FindCycle() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.findCycle()
}

// adjacency returns the sorted dependency edges between registered modules.
func (m *Manager) adjacency() map[string][]string {
	adj := make(map[string][]string, len(m.modules))
	for id, mod := range m.modules {
		var deps []string
		for _, dep := range mod.Dependencies {
			if _, ok := m.modules[dep]; ok {
				deps = append(deps, dep)
			}
		}
		sort.Strings(deps)
		adj[id] = deps
	}
	return adj
}

// findCycle runs a three-colour depth-first search with an explicit stack.
func (m *Manager) findCycle() []string {
	const (
		white = iota
		gray
		black
	)

	type frame struct {
		id   string
		next int
	}

	adj := m.adjacency()
	color := make(map[string]int, len(adj))

	for _, start := range m.sortedIDs() {
		if color[start] != white {
			continue
		}

		color[start] = gray
		stack := []frame{{id: start}}
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			deps := adj[top.id]
			if top.next == len(deps) {
				color[top.id] = black
				stack = stack[:len(stack)-1]
				continue
			}

			dep := deps[top.next]
			top.next++

			switch color[dep] {
			case white:
				color[dep] = gray
				stack = append(stack, frame{id: dep})
			case gray:
				var cycle []string
				for i := range stack {
					if stack[i].id == dep {
						for _, f := range stack[i:] {
							cycle = append(cycle, f.id)
						}
						break
					}
				}
				return append(cycle, dep)
			}
		}
	}
	return nil
}

func formatCycle(cycle []string) string {
	return strings.Join(cycle, " -> ")
}
