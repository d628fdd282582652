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
	"container/heap"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// ExecutionPlan is an immutable, batched execution order. A new plan must be
// created when the registry changes.
type ExecutionPlan struct {
	// Batches holds the waves of modules that may run together, each sorted
	// by priority and id.
	Batches [][]string
	// Order is the concatenation of all batches.
	Order []string
	// EstimatedTotal is the sum of all estimated durations.
	EstimatedTotal time.Duration
	// EstimatedWallTime sums the longest estimate of every batch.
	EstimatedWallTime time.Duration
	// Implied lists dependencies that were added to a selection.
	Implied []string
	// Excluded maps module ids that could not be planned to the reason.
	Excluded  map[string]string
	CreatedAt time.Time
}

// Len returns the number of planned modules.
func (p *ExecutionPlan) Len() int {
	return len(p.Order)
}

// Contains reports whether id is part of the plan.
func (p *ExecutionPlan) Contains(id string) bool {
	return p.BatchOf(id) >= 0
}

// BatchOf returns the batch index of id or -1.
func (p *ExecutionPlan) BatchOf(id string) int {
	for i, batch := range p.Batches {
		if contains(batch, id) {
			return i
		}
	}
	return -1
}

// Summary returns a short human readable description of the plan.
func (p *ExecutionPlan) Summary() string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "%d modules in %d batches, estimated %s (%s sequential)\n",
		len(p.Order), len(p.Batches), p.EstimatedWallTime, p.EstimatedTotal)
	for i, batch := range p.Batches {
		fmt.Fprintf(b, "  batch %d: %s\n", i+1, strings.Join(batch, ", "))
	}
	if len(p.Implied) > 0 {
		fmt.Fprintf(b, "  implied: %s\n", strings.Join(p.Implied, ", "))
	}
	ids := make([]string, 0, len(p.Excluded))
	for id := range p.Excluded {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(b, "  excluded %s: %s\n", id, p.Excluded[id])
	}
	return b.String()
}

// CreateExecutionPlan plans every registered module.
func (m *Manager) CreateExecutionPlan() (*ExecutionPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.plan(m.sortedIDs(), false)
}

// CreateExecutionPlanFor plans the selected modules and their transitive
// dependencies. An empty selection yields an empty plan.
func (m *Manager) CreateExecutionPlanFor(selected []string) (*ExecutionPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.plan(selected, true)
}

// nolint:gocyclo
func (m *Manager) plan(selected []string, closure bool) (*ExecutionPlan, error) {
	plan := &ExecutionPlan{Excluded: map[string]string{}, CreatedAt: m.now()}

	if cycle := m.findCycle(); cycle != nil {
		return nil, errors.Wrap(ErrCyclicDependencies, formatCycle(cycle))
	}

	// collect candidates
	candidates := map[string]bool{}
	var queue []string
	for _, id := range selected {
		if _, ok := m.modules[id]; !ok {
			plan.Excluded[id] = "unknown module"
			continue
		}
		if !candidates[id] {
			candidates[id] = true
			queue = append(queue, id)
		}
	}
	if closure {
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			for _, dep := range m.modules[id].Dependencies {
				if _, ok := m.modules[dep]; !ok || candidates[dep] {
					continue
				}
				candidates[dep] = true
				plan.Implied = append(plan.Implied, dep)
				queue = append(queue, dep)
			}
		}
		sort.Strings(plan.Implied)
	}

	// exclude disabled modules, unresolved dependencies and their dependents
	ids := make([]string, 0, len(candidates))
	for id := range candidates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		mod := m.modules[id]
		if mod.Status == StatusDisabled {
			plan.Excluded[id] = "disabled"
			continue
		}
		for _, dep := range mod.Dependencies {
			if _, ok := m.modules[dep]; !ok {
				plan.Excluded[id] = "unknown dependency " + dep
				break
			}
		}
	}
	for changed := true; changed; {
		changed = false
		for _, id := range ids {
			if _, ok := plan.Excluded[id]; ok {
				continue
			}
			for _, dep := range m.modules[id].Dependencies {
				if _, ok := plan.Excluded[dep]; ok {
					plan.Excluded[id] = "dependency " + dep + " excluded"
					changed = true
					break
				}
			}
		}
	}
	for id := range plan.Excluded {
		delete(candidates, id)
	}

	m.assignBatches(plan, candidates)

	for _, batch := range plan.Batches {
		var longest time.Duration
		for _, id := range batch {
			est := m.modules[id].EstimatedDuration
			plan.EstimatedTotal += est
			if est > longest {
				longest = est
			}
		}
		plan.EstimatedWallTime += longest
		plan.Order = append(plan.Order, batch...)
	}

	log.Printf("scheduler: planned %d modules in %d batches", len(plan.Order), len(plan.Batches))
	return plan, nil
}

// assignBatches runs Kahn's algorithm over the candidates. Available modules
// are taken by earliest possible wave, then priority, then id. Each module is
// placed in the first wave after all of its dependencies that holds none of
// its conflicts.
func (m *Manager) assignBatches(plan *ExecutionPlan, candidates map[string]bool) {
	indeg := map[string]int{}
	dependents := map[string][]string{}
	for id := range candidates {
		n := 0
		for _, dep := range m.modules[id].Dependencies {
			if candidates[dep] {
				n++
				dependents[dep] = append(dependents[dep], id)
			}
		}
		indeg[id] = n
	}

	wave := map[string]int{}
	available := &planHeap{}
	for id, n := range indeg {
		if n == 0 {
			heap.Push(available, planItem{id: id, wave: 0, priority: m.modules[id].Priority})
		}
	}

	for available.Len() > 0 {
		item := heap.Pop(available).(planItem)

		w := item.wave
		for w < len(plan.Batches) && m.conflictsWithBatch(item.id, plan.Batches[w]) {
			w++
		}
		for len(plan.Batches) <= w {
			plan.Batches = append(plan.Batches, nil)
		}
		plan.Batches[w] = append(plan.Batches[w], item.id)
		wave[item.id] = w

		for _, dependent := range dependents[item.id] {
			indeg[dependent]--
			if indeg[dependent] > 0 {
				continue
			}
			earliest := 0
			for _, dep := range m.modules[dependent].Dependencies {
				if candidates[dep] && wave[dep]+1 > earliest {
					earliest = wave[dep] + 1
				}
			}
			heap.Push(available, planItem{id: dependent, wave: earliest, priority: m.modules[dependent].Priority})
		}
	}

	for _, batch := range plan.Batches {
		m.sortByPriority(batch)
	}
}

func (m *Manager) conflictsWithBatch(id string, batch []string) bool {
	for _, other := range batch {
		if m.conflicting(id, other) {
			return true
		}
	}
	return false
}

func (m *Manager) sortByPriority(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		pi, pj := m.modules[ids[i]].Priority, m.modules[ids[j]].Priority
		if pi != pj {
			return pi < pj
		}
		return ids[i] < ids[j]
	})
}

// ValidateExecutionPlan checks a plan against the current registry: every
// module is known and planned once, dependencies run in earlier batches and
// no batch holds two conflicting modules.
func (m *Manager) ValidateExecutionPlan(plan *ExecutionPlan) error {
	if plan == nil {
		return errors.Wrap(ErrInvalidPlan, "no plan")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	batchOf := map[string]int{}
	for i, batch := range plan.Batches {
		for _, id := range batch {
			if _, ok := m.modules[id]; !ok {
				return errors.Wrapf(ErrInvalidPlan, "unknown module %s", id)
			}
			if _, ok := batchOf[id]; ok {
				return errors.Wrapf(ErrInvalidPlan, "module %s planned twice", id)
			}
			batchOf[id] = i
		}
	}

	for i, batch := range plan.Batches {
		for j, id := range batch {
			for _, dep := range m.modules[id].Dependencies {
				depBatch, ok := batchOf[dep]
				if !ok {
					if mod, known := m.modules[dep]; known && mod.Status == StatusCompleted {
						continue
					}
					return errors.Wrapf(ErrInvalidPlan, "dependency %s of %s is not planned", dep, id)
				}
				if depBatch >= i {
					return errors.Wrapf(ErrInvalidPlan, "dependency %s of %s is not in an earlier batch", dep, id)
				}
			}
			for _, other := range batch[j+1:] {
				if m.conflicting(id, other) {
					return errors.Wrapf(ErrInvalidPlan, "conflicting modules %s and %s share batch %d", id, other, i)
				}
			}
		}
	}
	return nil
}

type planItem struct {
	id       string
	wave     int
	priority Priority
}

type planHeap []planItem

func (h planHeap) Len() int { return len(h) }
func (h planHeap) Less(i, j int) bool {
	if h[i].wave != h[j].wave {
		return h[i].wave < h[j].wave
	}
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].id < h[j].id
}
func (h planHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *planHeap) Push(x any)   { *h = append(*h, x.(planItem)) }
func (h *planHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
