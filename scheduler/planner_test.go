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
	"math/rand"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func diamond(t *testing.T) *Manager {
	t.Helper()
	return newManager(t,
		Module{ID: "a", Priority: PriorityCritical, EstimatedDuration: 10 * time.Second},
		Module{ID: "b", Dependencies: []string{"a"}, EstimatedDuration: 5 * time.Second},
		Module{ID: "c", Priority: PriorityHigh, Dependencies: []string{"a"}, EstimatedDuration: 20 * time.Second},
		Module{ID: "d", Dependencies: []string{"b", "c"}, EstimatedDuration: time.Second},
	)
}

func TestManager_CreateExecutionPlan(t *testing.T) {
	tests := []struct {
		name        string
		modules     []Module
		conflicts   [][2]string
		wantBatches [][]string
		wantErr     error
	}{
		{
			"empty registry", nil, nil, nil, nil,
		},
		{
			"independent by priority",
			[]Module{{ID: "z", Priority: PriorityCritical}, {ID: "a", Priority: PriorityLow}, {ID: "m"}},
			nil,
			[][]string{{"z", "m", "a"}},
			nil,
		},
		{
			"conflict deferred",
			[]Module{{ID: "a", Priority: PriorityCritical}, {ID: "b"}, {ID: "c", Dependencies: []string{"b"}}},
			[][2]string{{"b", "a"}},
			[][]string{{"a"}, {"b"}, {"c"}},
			nil,
		},
		{
			"conflict with later wave",
			[]Module{{ID: "a"}, {ID: "b", Dependencies: []string{"a"}}, {ID: "c", Priority: PriorityLow}},
			[][2]string{{"c", "a"}},
			[][]string{{"a"}, {"b", "c"}},
			nil,
		},
		{
			"cycle",
			[]Module{{ID: "a", Dependencies: []string{"b"}}, {ID: "b"}},
			nil,
			nil,
			ErrCyclicDependencies,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newManager(t, tt.modules...)
			for _, c := range tt.conflicts {
				require.NoError(t, m.AddConflict(c[0], c[1]))
			}
			if tt.name == "cycle" {
				require.NoError(t, m.AddDependency("b", "a"))
			}

			plan, err := m.CreateExecutionPlan()
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				assert.Nil(t, plan)
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tt.wantBatches, plan.Batches); diff != "" {
				t.Errorf("CreateExecutionPlan() batches mismatch (-want +got):\n%s", diff)
			}
			assert.NoError(t, m.ValidateExecutionPlan(plan))
		})
	}
}

func TestManager_CreateExecutionPlanDiamond(t *testing.T) {
	m := diamond(t)

	plan, err := m.CreateExecutionPlan()
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"a"}, {"c", "b"}, {"d"}}, plan.Batches)
	assert.Equal(t, []string{"a", "c", "b", "d"}, plan.Order)
	assert.Equal(t, 36*time.Second, plan.EstimatedTotal)
	assert.Equal(t, 31*time.Second, plan.EstimatedWallTime)
	assert.Equal(t, 2, plan.BatchOf("d"))
	assert.Equal(t, -1, plan.BatchOf("x"))
	assert.True(t, plan.Contains("b"))
	assert.Contains(t, plan.Summary(), "4 modules in 3 batches")
}

func TestManager_CreateExecutionPlanFor(t *testing.T) {
	tests := []struct {
		name         string
		selected     []string
		wantOrder    []string
		wantImplied  []string
		wantExcluded map[string]string
	}{
		{"empty selection", nil, nil, nil, map[string]string{}},
		{"leaf", []string{"a"}, []string{"a"}, nil, map[string]string{}},
		{"closure", []string{"d"}, []string{"a", "c", "b", "d"}, []string{"a", "b", "c"}, map[string]string{}},
		{"duplicates", []string{"b", "b", "a"}, []string{"a", "b"}, nil, map[string]string{}},
		{"unknown", []string{"x", "a"}, []string{"a"}, nil, map[string]string{"x": "unknown module"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := diamond(t)
			plan, err := m.CreateExecutionPlanFor(tt.selected)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOrder, plan.Order)
			assert.Equal(t, tt.wantImplied, plan.Implied)
			assert.Equal(t, tt.wantExcluded, plan.Excluded)
		})
	}
}

func TestManager_CreateExecutionPlanExcludes(t *testing.T) {
	m := newManager(t,
		Module{ID: "a", Status: StatusDisabled},
		Module{ID: "b", Dependencies: []string{"a"}},
		Module{ID: "c", Dependencies: []string{"missing"}},
		Module{ID: "d", Dependencies: []string{"c"}},
		Module{ID: "e"},
	)

	plan, err := m.CreateExecutionPlan()
	require.NoError(t, err)

	assert.Equal(t, []string{"e"}, plan.Order)
	want := map[string]string{
		"a": "disabled",
		"b": "dependency a excluded",
		"c": "unknown dependency missing",
		"d": "dependency c excluded",
	}
	if diff := cmp.Diff(want, plan.Excluded); diff != "" {
		t.Errorf("Excluded mismatch (-want +got):\n%s", diff)
	}
}

func TestManager_CreateExecutionPlanRandom(t *testing.T) {
	rnd := rand.New(rand.NewSource(1)) // nolint:gosec
	for round := 0; round < 50; round++ {
		m := New()
		n := 5 + rnd.Intn(40)
		for i := 0; i < n; i++ {
			mod := Module{ID: fmt.Sprintf("m%02d", i), Priority: Priority(1 + rnd.Intn(5))}
			for j := 0; j < i; j++ {
				if rnd.Intn(6) == 0 {
					mod.Dependencies = append(mod.Dependencies, fmt.Sprintf("m%02d", j))
				}
			}
			require.NoError(t, m.RegisterModule(mod))
		}
		for i := 0; i < n/3; i++ {
			a, b := rnd.Intn(n), rnd.Intn(n)
			if a != b {
				require.NoError(t, m.AddConflict(fmt.Sprintf("m%02d", a), fmt.Sprintf("m%02d", b)))
			}
		}

		var selected []string
		for i := 0; i < n; i++ {
			if rnd.Intn(3) == 0 {
				selected = append(selected, fmt.Sprintf("m%02d", i))
			}
		}

		plan, err := m.CreateExecutionPlanFor(selected)
		require.NoError(t, err)
		require.NoError(t, m.ValidateExecutionPlan(plan))

		seen := map[string]int{}
		for _, id := range plan.Order {
			seen[id]++
		}
		for _, id := range selected {
			assert.Equal(t, 1, seen[id], "round %d: %s", round, id)
		}
		for _, id := range plan.Order {
			assert.Equal(t, 1, seen[id], "round %d: %s", round, id)
			deps, err := m.Dependencies(id)
			require.NoError(t, err)
			for _, dep := range deps {
				assert.Less(t, plan.BatchOf(dep), plan.BatchOf(id), "round %d: %s -> %s", round, id, dep)
			}
		}
	}
}

func TestManager_ValidateExecutionPlan(t *testing.T) {
	m := diamond(t)
	require.NoError(t, m.AddConflict("b", "c"))

	tests := []struct {
		name    string
		plan    *ExecutionPlan
		wantErr bool
	}{
		{"nil", nil, true},
		{"valid", &ExecutionPlan{Batches: [][]string{{"a"}, {"b"}, {"c"}, {"d"}}}, false},
		{"unknown", &ExecutionPlan{Batches: [][]string{{"x"}}}, true},
		{"twice", &ExecutionPlan{Batches: [][]string{{"a"}, {"a"}}}, true},
		{"dependency missing", &ExecutionPlan{Batches: [][]string{{"b"}}}, true},
		{"dependency same batch", &ExecutionPlan{Batches: [][]string{{"a", "b"}}}, true},
		{"conflict", &ExecutionPlan{Batches: [][]string{{"a"}, {"b", "c"}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := m.ValidateExecutionPlan(tt.plan)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateExecutionPlan() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				assert.Equal(t, ErrInvalidPlan, errors.Cause(err))
			}
		})
	}
}
