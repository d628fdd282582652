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
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_ReadyModules(t *testing.T) {
	m := diamond(t)
	assert.Equal(t, []string{"a"}, m.ReadyModules())

	mod, err := m.GetModule("a")
	require.NoError(t, err)
	assert.Equal(t, StatusReady, mod.Status)

	require.NoError(t, m.StartModule("a"))
	assert.Empty(t, m.ReadyModules())
	require.NoError(t, m.CompleteModule("a", true))
	assert.Equal(t, []string{"c", "b"}, m.ReadyModules())
}

func TestManager_FailedDependencyBlocks(t *testing.T) {
	m := newManager(t, Module{ID: "y"}, Module{ID: "x", Dependencies: []string{"y"}})

	require.NoError(t, m.StartModule("y"))
	require.NoError(t, m.FailModule("y", "boom"))

	for i := 0; i < 3; i++ {
		assert.NotContains(t, m.ReadyModules(), "x")
	}
	assert.Equal(t, ErrNotReady, errors.Cause(m.StartModule("x")))

	mod, err := m.GetModule("x")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, mod.Status)

	require.NoError(t, m.ForceModule("x"))
	assert.Equal(t, []string{"x"}, m.ReadyModules())
	require.NoError(t, m.StartModule("x"))
}

func TestManager_SkipBlockedDependent(t *testing.T) {
	m := newManager(t, Module{ID: "y"}, Module{ID: "x", Dependencies: []string{"y"}})
	require.NoError(t, m.FailModule("y", "cancelled"))
	require.NoError(t, m.SkipModule("x", "dependency y failed"))

	assert.Empty(t, m.ReadyModules())
	assert.Empty(t, m.RemainingModules())
	mod, err := m.GetModule("x")
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, mod.Status)
	assert.Equal(t, "dependency y failed", mod.Error)
}

func TestManager_Transitions(t *testing.T) {
	type step struct {
		op      string
		wantErr error
		want    Status
	}
	tests := []struct {
		name  string
		steps []step
	}{
		{"complete", []step{{"start", nil, StatusRunning}, {"complete", nil, StatusCompleted}}},
		{"complete unsuccessful", []step{{"start", nil, StatusRunning}, {"completeFailed", nil, StatusFailed}}},
		{"complete not running", []step{{"complete", ErrInvalidTransition, StatusPending}}},
		{"start twice", []step{{"start", nil, StatusRunning}, {"start", ErrNotReady, StatusRunning}}},
		{"fail running", []step{{"start", nil, StatusRunning}, {"fail", nil, StatusFailed}}},
		{"fail pending", []step{{"fail", nil, StatusFailed}}},
		{"fail completed", []step{{"start", nil, StatusRunning}, {"complete", nil, StatusCompleted}, {"fail", ErrInvalidTransition, StatusCompleted}}},
		{"skip completed", []step{{"start", nil, StatusRunning}, {"complete", nil, StatusCompleted}, {"skip", ErrInvalidTransition, StatusCompleted}}},
		{"skip running", []step{{"start", nil, StatusRunning}, {"skip", nil, StatusSkipped}}},
		{"reset", []step{{"start", nil, StatusRunning}, {"fail", nil, StatusFailed}, {"reset", nil, StatusPending}, {"start", nil, StatusRunning}}},
		{"disabled", []step{{"disable", nil, StatusDisabled}, {"start", ErrNotReady, StatusDisabled}, {"fail", ErrInvalidTransition, StatusDisabled}, {"reset", nil, StatusDisabled}, {"enable", nil, StatusPending}}},
		{"disable running", []step{{"start", nil, StatusRunning}, {"disable", ErrModuleRunning, StatusRunning}}},
		{"force running", []step{{"start", nil, StatusRunning}, {"force", ErrInvalidTransition, StatusRunning}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newManager(t, Module{ID: "a"})
			for _, s := range tt.steps {
				var err error
				switch s.op {
				case "start":
					err = m.StartModule("a")
				case "complete":
					err = m.CompleteModule("a", true)
				case "completeFailed":
					err = m.CompleteModule("a", false)
				case "fail":
					err = m.FailModule("a", "failed")
				case "skip":
					err = m.SkipModule("a", "skipped")
				case "reset":
					err = m.ResetModuleStatus("a")
				case "force":
					err = m.ForceModule("a")
				case "disable":
					err = m.DisableModule("a")
				case "enable":
					err = m.EnableModule("a")
				}
				if s.wantErr != nil {
					assert.Equal(t, s.wantErr, errors.Cause(err), s.op)
				} else {
					assert.NoError(t, err, s.op)
				}
				mod, err := m.GetModule("a")
				require.NoError(t, err)
				assert.Equal(t, s.want, mod.Status, s.op)
			}
		})
	}
}

func TestManager_Timestamps(t *testing.T) {
	m := newManager(t, Module{ID: "a"})
	now := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	require.NoError(t, m.StartModule("a"))
	now = now.Add(3 * time.Second)
	require.NoError(t, m.CompleteModule("a", true))

	mod, err := m.GetModule("a")
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, mod.Runtime())

	stats := m.Stats()
	assert.Equal(t, Stats{Total: 1, Completed: 1, Runtime: 3 * time.Second}, stats)
	assert.Equal(t, float64(100), stats.Progress())

	m.ResetAllModules()
	mod, err = m.GetModule("a")
	require.NoError(t, err)
	assert.True(t, mod.StartedAt.IsZero())
	assert.Equal(t, StatusPending, mod.Status)
}

func TestManager_Stats(t *testing.T) {
	m := newManager(t, Module{ID: "a"}, Module{ID: "b"}, Module{ID: "c"}, Module{ID: "d", Status: StatusDisabled}, Module{ID: "e"})
	require.NoError(t, m.StartModule("a"))
	require.NoError(t, m.FailModule("b", "x"))
	require.NoError(t, m.SkipModule("c", "y"))

	stats := m.Stats()
	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 1, stats.Running)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 1, stats.Disabled)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, float64(50), stats.Progress())
}

func TestManager_Groups(t *testing.T) {
	m := newManager(t, Module{ID: "a", Groups: []string{"memory"}}, Module{ID: "b"}, Module{ID: "c"})

	assert.Equal(t, ErrUnknownModule, errors.Cause(m.CreateGroup("net", "b", "x")))
	require.NoError(t, m.CreateGroup("net", "b", "c"))
	require.NoError(t, m.CreateGroup("memory", "b"))
	assert.Equal(t, []string{"memory", "net"}, m.Groups())

	members, err := m.Group("memory")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, members)

	_, err = m.Group("missing")
	assert.Equal(t, ErrUnknownGroup, errors.Cause(err))

	require.NoError(t, m.DisableGroup("net"))
	assert.Equal(t, []string{"a"}, m.ReadyModules())
	require.NoError(t, m.EnableGroup("net"))
	assert.Equal(t, []string{"a", "b", "c"}, m.ReadyModules())

	mod, err := m.GetModule("b")
	require.NoError(t, err)
	assert.Equal(t, []string{"net", "memory"}, mod.Groups)
}
