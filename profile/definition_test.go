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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forensicanalysis/fieldstore/scheduler"
)

const exampleCatalog = `
modules:
  - id: Host_Info
    priority: high
    command: [uname, -a]
    timeout: 30s
    estimate: 2s
  - id: users
    name: User accounts
    os: darwin
    artifact_type: persistence
    depends_on: [host_info, host_info]
    groups: [accounts]
`

func TestParseCatalogYAML(t *testing.T) {
	c, err := ParseCatalogYAML([]byte(exampleCatalog))
	require.NoError(t, err)
	require.Len(t, c.Modules, 2)

	host := c.Modules[0]
	assert.Equal(t, "host_info", host.ID)
	assert.Equal(t, "host_info", host.Name)
	assert.Equal(t, "high", host.Priority)
	assert.Equal(t, "other", host.ArtifactType)
	assert.Equal(t, "host_info.txt", host.Output)
	assert.Equal(t, OSUnknown, host.OS)
	assert.Equal(t, 30*time.Second, host.Timeout)
	assert.Equal(t, 2*time.Second, host.Estimate)

	users := c.Modules[1]
	assert.Equal(t, "User accounts", users.Name)
	assert.Equal(t, OSMacOS, users.OS)
	assert.Equal(t, "normal", users.Priority)
	assert.Equal(t, []string{"host_info"}, users.DependsOn)
	assert.Empty(t, users.Output)

	assert.Equal(t, []string{"host_info", "users"}, c.IDs())
	assert.Len(t, c.ForOS(OSLinux), 1)
	assert.Len(t, c.ForOS(OSMacOS), 2)
}

func TestParseCatalogYAMLErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", "  \n"},
		{"invalid yaml", "modules: [id: x"},
		{"missing id", "modules:\n  - name: x\n"},
		{"invalid id", "modules:\n  - id: 'a b'\n"},
		{"unknown priority", "modules:\n  - id: a\n    priority: urgent\n"},
		{"unknown artifact type", "modules:\n  - id: a\n    artifact_type: photos\n"},
		{"unknown os", "modules:\n  - id: a\n    os: plan9\n"},
		{"negative timeout", "modules:\n  - id: a\n    timeout: -1s\n"},
		{"self dependency", "modules:\n  - id: a\n    depends_on: [A]\n"},
		{"self conflict", "modules:\n  - id: a\n    conflicts: [a]\n"},
		{"output without command", "modules:\n  - id: a\n    output: a.txt\n"},
		{"negative retries", "modules:\n  - id: a\n    command: [sh]\n    retries: -1\n"},
		{"retries without command", "modules:\n  - id: a\n    retries: 2\n"},
		{"duplicate", "modules:\n  - id: a\n  - id: A\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalogYAML([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestLoadCatalogDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0600))
	}
	write("10_base.yml", "modules:\n  - id: a\n  - id: b\n    depends_on: [a]\n")
	write("20_local.yaml", "modules:\n  - id: b\n    priority: critical\n  - id: c\n")
	write("notes.txt", "not a catalog")

	c, err := LoadCatalog(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, c.IDs())
	b, ok := c.Get("b")
	require.True(t, ok)
	assert.Equal(t, "critical", b.Priority)
	assert.Empty(t, b.DependsOn)

	c, err = LoadCatalog(filepath.Join(dir, "10_base.yml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, c.IDs())

	c, err = LoadCatalog(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Empty(t, c.Modules)

	write("30_broken.yml", "modules:\n  - id: ''\n")
	_, err = LoadCatalogDir(dir)
	assert.Error(t, err)
}

func TestToModule(t *testing.T) {
	def := ModuleDefinition{
		ID:            "Mem",
		Priority:      "critical",
		DependsOn:     []string{"sys"},
		Conflicts:     []string{"disk"},
		RequiresAdmin: true,
		Timeout:       time.Minute,
		Estimate:      10 * time.Second,
		Produces:      []string{"mem.raw"},
	}
	mod, err := def.ToModule()
	require.NoError(t, err)
	assert.Equal(t, scheduler.Module{
		ID:                "mem",
		Name:              "mem",
		Priority:          scheduler.PriorityCritical,
		Dependencies:      []string{"sys"},
		Conflicts:         []string{"disk"},
		ProducedFiles:     []string{"mem.raw"},
		RequiresAdmin:     true,
		Timeout:           time.Minute,
		EstimatedDuration: 10 * time.Second,
	}, mod)

	_, err = ModuleDefinition{ID: "x", Priority: "soon"}.ToModule()
	assert.Error(t, err)
}

func TestBuiltinCatalog(t *testing.T) {
	c := Builtin()
	seen := map[string]bool{}
	for _, def := range c.Modules {
		assert.NoError(t, def.Validate(), def.ID)
		assert.False(t, seen[def.ID], def.ID)
		seen[def.ID] = true
		assert.NotEqual(t, OSUnknown, def.OS, def.ID)
	}

	m := scheduler.New()
	require.NoError(t, c.Register(m))
	assert.False(t, m.HasCyclicDependencies())
	assert.Empty(t, m.Validate())

	plan, err := m.CreateExecutionPlan()
	require.NoError(t, err)
	assert.Equal(t, len(c.Modules), plan.Len())
	assert.NoError(t, m.ValidateExecutionPlan(plan))
}

func TestParseOS(t *testing.T) {
	tests := []struct {
		in      string
		want    OS
		wantErr bool
	}{
		{"", OSUnknown, false},
		{"Windows", OSWindows, false},
		{"darwin", OSMacOS, false},
		{"linux", OSLinux, false},
		{"all", OSUnknown, false},
		{"plan9", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOS(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
