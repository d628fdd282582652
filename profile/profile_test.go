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

func TestBuiltinProfile(t *testing.T) {
	p, err := BuiltinProfile("Quick", OSLinux)
	require.NoError(t, err)
	assert.Equal(t, "quick", p.Name)
	assert.Equal(t, []string{"lnx_sysinfo", "lnx_netstat", "lnx_persistence"}, p.Modules)
	assert.Equal(t, Override{Timeout: 60 * time.Second}, p.Overrides["lnx_persistence"])
	assert.Equal(t, "normal", p.Timing)
	assert.Equal(t, 1, p.Workers)
	assert.NoError(t, p.Validate())

	all, err := BuiltinProfile("quick", OSUnknown)
	require.NoError(t, err)
	assert.Len(t, all.Modules, 9)

	_, err = BuiltinProfile("forensic", OSLinux)
	assert.Error(t, err)
}

func TestBuiltinProfilesUseCatalog(t *testing.T) {
	c := Builtin()
	for _, name := range Names() {
		for _, target := range []OS{OSWindows, OSLinux, OSMacOS} {
			p, err := BuiltinProfile(name, target)
			require.NoError(t, err)
			require.NotEmpty(t, p.Modules, "%s %s", name, target)
			for _, id := range p.Modules {
				def, ok := c.Get(id)
				if assert.True(t, ok, id) {
					assert.Equal(t, target, def.OS, id)
				}
			}
		}
	}
}

func TestParseProfileYAML(t *testing.T) {
	data := []byte(`
name: quick
timing: safe
workers: 3
overrides:
  lnx_sysinfo:
    priority: low
  lnx_netstat:
    disabled: true
  lnx_cron:
    timeout: 5s
`)
	p, err := ParseProfileYAML(data, OSLinux)
	require.NoError(t, err)
	assert.Equal(t, "quick", p.Name)
	assert.Equal(t, "safe", p.Timing)
	assert.Equal(t, 3, p.Workers)
	assert.Equal(t, OSLinux, p.OS)
	assert.Equal(t, []string{"lnx_sysinfo", "lnx_netstat", "lnx_persistence"}, p.Modules)
	assert.Equal(t, Override{Priority: "low", Timeout: 30 * time.Second}, p.Overrides["lnx_sysinfo"])
	assert.Equal(t, Override{Timeout: 30 * time.Second, Disabled: true}, p.Overrides["lnx_netstat"])
	assert.Equal(t, Override{Timeout: 5 * time.Second}, p.Overrides["lnx_cron"])

	timing, err := p.TimingPreset()
	require.NoError(t, err)
	assert.Equal(t, Safe(), timing)

	// the built-in table is not modified
	fresh, err := BuiltinProfile("quick", OSLinux)
	require.NoError(t, err)
	assert.Equal(t, Override{Timeout: 30 * time.Second}, fresh.Overrides["lnx_sysinfo"])
}

func TestParseProfileYAMLDefaults(t *testing.T) {
	p, err := ParseProfileYAML([]byte("os: macos\nmodules: [mac_users]\n"), OSLinux)
	require.NoError(t, err)
	assert.Equal(t, DefaultProfile, p.Name)
	assert.Equal(t, OSMacOS, p.OS)
	assert.Equal(t, []string{"mac_users"}, p.Modules)
	assert.Equal(t, Override{Timeout: 60 * time.Second}, p.Overrides["mac_sysinfo"])

	custom, err := ParseProfileYAML([]byte("name: mine\nmodules: [lnx_users]\n"), OSLinux)
	require.NoError(t, err)
	assert.Equal(t, "mine", custom.Name)
	assert.Equal(t, []string{"lnx_users"}, custom.Modules)
}

func TestParseProfileYAMLErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"invalid yaml", "name: [quick"},
		{"custom without modules", "name: mine\n"},
		{"unknown timing", "name: quick\ntiming: turbo\n"},
		{"negative workers", "name: quick\nworkers: -1\n"},
		{"unknown os", "os: beos\n"},
		{"invalid override", "overrides:\n  lnx_sysinfo:\n    priority: asap\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProfileYAML([]byte(tt.data), OSLinux)
			assert.Error(t, err)
		})
	}
}

func TestLoadProfile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "profile.yml")
	require.NoError(t, os.WriteFile(file, []byte("name: deep\ntiming: fast\n"), 0600))

	p, err := LoadProfile(file, OSWindows)
	require.NoError(t, err)
	assert.Equal(t, "fast", p.Timing)
	assert.Len(t, p.Modules, 18)

	_, err = LoadProfile(filepath.Join(t.TempDir(), "missing.yml"), OSWindows)
	assert.Error(t, err)
}

func TestApply(t *testing.T) {
	p, err := ParseProfileYAML([]byte(`
name: quick
overrides:
  lnx_sysinfo:
    priority: low
  lnx_netstat:
    disabled: true
`), OSLinux)
	require.NoError(t, err)

	m := scheduler.New()
	selection, err := p.Apply(Builtin(), m)
	require.NoError(t, err)
	assert.Equal(t, []string{"lnx_sysinfo", "lnx_persistence"}, selection)
	assert.Equal(t, len(Builtin().ForOS(OSLinux)), m.Len())

	sysinfo, err := m.GetModule("lnx_sysinfo")
	require.NoError(t, err)
	assert.Equal(t, scheduler.PriorityLow, sysinfo.Priority)
	assert.Equal(t, 30*time.Second, sysinfo.Timeout)

	netstat, err := m.GetModule("lnx_netstat")
	require.NoError(t, err)
	assert.Equal(t, scheduler.StatusDisabled, netstat.Status)

	plan, err := m.CreateExecutionPlanFor(selection)
	require.NoError(t, err)
	assert.Equal(t, []string{"lnx_cron"}, plan.Implied)
	assert.True(t, plan.Contains("lnx_persistence"))
	assert.False(t, plan.Contains("lnx_netstat"))
	assert.Less(t, plan.BatchOf("lnx_cron"), plan.BatchOf("lnx_persistence"))

	_, err = p.Apply(Builtin(), m)
	assert.ErrorIs(t, err, scheduler.ErrDuplicateModule)
}
