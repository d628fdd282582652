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
	"bytes"
	"log"
	"os"
	"strings"
	"time"

	"github.com/imdario/mergo"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/forensicanalysis/fieldstore/scheduler"
)

// DefaultProfile is used when a profile file names no base profile.
const DefaultProfile = "standard"

// Override tunes a single module within a profile.
type Override struct {
	Priority string        `yaml:"priority,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
	Disabled bool          `yaml:"disabled,omitempty"`
}

// Profile selects and tunes the modules of a collection.
type Profile struct {
	Name        string              `yaml:"name"`
	Description string              `yaml:"description,omitempty"`
	OS          OS                  `yaml:"os,omitempty"`
	Timing      string              `yaml:"timing,omitempty"`
	Workers     int                 `yaml:"workers,omitempty"`
	Estimate    time.Duration       `yaml:"estimate,omitempty"`
	Modules     []string            `yaml:"modules,omitempty"`
	Overrides   map[string]Override `yaml:"overrides,omitempty"`
}

type entry struct {
	os      OS
	id      string
	timeout time.Duration
}

type builtinProfile struct {
	description string
	estimate    time.Duration
	entries     []entry
}

// builtinProfiles returns the module tables of the built-in profiles in
// collection order.
func builtinProfiles() map[string]builtinProfile {
	return map[string]builtinProfile{
		"quick": {"Fast triage collection", 3 * time.Minute, []entry{
			{OSWindows, "win_network", 30 * sec},
			{OSWindows, "win_memory", 60 * sec},
			{OSWindows, "win_prefetch", 60 * sec},
			{OSWindows, "win_services", 30 * sec},
			{OSLinux, "lnx_sysinfo", 30 * sec},
			{OSLinux, "lnx_netstat", 30 * sec},
			{OSLinux, "lnx_persistence", 60 * sec},
			{OSMacOS, "mac_sysinfo", 30 * sec},
			{OSMacOS, "mac_persistence", 60 * sec},
		}},
		"standard": {"Balanced collection", 7 * time.Minute, []entry{
			{OSWindows, "win_browser", 180 * sec},
			{OSWindows, "win_memory", 60 * sec},
			{OSWindows, "win_autoruns", 90 * sec},
			{OSWindows, "win_network", 90 * sec},
			{OSWindows, "win_eventlogs", 180 * sec},
			{OSWindows, "win_prefetch", 60 * sec},
			{OSWindows, "win_schtasks", 60 * sec},
			{OSWindows, "win_services", 60 * sec},
			{OSLinux, "lnx_shell_history", 60 * sec},
			{OSLinux, "lnx_browser", 120 * sec},
			{OSLinux, "lnx_sysinfo", 60 * sec},
			{OSLinux, "lnx_authlogs", 90 * sec},
			{OSLinux, "lnx_netstat", 60 * sec},
			{OSLinux, "lnx_kernel", 30 * sec},
			{OSLinux, "lnx_persistence", 120 * sec},
			{OSMacOS, "mac_browser", 120 * sec},
			{OSMacOS, "mac_sysinfo", 60 * sec},
			{OSMacOS, "mac_persistence", 120 * sec},
		}},
		"deep": {"Comprehensive collection", 25 * time.Minute, []entry{
			{OSWindows, "win_registry", 300 * sec},
			{OSWindows, "win_mft", 600 * sec},
			{OSWindows, "win_browser", 180 * sec},
			{OSWindows, "win_user_files", 240 * sec},
			{OSWindows, "win_eventlogs", 300 * sec},
			{OSWindows, "win_memory", 120 * sec},
			{OSWindows, "win_network", 90 * sec},
			{OSWindows, "win_prefetch", 60 * sec},
			{OSWindows, "win_autoruns", 120 * sec},
			{OSWindows, "win_schtasks", 90 * sec},
			{OSWindows, "win_services", 90 * sec},
			{OSWindows, "win_recycle", 120 * sec},
			{OSWindows, "win_shimcache", 60 * sec},
			{OSWindows, "win_amcache", 60 * sec},
			{OSWindows, "win_jumplists", 90 * sec},
			{OSWindows, "win_wmi", 90 * sec},
			{OSWindows, "win_usb", 60 * sec},
			{OSWindows, "win_powershell", 90 * sec},
			{OSLinux, "lnx_shell_history", 90 * sec},
			{OSLinux, "lnx_ssh", 90 * sec},
			{OSLinux, "lnx_users", 60 * sec},
			{OSLinux, "lnx_browser", 180 * sec},
			{OSLinux, "lnx_authlogs", 120 * sec},
			{OSLinux, "lnx_docker", 240 * sec},
			{OSLinux, "lnx_persistence", 180 * sec},
			{OSLinux, "lnx_netstat", 90 * sec},
			{OSLinux, "lnx_sysinfo", 90 * sec},
			{OSLinux, "lnx_kernel", 60 * sec},
			{OSLinux, "lnx_journal", 180 * sec},
			{OSLinux, "lnx_firewall", 60 * sec},
			{OSLinux, "lnx_cron", 90 * sec},
			{OSMacOS, "mac_logs", 300 * sec},
			{OSMacOS, "mac_fsevents", 180 * sec},
			{OSMacOS, "mac_browser", 180 * sec},
			{OSMacOS, "mac_spotlight", 240 * sec},
			{OSMacOS, "mac_users", 90 * sec},
			{OSMacOS, "mac_persistence", 180 * sec},
			{OSMacOS, "mac_sysinfo", 120 * sec},
			{OSMacOS, "mac_quarantine", 90 * sec},
			{OSMacOS, "mac_install", 90 * sec},
			{OSMacOS, "mac_keychain", 90 * sec},
		}},
	}
}

// Names returns the names of the built-in profiles.
func Names() []string {
	return []string{"quick", "standard", "deep"}
}

// BuiltinProfile returns a built-in profile for the target operating system.
// OSUnknown selects the modules of all operating systems.
func BuiltinProfile(name string, target OS) (*Profile, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	bp, ok := builtinProfiles()[name]
	if !ok {
		return nil, errors.Errorf("unknown profile %q", name)
	}
	p := &Profile{
		Name:        name,
		Description: bp.description,
		OS:          target,
		Timing:      Normal().Name,
		Workers:     1,
		Estimate:    bp.estimate,
		Overrides:   map[string]Override{},
	}
	for _, e := range bp.entries {
		if !e.os.matches(target) {
			continue
		}
		p.Modules = append(p.Modules, e.id)
		p.Overrides[e.id] = Override{Timeout: e.timeout}
	}
	return p, nil
}

// ParseProfileYAML decodes a profile document and merges it over the
// built-in profile it names. Overrides are merged per module. A document
// whose name is no built-in profile must list its modules.
func ParseProfileYAML(data []byte, target OS) (*Profile, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("profile is empty")
	}
	var user Profile
	if err := yaml.Unmarshal(data, &user); err != nil {
		return nil, errors.Wrap(err, "could not decode profile")
	}
	if user.OS != "" {
		o, err := ParseOS(string(user.OS))
		if err != nil {
			return nil, err
		}
		target = o
	}
	name := user.Name
	if name == "" {
		name = DefaultProfile
	}

	base, err := BuiltinProfile(name, target)
	if err != nil {
		if len(user.Modules) == 0 {
			return nil, err
		}
		base = &Profile{Name: name, OS: target, Workers: 1, Overrides: map[string]Override{}}
	}

	overrides := user.Overrides
	user.Overrides = nil
	user.OS = target
	if err := mergo.Merge(base, user, mergo.WithOverride); err != nil {
		return nil, errors.Wrap(err, "could not merge profile")
	}
	for id, o := range overrides {
		current := base.Overrides[id]
		if err := mergo.Merge(&current, o, mergo.WithOverride); err != nil {
			return nil, errors.Wrapf(err, "could not merge override %s", id)
		}
		base.Overrides[id] = current
	}
	return base, base.Validate()
}

// LoadProfile reads a profile file.
func LoadProfile(path string, target OS) (*Profile, error) {
	data, err := os.ReadFile(path) // #nosec
	if err != nil {
		return nil, err
	}
	p, err := ParseProfileYAML(data, target)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return p, nil
}

// Validate checks the profile settings.
func (p *Profile) Validate() error {
	if len(p.Modules) == 0 {
		return errors.Errorf("profile %s selects no modules", p.Name)
	}
	if _, err := ParseTiming(p.Timing); err != nil {
		return errors.Wrapf(err, "profile %s", p.Name)
	}
	if p.Workers < 0 {
		return errors.Errorf("profile %s: workers must not be negative", p.Name)
	}
	for id, o := range p.Overrides {
		if _, err := scheduler.ParsePriority(o.Priority); err != nil {
			return errors.Wrapf(err, "profile %s: module %s", p.Name, id)
		}
		if o.Timeout < 0 {
			return errors.Errorf("profile %s: module %s: timeout must not be negative", p.Name, id)
		}
	}
	return nil
}

// TimingPreset returns the timing preset of the profile.
func (p *Profile) TimingPreset() (Timing, error) {
	return ParseTiming(p.Timing)
}

// Apply registers the catalog modules of the profile's operating system
// with the overrides applied. It returns the module selection of the
// profile without disabled modules. Selected ids that are not in the
// catalog are returned as well and excluded by the planner.
func (p *Profile) Apply(c *Catalog, m *scheduler.Manager) ([]string, error) {
	for _, def := range c.ForOS(p.OS) {
		mod, err := def.ToModule()
		if err != nil {
			return nil, err
		}
		if o, ok := p.Overrides[mod.ID]; ok {
			if o.Priority != "" {
				mod.Priority, _ = scheduler.ParsePriority(o.Priority)
			}
			if o.Timeout > 0 {
				mod.Timeout = o.Timeout
			}
			if o.Disabled {
				mod.Status = scheduler.StatusDisabled
			}
		}
		if err := m.RegisterModule(mod); err != nil {
			return nil, err
		}
	}

	var selection []string
	for _, id := range p.Modules {
		if p.Overrides[id].Disabled {
			continue
		}
		selection = append(selection, id)
	}
	log.Printf("profile: %s selects %d modules for %s", p.Name, len(selection), p.OS)
	return selection, nil
}
