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

// Package profile provides module catalogs, collection profiles and
// timing presets. Catalogs are YAML documents that declare the modules a
// collection can run; profiles select and tune a subset of them.
package profile

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/forensicanalysis/fieldstore"
	"github.com/forensicanalysis/fieldstore/scheduler"
)

// OS is the operating system a module or profile targets.
type OS string

// Target operating systems. OSUnknown matches every module.
const (
	OSWindows OS = "windows"
	OSLinux   OS = "linux"
	OSMacOS   OS = "macos"
	OSUnknown OS = "unknown"
)

// ParseOS parses an operating system name. The empty string yields
// OSUnknown.
func ParseOS(s string) (OS, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "windows", "win":
		return OSWindows, nil
	case "linux", "lnx":
		return OSLinux, nil
	case "macos", "darwin", "mac":
		return OSMacOS, nil
	case "", "unknown", "all":
		return OSUnknown, nil
	}
	return "", errors.Errorf("unknown operating system %q", s)
}

// CurrentOS returns the operating system the binary runs on.
func CurrentOS() OS {
	o, err := ParseOS(runtime.GOOS)
	if err != nil {
		return OSUnknown
	}
	return o
}

func (o OS) matches(target OS) bool {
	return target == OSUnknown || target == "" || o == OSUnknown || o == "" || o == target
}

var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]*$`) // nolint:gochecknoglobals

// ModuleDefinition declares a collection module in a catalog.
type ModuleDefinition struct {
	ID              string        `yaml:"id"`
	Name            string        `yaml:"name,omitempty"`
	Description     string        `yaml:"description,omitempty"`
	OS              OS            `yaml:"os,omitempty"`
	Priority        string        `yaml:"priority,omitempty"`
	ArtifactType    string        `yaml:"artifact_type,omitempty"`
	DependsOn       []string      `yaml:"depends_on,omitempty"`
	Conflicts       []string      `yaml:"conflicts,omitempty"`
	Groups          []string      `yaml:"groups,omitempty"`
	Requires        []string      `yaml:"requires,omitempty"`
	Produces        []string      `yaml:"produces,omitempty"`
	RequiresAdmin   bool          `yaml:"requires_admin,omitempty"`
	RequiresNetwork bool          `yaml:"requires_network,omitempty"`
	Timeout         time.Duration `yaml:"timeout,omitempty"`
	Estimate        time.Duration `yaml:"estimate,omitempty"`

	// Command is run locally by the command strategy. Its standard output
	// is stored as the artifact named Output. A failing command is run up
	// to Retries more times.
	Command []string `yaml:"command,omitempty"`
	Output  string   `yaml:"output,omitempty"`
	Retries int      `yaml:"retries,omitempty"`
}

// Validate checks a single definition.
func (d ModuleDefinition) Validate() error {
	id := strings.TrimSpace(d.ID)
	if id == "" {
		return errors.New("module id must not be empty")
	}
	if !idPattern.MatchString(strings.ToLower(id)) {
		return errors.Errorf("module %s: invalid id", id)
	}
	if _, err := ParseOS(string(d.OS)); err != nil {
		return errors.Wrapf(err, "module %s", id)
	}
	if _, err := scheduler.ParsePriority(strings.TrimSpace(d.Priority)); err != nil {
		return errors.Wrapf(err, "module %s", id)
	}
	if d.ArtifactType != "" && !validArtifactType(d.ArtifactType) {
		return errors.Errorf("module %s: unknown artifact type %q", id, d.ArtifactType)
	}
	if d.Timeout < 0 || d.Estimate < 0 {
		return errors.Errorf("module %s: durations must not be negative", id)
	}
	for _, dep := range d.DependsOn {
		if strings.EqualFold(strings.TrimSpace(dep), id) {
			return errors.Wrap(scheduler.ErrSelfDependency, id)
		}
	}
	for _, other := range d.Conflicts {
		if strings.EqualFold(strings.TrimSpace(other), id) {
			return errors.Wrap(scheduler.ErrSelfConflict, id)
		}
	}
	if d.Output != "" && len(d.Command) == 0 {
		return errors.Errorf("module %s: output requires a command", id)
	}
	if d.Retries < 0 {
		return errors.Errorf("module %s: retries must not be negative", id)
	}
	if d.Retries > 0 && len(d.Command) == 0 {
		return errors.Errorf("module %s: retries require a command", id)
	}
	return nil
}

func validArtifactType(s string) bool {
	for _, t := range fieldstore.ArtifactTypes {
		if string(t) == s {
			return true
		}
	}
	return false
}

// Normalized returns a copy with trimmed ids and defaults applied.
func (d ModuleDefinition) Normalized() ModuleDefinition {
	out := d
	out.ID = strings.ToLower(strings.TrimSpace(d.ID))
	out.Name = strings.TrimSpace(d.Name)
	if out.Name == "" {
		out.Name = out.ID
	}
	out.Description = strings.TrimSpace(d.Description)
	out.OS, _ = ParseOS(string(d.OS))
	priority, _ := scheduler.ParsePriority(strings.TrimSpace(d.Priority))
	out.Priority = priority.String()
	if out.ArtifactType == "" {
		out.ArtifactType = string(fieldstore.TypeOther)
	}
	out.DependsOn = normalizeIDs(d.DependsOn)
	out.Conflicts = normalizeIDs(d.Conflicts)
	out.Groups = normalizeIDs(d.Groups)
	out.Requires = append([]string(nil), d.Requires...)
	out.Produces = append([]string(nil), d.Produces...)
	out.Command = append([]string(nil), d.Command...)
	if len(out.Command) > 0 && out.Output == "" {
		out.Output = out.ID + ".txt"
	}
	return out
}

func normalizeIDs(ids []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, id := range ids {
		id = strings.ToLower(strings.TrimSpace(id))
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// ToModule converts the definition into a scheduler module.
func (d ModuleDefinition) ToModule() (scheduler.Module, error) {
	if err := d.Validate(); err != nil {
		return scheduler.Module{}, err
	}
	n := d.Normalized()
	priority, _ := scheduler.ParsePriority(n.Priority)
	return scheduler.Module{
		ID:                n.ID,
		Name:              n.Name,
		Description:       n.Description,
		Priority:          priority,
		Dependencies:      n.DependsOn,
		Conflicts:         n.Conflicts,
		Groups:            n.Groups,
		RequiredFiles:     n.Requires,
		ProducedFiles:     n.Produces,
		RequiresAdmin:     n.RequiresAdmin,
		RequiresNetwork:   n.RequiresNetwork,
		Timeout:           n.Timeout,
		EstimatedDuration: n.Estimate,
	}, nil
}

// Catalog is an ordered set of module definitions.
type Catalog struct {
	Modules []ModuleDefinition `yaml:"modules"`
}

// ParseCatalogYAML decodes, validates and normalizes a catalog document.
func ParseCatalogYAML(data []byte) (*Catalog, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("catalog is empty")
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrap(err, "could not decode catalog")
	}
	seen := map[string]bool{}
	for i, def := range c.Modules {
		if err := def.Validate(); err != nil {
			return nil, err
		}
		c.Modules[i] = def.Normalized()
		if seen[c.Modules[i].ID] {
			return nil, errors.Wrap(scheduler.ErrDuplicateModule, c.Modules[i].ID)
		}
		seen[c.Modules[i].ID] = true
	}
	return &c, nil
}

// LoadCatalog reads a catalog file or every *.yaml and *.yml file of a
// directory.
func LoadCatalog(path string) (*Catalog, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Catalog{}, nil
		}
		return nil, err
	}
	if info.IsDir() {
		return LoadCatalogDir(path)
	}
	return LoadCatalogFile(path)
}

// LoadCatalogFile reads a single catalog file.
func LoadCatalogFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path) // #nosec
	if err != nil {
		return nil, err
	}
	c, err := ParseCatalogYAML(data)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return c, nil
}

// LoadCatalogDir merges all catalog files of a directory in lexical order.
// A missing directory yields an empty catalog.
func LoadCatalogDir(dir string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return &Catalog{}, nil
		}
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && isYAMLFile(entry.Name()) {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	catalog := &Catalog{}
	for _, name := range names {
		c, err := LoadCatalogFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		catalog.Merge(c)
	}
	return catalog, nil
}

func isYAMLFile(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml")
}

// Merge adds the definitions of other. Definitions with an existing id
// replace the current one in place.
func (c *Catalog) Merge(other *Catalog) {
	if other == nil {
		return
	}
	for _, def := range other.Modules {
		if i := c.index(def.ID); i >= 0 {
			c.Modules[i] = def
			continue
		}
		c.Modules = append(c.Modules, def)
	}
}

// Get returns the definition with the given id.
func (c *Catalog) Get(id string) (ModuleDefinition, bool) {
	if i := c.index(id); i >= 0 {
		return c.Modules[i], true
	}
	return ModuleDefinition{}, false
}

// IDs returns all module ids in catalog order.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.Modules))
	for _, def := range c.Modules {
		ids = append(ids, def.ID)
	}
	return ids
}

// ForOS returns the definitions that run on the given operating system.
func (c *Catalog) ForOS(target OS) []ModuleDefinition {
	var defs []ModuleDefinition
	for _, def := range c.Modules {
		if def.OS.matches(target) {
			defs = append(defs, def)
		}
	}
	return defs
}

// Register adds all modules of the catalog to the manager.
func (c *Catalog) Register(m *scheduler.Manager) error {
	for _, def := range c.Modules {
		mod, err := def.ToModule()
		if err != nil {
			return err
		}
		if err := m.RegisterModule(mod); err != nil {
			return err
		}
	}
	return nil
}

func (c *Catalog) index(id string) int {
	for i, def := range c.Modules {
		if def.ID == id {
			return i
		}
	}
	return -1
}
