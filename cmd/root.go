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

// Package cmd provides the cobra subcommands of the fieldstore command line
// tool.
package cmd

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/forensicanalysis/fieldstore"
	"github.com/forensicanalysis/fieldstore/profile"
	"github.com/forensicanalysis/fieldstore/scheduler"
	"github.com/forensicanalysis/fieldstore/sqlar"
)

// openStore opens a container directory or a SQLite archive holding a
// single container. It returns the store, the container root within the
// store and a teardown function.
func openStore(name string) (fieldstore.Store, string, func() error, error) {
	info, err := os.Stat(name)
	if err != nil {
		return nil, "", nil, err
	}
	if info.IsDir() {
		name = filepath.Clean(name)
		store, err := fieldstore.NewDirStore(filepath.Dir(name))
		if err != nil {
			return nil, "", nil, err
		}
		return store, filepath.Base(name), func() error { return nil }, nil
	}

	archive, err := sqlar.Open(name)
	if err != nil {
		return nil, "", nil, err
	}
	entries, err := archive.ReadDir("")
	if err != nil {
		_ = archive.Close()
		return nil, "", nil, err
	}
	var roots []string
	for _, entry := range entries {
		if strings.HasSuffix(entry, "/") {
			roots = append(roots, strings.TrimSuffix(entry, "/"))
		}
	}
	if len(roots) != 1 {
		_ = archive.Close()
		return nil, "", nil, errors.Errorf("%s: expected one container, found %d", name, len(roots))
	}
	return archive, roots[0], archive.Close, nil
}

// openContainer opens a finalized container read-only.
func openContainer(name string) (*fieldstore.Ledger, func() error, error) {
	store, root, teardown, err := openStore(name)
	if err != nil {
		return nil, nil, err
	}
	l, err := fieldstore.Open(store, root)
	if err != nil {
		_ = teardown()
		return nil, nil, err
	}
	return l, teardown, nil
}

func requireOneContainer(_ *cobra.Command, args []string) error {
	if len(args) != 1 {
		return errors.New("requires exactly one container")
	}
	for _, arg := range args {
		if _, err := os.Stat(arg); os.IsNotExist(err) {
			return errors.Wrap(os.ErrNotExist, arg)
		}
	}
	return nil
}

// selection holds the flags that select modules.
type selection struct {
	profile string
	os      string
	catalog string
	modules []string
}

func (s *selection) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.profile, "profile", profile.DefaultProfile, "built-in profile (quick, standard, deep) or profile file")
	cmd.Flags().StringVar(&s.os, "os", "", "target operating system (windows, linux, macos, unknown), default: current")
	cmd.Flags().StringVar(&s.catalog, "catalog", "", "additional module catalog file or directory")
	cmd.Flags().StringArrayVar(&s.modules, "module", nil, "collect only these modules (repeatable)")
}

// setup registers the modules and returns the manager, the selected
// modules, the profile and the catalog.
func (s *selection) setup() (*scheduler.Manager, []string, *profile.Profile, *profile.Catalog, error) {
	target := profile.CurrentOS()
	if s.os != "" {
		var err error
		if target, err = profile.ParseOS(s.os); err != nil {
			return nil, nil, nil, nil, err
		}
	}

	var p *profile.Profile
	var err error
	if _, statErr := os.Stat(s.profile); statErr == nil {
		p, err = profile.LoadProfile(s.profile, target)
	} else {
		p, err = profile.BuiltinProfile(s.profile, target)
	}
	if err != nil {
		return nil, nil, nil, nil, err
	}

	catalog := profile.Builtin()
	if s.catalog != "" {
		extra, err := profile.LoadCatalog(s.catalog)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		catalog.Merge(extra)
	}

	m := scheduler.New()
	selected, err := p.Apply(catalog, m)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if len(s.modules) > 0 {
		selected = s.modules
	}
	return m, selected, p, catalog, nil
}
