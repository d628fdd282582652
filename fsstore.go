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

package fieldstore

import (
	"os"
	"path"
	"sort"

	"github.com/spf13/afero"
)

// FSStore stores a ledger on an afero file system.
type FSStore struct {
	fs afero.Fs
}

// NewFSStore wraps an afero file system.
func NewFSStore(fs afero.Fs) *FSStore {
	return &FSStore{fs: fs}
}

// NewDirStore stores a ledger below dir on the local file system.
func NewDirStore(dir string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return NewFSStore(afero.NewBasePathFs(afero.NewOsFs(), dir)), nil
}

// Fs returns the underlying file system.
func (s *FSStore) Fs() afero.Fs {
	return s.fs
}

// MkdirAll creates a directory and all parents.
func (s *FSStore) MkdirAll(name string) error {
	return s.fs.MkdirAll(clean(name), 0755)
}

// WriteFile writes data to name. Parent directories are created.
func (s *FSStore) WriteFile(name string, data []byte) error {
	name = clean(name)
	if err := s.fs.MkdirAll(path.Dir(name), 0755); err != nil {
		return err
	}
	return afero.WriteFile(s.fs, name, data, 0644)
}

// ReadFile reads the content of name.
func (s *FSStore) ReadFile(name string) ([]byte, error) {
	return afero.ReadFile(s.fs, clean(name))
}

// Exists checks if name exists.
func (s *FSStore) Exists(name string) (bool, error) {
	return afero.Exists(s.fs, clean(name))
}

// ReadDir lists a directory.
func (s *FSStore) ReadDir(name string) ([]string, error) {
	infos, err := afero.ReadDir(s.fs, clean(name))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() {
			names = append(names, info.Name()+"/")
		} else {
			names = append(names, info.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func clean(name string) string {
	return path.Join("/", name)
}
