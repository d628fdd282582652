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

package sqlar

import (
	"bytes"
	"io"
	"os"
	"path"
	"syscall"
	"time"

	"github.com/spf13/afero"
)

// Fs returns a read-only afero.Fs view of the archive. Files are read into
// memory when they are opened.
func (s *Store) Fs() afero.Fs {
	return &archiveFs{store: s}
}

type archiveFs struct {
	store *Store
}

func readOnly(op, name string) error {
	return &os.PathError{Op: op, Path: name, Err: syscall.EPERM}
}

func (a *archiveFs) Name() string {
	return "sqlar"
}

func (a *archiveFs) Create(name string) (afero.File, error) {
	return nil, readOnly("create", name)
}

func (a *archiveFs) Mkdir(name string, perm os.FileMode) error {
	return readOnly("mkdir", name)
}

func (a *archiveFs) MkdirAll(name string, perm os.FileMode) error {
	return readOnly("mkdir", name)
}

func (a *archiveFs) Remove(name string) error {
	return readOnly("remove", name)
}

func (a *archiveFs) RemoveAll(name string) error {
	return readOnly("remove", name)
}

func (a *archiveFs) Rename(oldname, newname string) error {
	return readOnly("rename", oldname)
}

func (a *archiveFs) Chmod(name string, mode os.FileMode) error {
	return readOnly("chmod", name)
}

func (a *archiveFs) Chown(name string, uid, gid int) error {
	return readOnly("chown", name)
}

func (a *archiveFs) Chtimes(name string, atime time.Time, mtime time.Time) error {
	return readOnly("chtimes", name)
}

func (a *archiveFs) Stat(name string) (os.FileInfo, error) {
	entry, err := a.store.Stat(name)
	if err != nil {
		return nil, err
	}
	return &fileInfo{entry: entry}, nil
}

func (a *archiveFs) Open(name string) (afero.File, error) {
	return a.OpenFile(name, os.O_RDONLY, 0)
}

func (a *archiveFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_APPEND) != 0 {
		return nil, readOnly("open", name)
	}
	entry, err := a.store.Stat(name)
	if err != nil {
		return nil, err
	}

	f := &file{name: name, info: &fileInfo{entry: entry}}
	if entry.IsDir() {
		children, err := a.store.children(name)
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			f.children = append(f.children, &fileInfo{entry: child})
		}
		return f, nil
	}

	data, err := a.store.ReadFile(name)
	if err != nil {
		return nil, err
	}
	f.reader = bytes.NewReader(data)
	return f, nil
}

// fileInfo describes an archive entry.
type fileInfo struct {
	entry Entry
}

func (i *fileInfo) Name() string {
	return path.Base(i.entry.Name)
}

func (i *fileInfo) Size() int64 {
	return i.entry.Size
}

func (i *fileInfo) Mode() os.FileMode {
	mode := os.FileMode(i.entry.Mode & 0777)
	if i.entry.IsDir() {
		mode |= os.ModeDir
	}
	return mode
}

func (i *fileInfo) ModTime() time.Time {
	return i.entry.ModTime
}

func (i *fileInfo) IsDir() bool {
	return i.entry.IsDir()
}

// Sys returns the archive Entry.
func (i *fileInfo) Sys() interface{} {
	return i.entry
}

// file is an opened archive entry. Directories list their children,
// regular files are read from memory.
type file struct {
	name     string
	info     *fileInfo
	reader   *bytes.Reader
	children []os.FileInfo
	read     int
}

func (f *file) Name() string {
	return f.name
}

func (f *file) Stat() (os.FileInfo, error) {
	return f.info, nil
}

func (f *file) Close() error {
	return nil
}

func (f *file) Sync() error {
	return nil
}

func (f *file) Read(p []byte) (int, error) {
	if f.reader == nil {
		return 0, &os.PathError{Op: "read", Path: f.name, Err: syscall.EISDIR}
	}
	return f.reader.Read(p)
}

func (f *file) ReadAt(p []byte, off int64) (int, error) {
	if f.reader == nil {
		return 0, &os.PathError{Op: "read", Path: f.name, Err: syscall.EISDIR}
	}
	return f.reader.ReadAt(p, off)
}

func (f *file) Seek(offset int64, whence int) (int64, error) {
	if f.reader == nil {
		return 0, &os.PathError{Op: "seek", Path: f.name, Err: syscall.EISDIR}
	}
	return f.reader.Seek(offset, whence)
}

// Readdir returns the next count children. A count <= 0 returns all
// remaining children.
func (f *file) Readdir(count int) ([]os.FileInfo, error) {
	if !f.info.IsDir() {
		return nil, &os.PathError{Op: "readdir", Path: f.name, Err: syscall.ENOTDIR}
	}
	rest := f.children[f.read:]
	if count <= 0 {
		f.read = len(f.children)
		return rest, nil
	}
	if len(rest) == 0 {
		return nil, io.EOF
	}
	if count < len(rest) {
		rest = rest[:count]
	}
	f.read += len(rest)
	return rest, nil
}

func (f *file) Readdirnames(n int) ([]string, error) {
	infos, err := f.Readdir(n)
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return names, err
}

func (f *file) Write(p []byte) (int, error) {
	return 0, readOnly("write", f.name)
}

func (f *file) WriteAt(p []byte, off int64) (int, error) {
	return 0, readOnly("write", f.name)
}

func (f *file) WriteString(s string) (int, error) {
	return 0, readOnly("write", f.name)
}

func (f *file) Truncate(size int64) error {
	return readOnly("truncate", f.name)
}
