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
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/forensicanalysis/fsdoublestar"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dummyStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.sqlar"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.WriteFile("/myfile1.txt", []byte(strings.Repeat("test", 1000))))
	require.NoError(t, store.MkdirAll("/dir/subdir"))
	require.NoError(t, store.WriteFile("/dir/subdir/myfile2.txt", []byte("test2")))
	require.NoError(t, store.WriteFile("empty.txt", nil))
	return store
}

func TestStore_ReadFile(t *testing.T) {
	store := dummyStore(t)

	tests := []struct {
		name    string
		want    []byte
		wantErr bool
	}{
		{"myfile1.txt", []byte(strings.Repeat("test", 1000)), false},
		{"/dir/subdir/myfile2.txt", []byte("test2"), false},
		{"dir/../myfile1.txt", []byte(strings.Repeat("test", 1000)), false},
		{"empty.txt", []byte{}, false},
		{"dir", nil, true},
		{"missing.txt", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ReadFile(tt.name)
			if (err != nil) != tt.wantErr {
				t.Errorf("ReadFile() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := store.ReadFile("missing.txt")
	assert.True(t, os.IsNotExist(err))
}

func TestStore_Exists(t *testing.T) {
	store := dummyStore(t)

	tests := []struct {
		name string
		want bool
	}{
		{"/", true},
		{"myfile1.txt", true},
		{"dir", true},
		{"/dir/subdir/", true},
		{"dir/subdir/myfile2.txt", true},
		{"dir/missing", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Exists(tt.name)
			require.NoError(t, err)
			if got != tt.want {
				t.Errorf("Exists() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestStore_ReadDir(t *testing.T) {
	store := dummyStore(t)

	tests := []struct {
		name    string
		want    []string
		wantErr bool
	}{
		{"/", []string{"dir/", "empty.txt", "myfile1.txt"}, false},
		{"dir", []string{"subdir/"}, false},
		{"dir/subdir", []string{"myfile2.txt"}, false},
		{"myfile1.txt", nil, true},
		{"missing", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.ReadDir(tt.name)
			if (err != nil) != tt.wantErr {
				t.Errorf("ReadDir() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStore_WriteFile(t *testing.T) {
	store := dummyStore(t)

	require.NoError(t, store.WriteFile("myfile1.txt", []byte("new")))
	got, err := store.ReadFile("myfile1.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), got)

	assert.Error(t, store.WriteFile("dir", []byte("x")))
	assert.Error(t, store.WriteFile("myfile1.txt/child", []byte("x")))
	assert.Error(t, store.MkdirAll("myfile1.txt/child"))
	assert.Error(t, store.WriteFile("/", []byte("x")))
}

func TestStore_Entries(t *testing.T) {
	store := dummyStore(t)

	entries, err := store.Entries()
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"dir", "dir/subdir", "dir/subdir/myfile2.txt", "empty.txt", "myfile1.txt"}, names)
	assert.True(t, entries[0].IsDir())
	assert.Equal(t, int64(5), entries[2].Size)
	assert.False(t, entries[2].IsDir())
}

func TestStore_FS(t *testing.T) {
	store := dummyStore(t)
	fsys := store.FS()

	info, err := fs.Stat(fsys, "dir/subdir")
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	info, err = fs.Stat(fsys, "myfile1.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(4000), info.Size())
	assert.Equal(t, "myfile1.txt", info.Name())

	entries, err := fs.ReadDir(fsys, ".")
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"dir", "empty.txt", "myfile1.txt"}, names)

	b, err := fs.ReadFile(fsys, "dir/subdir/myfile2.txt")
	require.NoError(t, err)
	assert.Equal(t, "test2", string(b))

	_, err = fs.Stat(fsys, "missing.txt")
	assert.ErrorIs(t, err, fs.ErrNotExist)

	matches, err := fsdoublestar.Glob(fsys, "**/*.txt")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"dir/subdir/myfile2.txt", "empty.txt", "myfile1.txt"}, matches)
}

func TestStore_Fs(t *testing.T) {
	store := dummyStore(t)
	afs := store.Fs()

	b, err := afero.ReadFile(afs, "/dir/subdir/myfile2.txt")
	require.NoError(t, err)
	assert.Equal(t, "test2", string(b))

	var walked []string
	err = afero.Walk(afs, "/", func(name string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		walked = append(walked, name)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"/", "/dir", "/dir/subdir", "/dir/subdir/myfile2.txt", "/empty.txt", "/myfile1.txt"}, walked)

	f, err := afs.Open("dir")
	require.NoError(t, err)
	first, err := f.Readdirnames(1)
	require.NoError(t, err)
	assert.Equal(t, []string{"subdir"}, first)
	_, err = f.Readdirnames(1)
	assert.Equal(t, io.EOF, err)
	_, err = f.Read(make([]byte, 1))
	assert.Error(t, err)
	require.NoError(t, f.Close())

	info, err := afs.Stat("dir/subdir/myfile2.txt")
	require.NoError(t, err)
	entry, ok := info.Sys().(Entry)
	require.True(t, ok)
	assert.Equal(t, "dir/subdir/myfile2.txt", entry.Name)

	assert.Error(t, afero.WriteFile(afs, "new.txt", []byte("x"), 0644))
	assert.Error(t, afs.Remove("myfile1.txt"))
	assert.Error(t, afs.MkdirAll("x/y", 0755))
	_, err = afs.Stat("missing.txt")
	assert.True(t, os.IsNotExist(err))
}

func TestStore_TopLevelFiles(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "test.sqlar"))
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.WriteFile("top.txt", []byte("x")))
	require.NoError(t, store.MkdirAll("."))

	entries, err := store.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "top.txt", entries[0].Name)

	names, err := store.ReadDir(".")
	require.NoError(t, err)
	assert.Equal(t, []string{"top.txt"}, names)
}

func TestStore_Reopen(t *testing.T) {
	name := filepath.Join(t.TempDir(), "test.sqlar")
	store, err := Open(name)
	require.NoError(t, err)
	require.NoError(t, store.WriteFile("a/b.txt", []byte("b")))
	require.NoError(t, store.Close())

	store, err = Open(name)
	require.NoError(t, err)
	defer store.Close()
	got, err := store.ReadFile("a/b.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), got)
}
