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

// Package sqlar stores files in a SQLite archive. The archive uses the
// sqlar table layout of the sqlite3 command line tool, so containers can be
// listed and extracted with "sqlite3 -A".
package sqlar

import (
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

const table = `CREATE TABLE IF NOT EXISTS sqlar(
  name TEXT PRIMARY KEY,  -- name of the file
  mode INT,               -- access permissions
  mtime INT,              -- last modification time
  sz INT,                 -- original file size
  data BLOB               -- content
);`

const (
	typeMask = 0170000
	dirMode  = 0040755
	fileMode = 0100644
)

// Entry describes an archive member.
type Entry struct {
	Name    string
	Mode    int64
	ModTime time.Time
	Size    int64
}

// IsDir reports whether the entry is a directory.
func (e Entry) IsDir() bool {
	return e.Mode&typeMask == dirMode&typeMask
}

// Store is a SQLite archive. It implements the storage interface of the
// evidence ledger. Stored data is never compressed by the archive itself.
type Store struct {
	mu   sync.Mutex
	conn *sqlite.Conn
	now  func() time.Time
}

// Open opens or creates the archive at url.
func Open(url string) (*Store, error) {
	conn, err := sqlite.OpenConn(url, 0)
	if err != nil {
		return nil, err
	}
	if err := sqlitex.ExecScript(conn, table); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &Store{conn: conn, now: time.Now}, nil
}

// Close closes the archive.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.Close()
}

// MkdirAll creates a directory entry for name and all its parents.
func (s *Store) MkdirAll(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mkdirAll(normalizeFilename(name))
}

func (s *Store) mkdirAll(name string) error {
	if name == "" || name == "." {
		return nil
	}
	all := ""
	for _, part := range strings.Split(name, "/") {
		all = path.Join(all, part)
		entry, err := s.stat(all)
		if err != nil {
			return err
		}
		if entry != nil {
			if !entry.IsDir() {
				return errors.Errorf("%s is not a directory", all)
			}
			continue
		}
		err = sqlitex.Exec(s.conn, `INSERT INTO sqlar (name, mode, mtime, sz, data) VALUES (?, ?, ?, 0, NULL)`,
			nil, all, dirMode, s.now().Unix())
		if err != nil {
			return errors.Wrapf(err, "failed to create %s", all)
		}
	}
	return nil
}

// WriteFile stores data as name. Parent directories are created.
func (s *Store) WriteFile(name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name = normalizeFilename(name)
	if name == "" {
		return errors.New("invalid file name")
	}
	if err := s.mkdirAll(path.Dir(name)); err != nil {
		return err
	}
	entry, err := s.stat(name)
	if err != nil {
		return err
	}
	if entry != nil && entry.IsDir() {
		return errors.Errorf("%s is a directory", name)
	}
	if data == nil {
		data = []byte{}
	}
	return sqlitex.Exec(s.conn, `INSERT OR REPLACE INTO sqlar (name, mode, mtime, sz, data) VALUES (?, ?, ?, ?, ?)`,
		nil, name, fileMode, s.now().Unix(), len(data), data)
}

// ReadFile returns the content of name.
func (s *Store) ReadFile(name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name = normalizeFilename(name)
	var data []byte
	found, dir := false, false
	err := sqlitex.Exec(s.conn, `SELECT mode, data FROM sqlar WHERE name = ?`, func(stmt *sqlite.Stmt) error {
		found = true
		dir = Entry{Mode: stmt.ColumnInt64(0)}.IsDir()
		data = make([]byte, stmt.ColumnLen(1))
		stmt.ColumnBytes(1, data)
		return nil
	}, name)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrNotExist}
	}
	if dir {
		return nil, errors.Errorf("%s is a directory", name)
	}
	return data, nil
}

// Exists checks if name exists.
func (s *Store) Exists(name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name = normalizeFilename(name)
	if name == "" {
		return true, nil
	}
	entry, err := s.stat(name)
	return entry != nil, err
}

// ReadDir returns the sorted names of the direct children of a directory.
// Directory names carry a trailing slash.
func (s *Store) ReadDir(name string) ([]string, error) {
	entries, err := s.children(name)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		rel := path.Base(e.Name)
		if e.IsDir() {
			rel += "/"
		}
		names = append(names, rel)
	}
	sort.Strings(names)
	return names, nil
}

// children returns the direct children of a directory sorted by name.
func (s *Store) children(name string) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name = normalizeFilename(name)
	prefix := ""
	if name != "" {
		entry, err := s.stat(name)
		if err != nil {
			return nil, err
		}
		if entry == nil || !entry.IsDir() {
			return nil, &os.PathError{Op: "readdir", Path: name, Err: os.ErrNotExist}
		}
		prefix = name + "/"
	}

	var entries []Entry
	err := s.entries(prefix, func(e Entry) {
		rel := e.Name[len(prefix):]
		if rel == "" || strings.Contains(rel, "/") {
			return
		}
		entries = append(entries, e)
	})
	return entries, err
}

// Stat returns the entry of name. The root is reported as a directory
// named ".".
func (s *Store) Stat(name string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name = normalizeFilename(name)
	if name == "" {
		return Entry{Name: ".", Mode: dirMode}, nil
	}
	entry, err := s.stat(name)
	if err != nil {
		return Entry{}, err
	}
	if entry == nil {
		return Entry{}, &os.PathError{Op: "stat", Path: name, Err: os.ErrNotExist}
	}
	return *entry, nil
}

// Entries returns all archive members sorted by name.
func (s *Store) Entries() ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entries []Entry
	err := s.entries("", func(e Entry) { entries = append(entries, e) })
	return entries, err
}

// FS returns the archive as a read-only fs.FS.
func (s *Store) FS() fs.FS {
	return afero.NewIOFS(s.Fs())
}

func (s *Store) entries(prefix string, fn func(Entry)) error {
	return sqlitex.Exec(s.conn, `SELECT name, mode, mtime, sz FROM sqlar WHERE substr(name, 1, length(?1)) = ?1 ORDER BY name`,
		func(stmt *sqlite.Stmt) error {
			fn(scan(stmt))
			return nil
		}, prefix)
}

func (s *Store) stat(name string) (*Entry, error) {
	var entry *Entry
	err := sqlitex.Exec(s.conn, `SELECT name, mode, mtime, sz FROM sqlar WHERE name = ?`, func(stmt *sqlite.Stmt) error {
		e := scan(stmt)
		entry = &e
		return nil
	}, name)
	return entry, err
}

func scan(stmt *sqlite.Stmt) Entry {
	return Entry{
		Name:    stmt.ColumnText(0),
		Mode:    stmt.ColumnInt64(1),
		ModTime: time.Unix(stmt.ColumnInt64(2), 0),
		Size:    stmt.ColumnInt64(3),
	}
}

// normalizeFilename converts names to the relative, slash separated form
// used by sqlar.
func normalizeFilename(name string) string {
	name = path.Clean("/" + strings.ReplaceAll(name, "\\", "/"))
	return strings.TrimPrefix(name, "/")
}
