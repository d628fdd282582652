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

// Package spooled captures output in memory and moves it into a temporary
// file once it grows beyond a limit.
package spooled

import (
	"bytes"
	"io"
	"io/ioutil"
	"os"

	"github.com/pkg/errors"
)

// TemporaryFile is an io.Writer that spools to disk when it gets large.
type TemporaryFile struct {
	size       int64
	maxSize    int64
	dir        string
	buffer     *bytes.Buffer
	tempFile   *os.File
	rolledOver bool
}

// New creates a TemporaryFile that keeps up to maxSize bytes in memory. The
// returned function closes and removes it.
func New(maxSize int64) (*TemporaryFile, func() error) {
	return NewIn("", maxSize)
}

// NewIn is like New but creates temporary files in dir.
func NewIn(dir string, maxSize int64) (*TemporaryFile, func() error) {
	t := &TemporaryFile{buffer: &bytes.Buffer{}, maxSize: maxSize, dir: dir}
	return t, t.Close
}

func (t *TemporaryFile) Write(p []byte) (n int, err error) {
	t.size += int64(len(p))

	if !t.rolledOver && t.size > t.maxSize {
		if err := t.Rollover(); err != nil {
			return 0, err
		}
	}
	if t.rolledOver {
		return t.tempFile.Write(p)
	}
	return t.buffer.Write(p)
}

// Rollover moves the buffered content into a temporary file.
func (t *TemporaryFile) Rollover() (err error) {
	if t.rolledOver {
		return nil
	}
	t.tempFile, err = ioutil.TempFile(t.dir, "spool")
	if err != nil {
		return errors.Wrap(err, "could not create tmp file")
	}
	t.rolledOver = true
	if _, err = io.Copy(t.tempFile, t.buffer); err != nil {
		return errors.Wrap(err, "could not fill tmp file")
	}
	t.buffer.Reset()
	return nil
}

// RolledOver reports whether the content lives in a temporary file.
func (t *TemporaryFile) RolledOver() bool {
	return t.rolledOver
}

// Bytes returns everything written so far.
func (t *TemporaryFile) Bytes() ([]byte, error) {
	if !t.rolledOver {
		return append([]byte(nil), t.buffer.Bytes()...), nil
	}
	if _, err := t.tempFile.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	b, err := ioutil.ReadAll(t.tempFile)
	if err != nil {
		return nil, err
	}
	_, err = t.tempFile.Seek(0, io.SeekEnd)
	return b, err
}

// Size returns the number of bytes written.
func (t *TemporaryFile) Size() int64 {
	return t.size
}

// Close releases the buffer and removes the temporary file.
func (t *TemporaryFile) Close() error {
	if t.rolledOver {
		t.rolledOver = false
		if err := t.tempFile.Close(); err != nil {
			return err
		}
		return os.Remove(t.tempFile.Name())
	}
	t.buffer.Reset()
	return nil
}
