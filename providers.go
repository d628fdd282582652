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
	"bytes"
	"crypto/md5"  // #nosec
	"crypto/sha1" // #nosec
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io/ioutil"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/pkg/errors"
)

// Store is the persistent storage of a ledger. Names are slash separated and
// relative to the root of the store.
type Store interface {
	MkdirAll(name string) error
	WriteFile(name string, data []byte) error
	ReadFile(name string) ([]byte, error)
	Exists(name string) (bool, error)
	// ReadDir returns the sorted entry names of a directory. Directory
	// entries carry a trailing slash.
	ReadDir(name string) ([]string, error)
}

// Digester computes hex encoded digests.
type Digester interface {
	Name() string
	Digest(data []byte) string
}

type hashDigester struct {
	name string
	new  func() hash.Hash
}

func (d hashDigester) Name() string { return d.name }

func (d hashDigester) Digest(data []byte) string {
	h := d.new()
	_, _ = h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SHA256 is the default digester.
var SHA256 Digester = hashDigester{name: "SHA-256", new: sha256.New} // nolint:gochecknoglobals

// NewDigester returns the digester for an algorithm name like "sha256",
// "SHA-1" or "md5".
func NewDigester(name string) (Digester, error) {
	switch strings.ToLower(strings.ReplaceAll(name, "-", "")) {
	case "sha256", "":
		return SHA256, nil
	case "sha1":
		return hashDigester{name: "SHA-1", new: sha1.New}, nil // #nosec
	case "md5":
		return hashDigester{name: "MD5", new: md5.New}, nil // #nosec
	}
	return nil, errors.Errorf("unknown digest algorithm %s", name)
}

// Compressor compresses artifact payloads. A compressor may fail, the ledger
// then stores the original bytes.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// GzipCompressor compresses with gzip.
type GzipCompressor struct {
	Level int
}

// NewGzipCompressor creates a GzipCompressor with the default level.
func NewGzipCompressor() *GzipCompressor {
	return &GzipCompressor{Level: gzip.DefaultCompression}
}

// Compress compresses data.
func (c *GzipCompressor) Compress(data []byte) ([]byte, error) {
	buf := &bytes.Buffer{}
	w, err := gzip.NewWriterLevel(buf, c.Level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress decompresses data.
func (c *GzipCompressor) Decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return ioutil.ReadAll(r)
}
