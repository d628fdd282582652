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
	"encoding/json"
	"fmt"
	"log"
	"path"
	"time"

	"github.com/pkg/errors"
)

// ArtifactType selects the folder an artifact is stored in.
type ArtifactType string

// Artifact types.
const (
	TypeMemory      ArtifactType = "memory"
	TypeRegistry    ArtifactType = "registry"
	TypeLogs        ArtifactType = "logs"
	TypeNetwork     ArtifactType = "network"
	TypeFilesystem  ArtifactType = "filesystem"
	TypePersistence ArtifactType = "persistence"
	TypeOther       ArtifactType = "other"
)

// ArtifactTypes lists all artifact types.
var ArtifactTypes = []ArtifactType{ // nolint:gochecknoglobals
	TypeMemory, TypeRegistry, TypeLogs, TypeNetwork, TypeFilesystem, TypePersistence, TypeOther,
}

// ParseArtifactType maps a name to an ArtifactType. Unknown names map to
// TypeOther.
func ParseArtifactType(s string) ArtifactType {
	for _, t := range ArtifactTypes {
		if string(t) == s {
			return t
		}
	}
	return TypeOther
}

// ArtifactMetadata describes a stored artifact. Digest and OriginalSize
// always refer to the original bytes, Size to the stored bytes.
type ArtifactMetadata struct {
	ID               string       `json:"id"`
	Type             ArtifactType `json:"type"`
	Filename         string       `json:"filename"`
	Path             string       `json:"path"`
	Size             int64        `json:"size"`
	OriginalSize     int64        `json:"original_size"`
	Digest           string       `json:"digest"`
	DigestAlgorithm  string       `json:"digest_algorithm"`
	CollectedAt      time.Time    `json:"collected_at" structs:",omitnested"`
	CollectionMethod string       `json:"collection_method,omitempty"`
	SourcePath       string       `json:"source_path,omitempty"`
	Module           string       `json:"module,omitempty"`
	Compressed       bool         `json:"compressed"`
	Verified         bool         `json:"verified"`
	Error            string       `json:"error,omitempty"`
}

// Artifact is the input of Ingest.
type Artifact struct {
	Type     ArtifactType
	Filename string
	Data     []byte
	Compress bool

	Method     string
	SourcePath string
	Module     string
}

// CompressedSuffix is appended to the storage path of compressed artifacts.
const CompressedSuffix = ".compressed"

// AddArtifact stores data and returns the new artifact id. It returns the
// empty string if the container is not open, is sealed or the store
// rejects the write.
func (l *Ledger) AddArtifact(typ ArtifactType, filename string, data []byte, compress bool) string {
	id, err := l.Ingest(Artifact{Type: typ, Filename: filename, Data: data, Compress: compress})
	if err != nil {
		log.Printf("ledger: could not add %s: %s", filename, err)
		return ""
	}
	return id
}

// Ingest stores an artifact. The digest is computed over the original bytes.
// Compressed bytes are stored if requested, the artifact is larger than the
// compression threshold and compression saves enough space.
func (l *Ledger) Ingest(a Artifact) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.writable(); err != nil {
		return "", err
	}

	l.nextArtifact++
	id := fmt.Sprintf("artifact_%03d", l.nextArtifact)

	filename := path.Base(path.Clean("/" + a.Filename))
	if filename == "/" || filename == "." {
		filename = id + ".bin"
	}
	typ := ParseArtifactType(string(a.Type))

	digest := l.digester.Digest(a.Data)

	stored, compressed := a.Data, false
	if a.Compress && l.compressor != nil && len(a.Data) > l.minSize {
		out, err := l.compressor.Compress(a.Data)
		switch {
		case err != nil:
			log.Printf("ledger: compression of %s failed: %s", filename, err)
		case float64(len(out)) <= float64(len(a.Data))*(1-l.minReduction):
			stored, compressed = out, true
		}
	}

	suffix := ""
	if compressed {
		suffix = CompressedSuffix
	}
	dir := path.Join("artifacts", string(typ))
	name, err := uniqueName(l.store, path.Join(l.root, dir), filename, suffix)
	if err == nil {
		err = l.store.WriteFile(path.Join(l.root, dir, name), stored)
	}
	if err != nil {
		l.logAction(ActionArtifactAddFailed, fmt.Sprintf("%s: %s", filename, err), ResultFailed)
		return "", errors.Wrapf(err, "could not store %s", filename)
	}

	meta := ArtifactMetadata{
		ID:               id,
		Type:             typ,
		Filename:         filename,
		Path:             path.Join(dir, name),
		Size:             int64(len(stored)),
		OriginalSize:     int64(len(a.Data)),
		Digest:           digest,
		DigestAlgorithm:  l.digester.Name(),
		CollectedAt:      l.now(),
		CollectionMethod: a.Method,
		SourcePath:       a.SourcePath,
		Module:           a.Module,
		Compressed:       compressed,
	}
	if meta.CollectionMethod == "" {
		meta.CollectionMethod = "automated"
	}
	l.artifacts = append(l.artifacts, meta)
	l.writeMetadata(&l.artifacts[len(l.artifacts)-1])

	l.logAction(ActionArtifactAdded, fmt.Sprintf("%s: %s (%d bytes, %s %s)", id, meta.Path, meta.OriginalSize, meta.DigestAlgorithm, digest), ResultSuccess)
	return id, nil
}

// SetArtifactSource records where on the target an artifact came from and
// how it was collected.
func (l *Ledger) SetArtifactSource(id, sourcePath, method string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.writable(); err != nil {
		return err
	}
	a := l.artifact(id)
	if a == nil {
		return errors.Wrap(ErrUnknownArtifact, id)
	}
	a.SourcePath = sourcePath
	if method != "" {
		a.CollectionMethod = method
	}
	l.writeMetadata(a)
	l.logAction(ActionMetadataUpdated, fmt.Sprintf("%s: source %s, method %s", id, sourcePath, a.CollectionMethod), ResultSuccess)
	return nil
}

// ReadArtifact returns the original bytes of an artifact.
func (l *Ledger) ReadArtifact(id string) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	a := l.artifact(id)
	if a == nil {
		return nil, errors.Wrap(ErrUnknownArtifact, id)
	}
	return l.readArtifact(a)
}

func (l *Ledger) readArtifact(a *ArtifactMetadata) ([]byte, error) {
	data, err := l.store.ReadFile(path.Join(l.root, a.Path))
	if err != nil {
		return nil, err
	}
	if !a.Compressed {
		return data, nil
	}
	if l.compressor == nil {
		return nil, errors.New("no compressor configured")
	}
	return l.compressor.Decompress(data)
}

// VerifyArtifactIntegrity recomputes the digest of an artifact. A mismatch
// clears the verified flag and adds a validation error. A later successful
// check sets the flag again and clears the artifact error, the validation
// error stays recorded. The stored artifact is never changed.
func (l *Ledger) VerifyArtifactIntegrity(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	a := l.artifact(id)
	if a == nil {
		l.validationErrors = append(l.validationErrors, errors.Wrap(ErrUnknownArtifact, id).Error())
		return false
	}
	return l.verify(a)
}

// VerifyAllArtifacts verifies every artifact and reports whether all of them
// are intact.
func (l *Ledger) VerifyAllArtifacts() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.verifyAll()
}

func (l *Ledger) verifyAll() bool {
	ok := true
	for i := range l.artifacts {
		if !l.verify(&l.artifacts[i]) {
			ok = false
		}
	}
	return ok
}

func (l *Ledger) verify(a *ArtifactMetadata) bool {
	data, err := l.readArtifact(a)
	if err != nil {
		return l.flag(a, fmt.Sprintf("%s: could not read %s: %s", a.ID, a.Path, err))
	}
	if digest := l.digester.Digest(data); digest != a.Digest {
		return l.flag(a, fmt.Sprintf("%s: digest mismatch for %s (is %s, expected %s)", a.ID, a.Path, digest, a.Digest))
	}
	a.Verified = true
	a.Error = ""
	return true
}

func (l *Ledger) flag(a *ArtifactMetadata, msg string) bool {
	log.Printf("ledger: %s", msg)
	a.Verified = false
	a.Error = msg
	l.validationErrors = append(l.validationErrors, msg)
	return false
}

func (l *Ledger) artifact(id string) *ArtifactMetadata {
	for i := range l.artifacts {
		if l.artifacts[i].ID == id {
			return &l.artifacts[i]
		}
	}
	return nil
}

// writeMetadata stores metadata/<id>.json. Failures become validation errors.
func (l *Ledger) writeMetadata(a *ArtifactMetadata) {
	b, err := json.MarshalIndent(toMap(a), "", "  ")
	if err == nil {
		err = l.store.WriteFile(path.Join(l.root, "metadata", a.ID+".json"), b)
	}
	if err != nil {
		msg := fmt.Sprintf("%s: could not write metadata: %s", a.ID, err)
		log.Printf("ledger: %s", msg)
		l.validationErrors = append(l.validationErrors, msg)
	}
}
