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
	"encoding/json"
	"fmt"
	"log"
	"path"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/qri-io/jsonschema"
)

// Files written by Finalize into the container root.
const (
	ManifestFile       = "manifest.json"
	ChainOfCustodyFile = "chain_of_custody.json"
	HashesFile         = "hashes.sha256"
)

// HashesFileFor returns the name of the digest list for a digester, e.g.
// "hashes.md5".
func HashesFileFor(d Digester) string {
	return "hashes." + strings.ToLower(strings.ReplaceAll(d.Name(), "-", ""))
}

// Manifest is the case summary written on finalization.
type Manifest struct {
	CaseID           string            `json:"case_id"`
	Responder        string            `json:"responder"`
	ContainerVersion string            `json:"container_version"`
	SessionID        string            `json:"session_id,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	FinalizedAt      time.Time         `json:"finalized_at"`
	DurationMS       int64             `json:"duration_ms"`
	DigestAlgorithm  string            `json:"digest_algorithm"`
	Device           DeviceInfo        `json:"device"`
	Target           *TargetSystemInfo `json:"target,omitempty"`
	Statistics       Statistics        `json:"statistics"`
	Artifacts        []ArtifactSummary `json:"artifacts"`
}

// Statistics aggregates the artifacts of a container.
type Statistics struct {
	TotalArtifacts    int     `json:"total_artifacts"`
	TotalSize         int64   `json:"total_size"`
	CompressedSize    int64   `json:"compressed_size"`
	CompressionRatio  float64 `json:"compression_ratio"`
	VerifiedArtifacts int     `json:"verified_artifacts"`
	TotalActions      int     `json:"total_actions"`
}

// ArtifactSummary is the manifest entry of an artifact.
type ArtifactSummary struct {
	ID       string       `json:"id"`
	Type     ArtifactType `json:"type"`
	Filename string       `json:"filename"`
	Size     int64        `json:"size"`
	Digest   string       `json:"digest"`
	Verified bool         `json:"verified"`
}

// ChainOfCustody is the full, ordered record of a collection.
type ChainOfCustody struct {
	CaseID       string             `json:"case_id"`
	SessionID    string             `json:"session_id,omitempty"`
	Collector    Collector          `json:"collector"`
	TargetSystem *TargetSystemInfo  `json:"target_system,omitempty"`
	StartedAt    time.Time          `json:"started_at"`
	FinalizedAt  time.Time          `json:"finalized_at"`
	Actions      []CollectionAction `json:"actions"`
	Artifacts    []ArtifactMetadata `json:"artifacts"`
	Integrity    Integrity          `json:"integrity"`
}

// Collector identifies who collected the evidence.
type Collector struct {
	Responder string     `json:"responder"`
	Device    DeviceInfo `json:"device"`
}

// Integrity is the aggregate verdict of the final verification.
type Integrity struct {
	Verified           bool     `json:"verified"`
	ManifestDigest     string   `json:"manifest_digest"`
	TotalArtifacts     int      `json:"total_artifacts"`
	VerificationErrors []string `json:"verification_errors"`
}

// Finalize verifies every artifact, writes the manifest, the chain of
// custody and the digest list and seals the container. Verification
// failures do not prevent sealing, neither do export errors, which are
// returned. Calling Finalize on a sealed container does nothing.
func (l *Ledger) Finalize() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.sealed {
		return nil
	}
	if !l.open {
		return ErrContainerNotOpen
	}

	log.Printf("ledger: finalizing container %s", l.root)
	l.endedAt = l.now()

	result := ResultSuccess
	if !l.verifyAll() || len(l.validationErrors) > 0 {
		result = ResultWarnings
	}
	l.logAction(ActionContainerFinalized,
		fmt.Sprintf("%d artifacts, %d validation errors", len(l.artifacts), len(l.validationErrors)), result)

	var errs []string
	manifest, err := marshalDocument(manifestValidator, l.manifest())
	if err == nil {
		l.manifestDigest = l.digester.Digest(manifest)
		err = l.store.WriteFile(path.Join(l.root, ManifestFile), manifest)
	}
	if err != nil {
		errs = append(errs, errors.Wrap(err, ManifestFile).Error())
	}

	custody, err := marshalDocument(chainOfCustodyValidator, l.chainOfCustody())
	if err == nil {
		err = l.store.WriteFile(path.Join(l.root, ChainOfCustodyFile), custody)
	}
	if err != nil {
		errs = append(errs, errors.Wrap(err, ChainOfCustodyFile).Error())
	}

	hashesFile := HashesFileFor(l.digester)
	if err := l.store.WriteFile(path.Join(l.root, hashesFile), l.hashes()); err != nil {
		errs = append(errs, errors.Wrap(err, hashesFile).Error())
	}

	l.sealed = true
	l.open = false

	if len(errs) > 0 {
		return errors.Errorf("container sealed with export errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Manifest returns the case manifest.
func (l *Ledger) Manifest() Manifest {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.manifest()
}

func (l *Ledger) manifest() Manifest {
	m := Manifest{
		CaseID:           l.caseID,
		Responder:        l.responder,
		ContainerVersion: ContainerVersion,
		SessionID:        l.sessionID,
		CreatedAt:        l.startedAt,
		FinalizedAt:      l.endedAt,
		DurationMS:       l.duration().Milliseconds(),
		DigestAlgorithm:  l.digester.Name(),
		Device:           l.device,
		Target:           l.targetCopy(),
		Statistics:       l.statistics(),
		Artifacts:        make([]ArtifactSummary, 0, len(l.artifacts)),
	}
	for _, a := range l.artifacts {
		m.Artifacts = append(m.Artifacts, ArtifactSummary{
			ID:       a.ID,
			Type:     a.Type,
			Filename: a.Filename,
			Size:     a.OriginalSize,
			Digest:   a.Digest,
			Verified: a.Verified,
		})
	}
	return m
}

func (l *Ledger) statistics() Statistics {
	s := Statistics{
		TotalArtifacts:   len(l.artifacts),
		TotalSize:        l.totalSize(),
		CompressedSize:   l.compressedSize(),
		CompressionRatio: l.compressionRatio(),
		TotalActions:     len(l.actions),
	}
	for _, a := range l.artifacts {
		if a.Verified {
			s.VerifiedArtifacts++
		}
	}
	return s
}

// ChainOfCustody returns the chain of custody record.
func (l *Ledger) ChainOfCustody() ChainOfCustody {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.chainOfCustody()
}

func (l *Ledger) chainOfCustody() ChainOfCustody {
	verified := len(l.validationErrors) == 0
	for _, a := range l.artifacts {
		if !a.Verified {
			verified = false
		}
	}
	return ChainOfCustody{
		CaseID:       l.caseID,
		SessionID:    l.sessionID,
		Collector:    Collector{Responder: l.responder, Device: l.device},
		TargetSystem: l.targetCopy(),
		StartedAt:    l.startedAt,
		FinalizedAt:  l.endedAt,
		Actions:      append([]CollectionAction{}, l.actions...),
		Artifacts:    append([]ArtifactMetadata{}, l.artifacts...),
		Integrity: Integrity{
			Verified:           verified,
			ManifestDigest:     l.manifestDigest,
			TotalArtifacts:     len(l.artifacts),
			VerificationErrors: append([]string{}, l.validationErrors...),
		},
	}
}

// hashes renders the digest list, one "digest  path" line per artifact
// below a commented header. Paths are relative to the container root.
func (l *Ledger) hashes() []byte {
	b := &bytes.Buffer{}
	fmt.Fprintf(b, "# %s Hashes - Case: %s\n", l.digester.Name(), l.caseID)
	fmt.Fprintf(b, "# Generated: %s\n", l.endedAt.UTC().Format(time.RFC3339))
	for _, a := range l.artifacts {
		fmt.Fprintf(b, "%s  %s\n", a.Digest, a.Path)
	}
	return b.Bytes()
}

func marshalDocument(schema *jsonschema.Schema, document interface{}) ([]byte, error) {
	b, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return nil, err
	}
	flaws, err := validateSchema(schema, b)
	if err != nil {
		return nil, err
	}
	if len(flaws) > 0 {
		return nil, errors.New(strings.Join(flaws, ", "))
	}
	return b, nil
}
