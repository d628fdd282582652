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
	"fmt"
	"log"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// ContainerVersion is written to every manifest.
const ContainerVersion = "1.0"

const (
	// DefaultCompressionThreshold is the size in bytes an artifact must
	// exceed before compression is attempted.
	DefaultCompressionThreshold = 1024
	// DefaultMinReduction is the share a compressed payload must save to be
	// stored instead of the original.
	DefaultMinReduction = 0.10
)

var (
	// ErrContainerOpen is returned when a container is created twice.
	ErrContainerOpen = errors.New("container already open")
	// ErrContainerNotOpen is returned for mutations before Create.
	ErrContainerNotOpen = errors.New("container not open")
	// ErrSealed is returned for mutations after Finalize.
	ErrSealed = errors.New("container is sealed")
	// ErrUnknownArtifact is returned for artifact ids that do not exist.
	ErrUnknownArtifact = errors.New("unknown artifact")
	// ErrReadOnly is returned when a reopened container would be modified.
	ErrReadOnly = errors.New("container is read-only")
)

// DeviceInfo identifies the collecting device.
type DeviceInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// TargetSystemInfo describes the examined host.
type TargetSystemInfo struct {
	Hostname     string   `json:"hostname,omitempty"`
	OS           string   `json:"os,omitempty"`
	OSVersion    string   `json:"os_version,omitempty"`
	Architecture string   `json:"architecture,omitempty"`
	Username     string   `json:"username,omitempty"`
	Domain       string   `json:"domain,omitempty"`
	IsAdmin      bool     `json:"is_admin"`
	IPAddresses  []string `json:"ip_addresses,omitempty"`
}

// Ledger is an evidence container. It is append-only while open and
// immutable once finalized. All methods are safe for concurrent use.
type Ledger struct {
	mu sync.Mutex

	store        Store
	digester     Digester
	compressor   Compressor
	minSize      int
	minReduction float64
	now          func() time.Time
	device       DeviceInfo

	caseID    string
	responder string
	sessionID string
	root      string
	open      bool
	sealed    bool
	readOnly  bool
	startedAt time.Time
	endedAt   time.Time
	target    *TargetSystemInfo

	artifacts        []ArtifactMetadata
	actions          []CollectionAction
	validationErrors []string
	nextArtifact     int
	manifestDigest   string
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithDigester sets the digest provider.
func WithDigester(d Digester) Option {
	return func(l *Ledger) { l.digester = d }
}

// WithCompressor sets the compression provider. A nil compressor disables
// compression.
func WithCompressor(c Compressor) Option {
	return func(l *Ledger) { l.compressor = c }
}

// WithCompressionThreshold sets the minimal artifact size and the minimal
// size reduction for compressed storage.
func WithCompressionThreshold(minSize int, minReduction float64) Option {
	return func(l *Ledger) {
		l.minSize = minSize
		l.minReduction = minReduction
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithDevice sets the collecting device.
func WithDevice(device DeviceInfo) Option {
	return func(l *Ledger) { l.device = device }
}

// New creates a ledger on store. Call Create to start a case.
func New(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:        store,
		digester:     SHA256,
		compressor:   NewGzipCompressor(),
		minSize:      DefaultCompressionThreshold,
		minReduction: DefaultMinReduction,
		now:          time.Now,
		device:       DeviceInfo{Name: "fieldstore", Version: ContainerVersion},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

/* ################################
#   Lifecycle
################################ */

// Create establishes the container root for a case and its directory layout.
func (l *Ledger) Create(caseID, responder string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch {
	case l.readOnly:
		return ErrReadOnly
	case l.sealed:
		return ErrSealed
	case l.open:
		return errors.Wrap(ErrContainerOpen, l.root)
	case caseID == "":
		return errors.New("case id must not be empty")
	}

	now := l.now()
	root := fmt.Sprintf("%s_%s", safeName(caseID), now.UTC().Format("20060102_150405"))
	root, err := uniqueName(l.store, "", root, "")
	if err != nil {
		return err
	}

	log.Printf("ledger: creating container %s", root)
	dirs := []string{path.Join(root, "metadata"), path.Join(root, "reports")}
	for _, t := range ArtifactTypes {
		dirs = append(dirs, path.Join(root, "artifacts", string(t)))
	}
	for _, dir := range dirs {
		if err := l.store.MkdirAll(dir); err != nil {
			return errors.Wrapf(err, "could not create %s", dir)
		}
	}

	l.caseID = caseID
	l.responder = responder
	l.sessionID = uuid.New().String()
	l.root = root
	l.startedAt = now
	l.open = true

	l.logAction(ActionContainerCreated, fmt.Sprintf("Case: %s, Responder: %s", caseID, responder), ResultSuccess)
	return nil
}

// SetTargetSystemInfo records the examined host.
func (l *Ledger) SetTargetSystemInfo(info TargetSystemInfo) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.writable(); err != nil {
		return err
	}
	info.IPAddresses = append([]string(nil), info.IPAddresses...)
	l.target = &info
	l.logAction(ActionTargetInfo, fmt.Sprintf("Host: %s, OS: %s %s", info.Hostname, info.OS, info.OSVersion), ResultSuccess)
	return nil
}

func (l *Ledger) writable() error {
	switch {
	case l.sealed:
		return ErrSealed
	case l.readOnly:
		return ErrReadOnly
	case !l.open:
		return ErrContainerNotOpen
	}
	return nil
}

/* ################################
#   Accessors
################################ */

// CaseID returns the case id.
func (l *Ledger) CaseID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.caseID
}

// Responder returns the responder identity.
func (l *Ledger) Responder() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.responder
}

// SessionID returns the random id of the collection session.
func (l *Ledger) SessionID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sessionID
}

// Root returns the storage root of the container.
func (l *Ledger) Root() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.root
}

// IsOpen reports whether the container accepts artifacts.
func (l *Ledger) IsOpen() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.open && !l.sealed
}

// IsSealed reports whether the container was finalized.
func (l *Ledger) IsSealed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sealed
}

// TargetSystem returns the recorded target system or nil.
func (l *Ledger) TargetSystem() *TargetSystemInfo {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.targetCopy()
}

func (l *Ledger) targetCopy() *TargetSystemInfo {
	if l.target == nil {
		return nil
	}
	info := *l.target
	info.IPAddresses = append([]string(nil), l.target.IPAddresses...)
	return &info
}

// Artifacts returns a copy of the artifact list.
func (l *Ledger) Artifacts() []ArtifactMetadata {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]ArtifactMetadata(nil), l.artifacts...)
}

// Artifact returns the metadata of a single artifact.
func (l *Ledger) Artifact(id string) (ArtifactMetadata, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a := l.artifact(id)
	if a == nil {
		return ArtifactMetadata{}, false
	}
	return *a, true
}

// Actions returns a copy of the action log.
func (l *Ledger) Actions() []CollectionAction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]CollectionAction(nil), l.actions...)
}

// ValidationErrors returns a copy of the validation errors.
func (l *Ledger) ValidationErrors() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.validationErrors...)
}

/* ################################
#   Statistics
################################ */

// TotalSize is the sum of the original artifact sizes.
func (l *Ledger) TotalSize() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalSize()
}

func (l *Ledger) totalSize() (size int64) {
	for _, a := range l.artifacts {
		size += a.OriginalSize
	}
	return size
}

// CompressedSize is the sum of the stored artifact sizes.
func (l *Ledger) CompressedSize() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.compressedSize()
}

func (l *Ledger) compressedSize() (size int64) {
	for _, a := range l.artifacts {
		size += a.Size
	}
	return size
}

// CompressionRatio is stored size divided by original size. An empty
// container has a ratio of 1.
func (l *Ledger) CompressionRatio() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.compressionRatio()
}

func (l *Ledger) compressionRatio() float64 {
	total := l.totalSize()
	if total == 0 {
		return 1
	}
	return float64(l.compressedSize()) / float64(total)
}

// CollectionDuration is the time between Create and Finalize, or until now
// for an open container.
func (l *Ledger) CollectionDuration() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.duration()
}

func (l *Ledger) duration() time.Duration {
	if l.startedAt.IsZero() {
		return 0
	}
	if !l.endedAt.IsZero() {
		return l.endedAt.Sub(l.startedAt)
	}
	return l.now().Sub(l.startedAt)
}

func safeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}

// uniqueName returns name, or name with a counter before its extension, so
// that dir/name+suffix does not exist yet.
func uniqueName(store Store, dir, name, suffix string) (string, error) {
	ext := path.Ext(name)
	base := name[:len(name)-len(ext)]
	candidate := name + suffix

	exists, err := store.Exists(path.Join(dir, candidate))
	if err != nil {
		return "", err
	}
	for i := 0; exists; i++ {
		candidate = fmt.Sprintf("%s_%d%s%s", base, i, ext, suffix)
		exists, err = store.Exists(path.Join(dir, candidate))
		if err != nil {
			return "", err
		}
	}
	return candidate, nil
}
