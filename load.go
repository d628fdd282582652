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
	"path"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/qri-io/jsonschema"
	"github.com/tidwall/gjson"
)

// Open loads a finalized container from its chain of custody. The returned
// ledger is sealed and read-only.
func Open(store Store, root string, opts ...Option) (*Ledger, error) {
	custody, err := readDocument(store, path.Join(root, ChainOfCustodyFile), chainOfCustodyValidator)
	if err != nil {
		return nil, err
	}
	manifest, err := readDocument(store, path.Join(root, ManifestFile), manifestValidator)
	if err != nil {
		return nil, err
	}

	l := New(store, opts...)
	if algorithm := gjson.GetBytes(manifest, "digest_algorithm").String(); algorithm != "" {
		if l.digester, err = NewDigester(algorithm); err != nil {
			return nil, err
		}
	}

	doc := gjson.ParseBytes(custody)
	l.root = root
	l.caseID = doc.Get("case_id").String()
	l.sessionID = doc.Get("session_id").String()
	l.responder = doc.Get("collector.responder").String()
	l.device = DeviceInfo{
		Name:    doc.Get("collector.device.name").String(),
		Version: doc.Get("collector.device.version").String(),
	}
	l.startedAt = doc.Get("started_at").Time()
	l.endedAt = doc.Get("finalized_at").Time()
	l.manifestDigest = doc.Get("integrity.manifest_digest").String()

	if target := doc.Get("target_system"); target.Exists() {
		l.target = &TargetSystemInfo{}
		if err := json.Unmarshal([]byte(target.Raw), l.target); err != nil {
			return nil, errors.Wrap(err, "could not decode target system")
		}
	}
	if err := json.Unmarshal([]byte(doc.Get("actions").Raw), &l.actions); err != nil {
		return nil, errors.Wrap(err, "could not decode actions")
	}
	if err := json.Unmarshal([]byte(doc.Get("artifacts").Raw), &l.artifacts); err != nil {
		return nil, errors.Wrap(err, "could not decode artifacts")
	}
	doc.Get("integrity.verification_errors").ForEach(func(_, value gjson.Result) bool {
		l.validationErrors = append(l.validationErrors, value.String())
		return true
	})

	if digest := l.digester.Digest(manifest); digest != l.manifestDigest {
		l.validationErrors = append(l.validationErrors,
			fmt.Sprintf("manifest digest mismatch (is %s, expected %s)", digest, l.manifestDigest))
	}

	l.nextArtifact = len(l.artifacts)
	l.sealed = true
	l.readOnly = true
	return l, nil
}

func readDocument(store Store, name string, schema *jsonschema.Schema) ([]byte, error) {
	b, err := store.ReadFile(name)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read %s", name)
	}
	flaws, err := validateSchema(schema, b)
	if err != nil {
		return nil, err
	}
	if len(flaws) > 0 {
		return nil, errors.Errorf("invalid %s: %s", name, strings.Join(flaws, ", "))
	}
	return b, nil
}

/* ################################
#   Validate
################################ */

// Validate checks the container for flaws: artifacts whose digest does not
// match, a broken action log and artifact files that are missing or not
// recorded.
func (l *Ledger) Validate() (flaws []string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	flaws = []string{}
	known := len(l.validationErrors)
	l.verifyAll()
	flaws = append(flaws, l.validationErrors[known:]...)
	flaws = append(flaws, l.verifyActionLog()...)

	expectedFiles := map[string]bool{}
	for _, a := range l.artifacts {
		if strings.Contains(a.Path, "..") {
			flaws = append(flaws, fmt.Sprintf("'..' in %s", a.Path))
			continue
		}
		expectedFiles[a.Path] = true
	}

	foundFiles := map[string]bool{}
	var additionalFiles []string
	err = walk(l.store, l.root, "artifacts", func(name string) {
		foundFiles[name] = true
		if !expectedFiles[name] {
			additionalFiles = append(additionalFiles, name)
		}
	})
	if err != nil {
		return nil, err
	}
	if len(additionalFiles) > 0 {
		flaws = append(flaws, fmt.Sprintf("additional files: ('%s')", strings.Join(additionalFiles, "', '")))
	}

	var missingFiles []string
	for expectedFile := range expectedFiles {
		if !foundFiles[expectedFile] {
			missingFiles = append(missingFiles, expectedFile)
		}
	}
	sort.Strings(missingFiles)
	if len(missingFiles) > 0 {
		flaws = append(flaws, fmt.Sprintf("missing files: ('%s')", strings.Join(missingFiles, "', '")))
	}
	return flaws, nil
}

// walk calls fn with the path of every file below root/dir, relative to root.
func walk(store Store, root, dir string, fn func(name string)) error {
	entries, err := store.ReadDir(path.Join(root, dir))
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry, "/") {
			if err := walk(store, root, path.Join(dir, strings.TrimSuffix(entry, "/")), fn); err != nil {
				return err
			}
			continue
		}
		fn(path.Join(dir, entry))
	}
	return nil
}
