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
	"strconv"
	"strings"
	"time"
)

// Action types written by the ledger itself.
const (
	ActionContainerCreated   = "CONTAINER_CREATED"
	ActionTargetInfo         = "TARGET_INFO"
	ActionArtifactAdded      = "ARTIFACT_ADDED"
	ActionArtifactAddFailed  = "ARTIFACT_ADD_FAILED"
	ActionMetadataUpdated    = "METADATA_UPDATED"
	ActionContainerFinalized = "CONTAINER_FINALIZED"
)

// Action results.
const (
	ResultSuccess  = "SUCCESS"
	ResultFailed   = "FAILED"
	ResultWarnings = "WARNINGS"
)

// CollectionAction is an entry of the append-only action log.
type CollectionAction struct {
	Sequence  int       `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"action_type"`
	Details   string    `json:"details"`
	Result    string    `json:"result"`
	// Digest covers timestamp, type, details, result and sequence.
	Digest string `json:"digest"`
	// PreviousDigest is the digest of the preceding entry.
	PreviousDigest string `json:"previous_digest,omitempty"`
}

func (a CollectionAction) content() []byte {
	return []byte(strings.Join([]string{
		a.Timestamp.UTC().Format(time.RFC3339Nano),
		a.Type,
		a.Details,
		a.Result,
		strconv.Itoa(a.Sequence),
	}, "\n"))
}

// LogAction appends an entry to the action log.
func (l *Ledger) LogAction(actionType, details, result string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.writable(); err != nil {
		return err
	}
	l.logAction(actionType, details, result)
	return nil
}

func (l *Ledger) logAction(actionType, details, result string) {
	action := CollectionAction{
		Sequence:  len(l.actions) + 1,
		Timestamp: l.now(),
		Type:      actionType,
		Details:   details,
		Result:    result,
	}
	action.Digest = l.digester.Digest(action.content())
	if len(l.actions) > 0 {
		action.PreviousDigest = l.actions[len(l.actions)-1].Digest
	}
	l.actions = append(l.actions, action)
}

// VerifyActionLog checks sequence numbers, entry digests and the links
// between entries.
func (l *Ledger) VerifyActionLog() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.verifyActionLog()
}

func (l *Ledger) verifyActionLog() (flaws []string) {
	for i, action := range l.actions {
		if action.Sequence != i+1 {
			flaws = append(flaws, fmt.Sprintf("action %d has sequence %d", i+1, action.Sequence))
		}
		if digest := l.digester.Digest(action.content()); digest != action.Digest {
			flaws = append(flaws, fmt.Sprintf("action %d: digest mismatch (is %s, expected %s)", action.Sequence, digest, action.Digest))
		}
		previous := ""
		if i > 0 {
			previous = l.actions[i-1].Digest
		}
		if action.PreviousDigest != previous {
			flaws = append(flaws, fmt.Sprintf("action %d: broken link to previous entry", action.Sequence))
		}
	}
	return flaws
}
