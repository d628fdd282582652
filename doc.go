// Copyright (c) 2019 Siemens AG
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

// Package fieldstore implements an evidence ledger for field collections.
//
// A Ledger stores collected artifacts with a digest of their original bytes,
// optionally compressed, and keeps an append-only log of every action taken.
// Finalizing the ledger verifies all artifacts again, exports the case
// documents and seals it. A sealed ledger cannot be changed anymore.
//
// The container format
//
// A container is a folder named after the case id and the creation time:
//     CASE-42_20200102_030405/
//     ├── artifacts
//     │   ├── filesystem
//     │   ├── logs
//     │   │   └── auth.log.compressed
//     │   ├── memory
//     │   ├── network
//     │   ├── other
//     │   ├── persistence
//     │   └── registry
//     ├── metadata
//     │   └── artifact_001.json
//     ├── reports
//     ├── chain_of_custody.json
//     ├── hashes.sha256
//     └── manifest.json
//
// Digests in metadata, manifest and hashes.sha256 always refer to the
// original bytes, also for artifacts stored compressed. Containers can be
// stored on any afero file system or in a single SQLite archive (see the
// sqlar package).
package fieldstore
