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
	"context"
	"encoding/json"
	"fmt"

	"github.com/qri-io/jsonschema"
)

const manifestSchema = `{
  "$schema": "https://json-schema.org/draft/2019-09/schema#",
  "$id": "fieldstore:manifest",
  "type": "object",
  "required": ["case_id", "responder", "container_version", "created_at", "finalized_at", "duration_ms", "digest_algorithm", "statistics", "artifacts"],
  "properties": {
    "case_id": {"type": "string", "minLength": 1},
    "responder": {"type": "string"},
    "container_version": {"type": "string"},
    "session_id": {"type": "string"},
    "created_at": {"type": "string"},
    "finalized_at": {"type": "string"},
    "duration_ms": {"type": "integer", "minimum": 0},
    "digest_algorithm": {"type": "string"},
    "device": {"type": "object"},
    "target": {"type": "object"},
    "statistics": {
      "type": "object",
      "required": ["total_artifacts", "total_size", "compressed_size", "compression_ratio", "verified_artifacts", "total_actions"],
      "properties": {
        "total_artifacts": {"type": "integer", "minimum": 0},
        "total_size": {"type": "integer", "minimum": 0},
        "compressed_size": {"type": "integer", "minimum": 0},
        "compression_ratio": {"type": "number", "minimum": 0},
        "verified_artifacts": {"type": "integer", "minimum": 0},
        "total_actions": {"type": "integer", "minimum": 0}
      }
    },
    "artifacts": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "type", "filename", "size", "digest", "verified"],
        "properties": {
          "id": {"type": "string", "pattern": "^artifact_[0-9]{3,}$"},
          "type": {"type": "string"},
          "filename": {"type": "string"},
          "size": {"type": "integer", "minimum": 0},
          "digest": {"type": "string", "pattern": "^[0-9a-f]+$"},
          "verified": {"type": "boolean"}
        }
      }
    }
  }
}`

const chainOfCustodySchema = `{
  "$schema": "https://json-schema.org/draft/2019-09/schema#",
  "$id": "fieldstore:chain_of_custody",
  "type": "object",
  "required": ["case_id", "collector", "started_at", "finalized_at", "actions", "artifacts", "integrity"],
  "properties": {
    "case_id": {"type": "string", "minLength": 1},
    "session_id": {"type": "string"},
    "collector": {
      "type": "object",
      "required": ["responder", "device"],
      "properties": {
        "responder": {"type": "string"},
        "device": {"type": "object"}
      }
    },
    "target_system": {"type": "object"},
    "started_at": {"type": "string"},
    "finalized_at": {"type": "string"},
    "actions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["sequence", "timestamp", "action_type", "details", "result", "digest"],
        "properties": {
          "sequence": {"type": "integer", "minimum": 1},
          "timestamp": {"type": "string"},
          "action_type": {"type": "string", "minLength": 1},
          "details": {"type": "string"},
          "result": {"type": "string"},
          "digest": {"type": "string", "pattern": "^[0-9a-f]+$"},
          "previous_digest": {"type": "string"}
        }
      }
    },
    "artifacts": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "type", "filename", "path", "size", "original_size", "digest", "collected_at", "compressed", "verified"],
        "properties": {
          "id": {"type": "string"},
          "path": {"type": "string"},
          "size": {"type": "integer", "minimum": 0},
          "original_size": {"type": "integer", "minimum": 0},
          "compressed": {"type": "boolean"},
          "verified": {"type": "boolean"}
        }
      }
    },
    "integrity": {
      "type": "object",
      "required": ["verified", "manifest_digest", "total_artifacts", "verification_errors"],
      "properties": {
        "verified": {"type": "boolean"},
        "manifest_digest": {"type": "string"},
        "total_artifacts": {"type": "integer", "minimum": 0},
        "verification_errors": {"type": "array", "items": {"type": "string"}}
      }
    }
  }
}`

var (
	manifestValidator       *jsonschema.Schema // nolint:gochecknoglobals
	chainOfCustodyValidator *jsonschema.Schema // nolint:gochecknoglobals
)

func init() { // nolint:gochecknoinits
	manifestValidator = mustSchema(manifestSchema)
	chainOfCustodyValidator = mustSchema(chainOfCustodySchema)
}

func mustSchema(content string) *jsonschema.Schema {
	schema := &jsonschema.Schema{}
	if err := json.Unmarshal([]byte(content), schema); err != nil {
		panic(err)
	}
	return schema
}

func validateSchema(schema *jsonschema.Schema, document []byte) (flaws []string, err error) {
	errs, err := schema.ValidateBytes(context.Background(), document)
	if err != nil {
		return nil, err
	}
	for _, verr := range errs {
		flaws = append(flaws, fmt.Sprintf("failed to validate document: %s", verr))
	}
	return flaws, nil
}
