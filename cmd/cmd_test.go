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

package cmd

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forensicanalysis/fieldstore/sqlar"
)

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	cmd.SetArgs(args)
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	err := cmd.Execute()
	return buf.String(), err
}

func TestPlan(t *testing.T) {
	out, err := execute(t, Plan(), "--profile", "quick", "--os", "linux")
	require.NoError(t, err)
	assert.Contains(t, out, "profile quick (linux)")
	assert.Contains(t, out, "batch 1: ")

	out, err = execute(t, Plan(), "--os", "linux", "--module", "lnx_persistence")
	require.NoError(t, err)
	assert.Contains(t, out, "  batch 1: lnx_cron\n  batch 2: lnx_persistence\n")
	assert.Contains(t, out, "  implied: lnx_cron\n")

	_, err = execute(t, Plan(), "--os", "plan9")
	assert.Error(t, err)
}

const testCatalog = `
modules:
  - id: greeting
    artifact_type: logs
    command: [sh, -c, "echo hi"]
    output: greeting.log
  - id: count
    depends_on: [greeting]
    command: [sh, -c, "seq 1 3"]
`

func collectContainer(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	dir := t.TempDir()
	catalog := filepath.Join(dir, "catalog.yml")
	require.NoError(t, os.WriteFile(catalog, []byte(testCatalog), 0o600))
	output := filepath.Join(dir, "cases")

	out, err := execute(t, Collect(),
		"--os", "linux", "--catalog", catalog, "--module", "count",
		"--case-id", "case-1", "--responder", "alice",
		"--output", output, "--timing", "immediate",
	)
	require.NoError(t, err, out)
	assert.Contains(t, out, "case=case-1")
	assert.Contains(t, out, "artifacts=2")

	entries, err := os.ReadDir(output)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.True(t, strings.HasPrefix(entries[0].Name(), "case-1_"))
	return filepath.Join(output, entries[0].Name())
}

func TestCollectAndInspect(t *testing.T) {
	container := collectContainer(t)

	out, err := execute(t, Verify(), container)
	require.NoError(t, err, out)
	assert.Equal(t, "case-1: 2 artifacts verified\n", out)

	out, err = execute(t, Manifest(), "--flat", container)
	require.NoError(t, err)
	assert.Contains(t, out, "case_id=case-1\n")
	assert.Contains(t, out, "responder=alice\n")

	out, err = execute(t, Artifact(), "select", "--module", "greeting", container)
	require.NoError(t, err)
	assert.Contains(t, out, "artifact_001")
	assert.NotContains(t, out, "artifact_002")

	out, err = execute(t, Artifact(), "cat", "artifact_002", container)
	require.NoError(t, err)
	assert.Equal(t, "1\n2\n3\n", out)

	out, err = execute(t, Artifact(), "actions", container)
	require.NoError(t, err)
	assert.Contains(t, out, "COLLECTION_COMPLETED")
}

func TestVerifyTampered(t *testing.T) {
	container := collectContainer(t)
	require.NoError(t, os.WriteFile(filepath.Join(container, "artifacts", "logs", "greeting.log"), []byte("bye\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(container, "artifacts", "other", "extra.bin"), []byte("x"), 0o600))

	out, err := execute(t, Verify(), container)
	assert.ErrorIs(t, err, ErrInvalidContainer)
	assert.Contains(t, out, "greeting.log")
	assert.Contains(t, out, "extra.bin")

	_, err = execute(t, Verify(), "--no-fail", container)
	assert.NoError(t, err)
}

func TestPackUnpackLs(t *testing.T) {
	container := collectContainer(t)
	archive := filepath.Join(t.TempDir(), "case.sqlar")

	out, err := execute(t, Pack(), archive, container)
	require.NoError(t, err)
	assert.Contains(t, out, "pack ")

	out, err = execute(t, Ls(), "--pattern", "**/*.log", archive)
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(container)+"/artifacts/logs/greeting.log 3\n", out)

	notes, err := sqlar.Open(archive)
	require.NoError(t, err)
	require.NoError(t, notes.WriteFile("notes.txt", []byte("packed by alice")))
	require.NoError(t, notes.Close())

	out, err = execute(t, Verify(), archive)
	require.NoError(t, err, out)
	assert.Equal(t, "case-1: 2 artifacts verified\n", out)

	dest := t.TempDir()
	_, err = execute(t, Unpack(), "--dest", dest, archive)
	require.NoError(t, err)
	b, err := os.ReadFile(filepath.Join(dest, "greeting", "greeting.log"))
	require.NoError(t, err)
	assert.Equal(t, "hi\n", string(b))
	b, err = os.ReadFile(filepath.Join(dest, "count", "count.txt"))
	require.NoError(t, err)
	assert.Equal(t, "1\n2\n3\n", string(b))

	out, err = execute(t, Ls(), container)
	require.NoError(t, err)
	assert.Contains(t, out, "manifest.json ")
	assert.Contains(t, out, "artifacts/logs/\n")
}
