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

package collect

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/forensicanalysis/fieldstore"
	"github.com/forensicanalysis/fieldstore/spooled"
)

// DefaultMemoryLimit is the amount of command output kept in memory before
// it is spooled to disk. The spool only bounds buffering while the command
// runs: the complete output is read back once the command exited, because
// the ledger digests and compresses artifacts as a whole.
const DefaultMemoryLimit = 4 << 20

const stderrLimit = 4096

// CommandStrategy runs a local command and stores its standard output.
type CommandStrategy struct {
	Args   []string
	Output string
	Type   fieldstore.ArtifactType
	// Retries is the number of additional attempts. The retry delay of the
	// timing is waited between attempts.
	Retries     int
	MemoryLimit int64
}

// Execute runs the command.
func (c *CommandStrategy) Execute(ctx context.Context, env Env) (Outcome, error) {
	if len(c.Args) == 0 {
		return Outcome{}, errors.New("empty command")
	}

	var data []byte
	var err error
	for attempt := 0; attempt <= c.Retries; attempt++ {
		if attempt > 0 {
			if werr := env.Timing.Pause(ctx, "retry"); werr != nil {
				return Outcome{}, werr
			}
		}
		data, err = c.run(ctx, env.TempDir)
		if err == nil || ctx.Err() != nil {
			break
		}
	}
	if err != nil {
		return Outcome{}, err
	}

	filename := c.Output
	if filename == "" {
		filename = env.Module.ID + ".txt"
	}
	return Outcome{
		Outputs: []Output{{
			Type:       c.Type,
			Filename:   filename,
			Data:       data,
			SourcePath: strings.Join(c.Args, " "),
			Compress:   true,
		}},
		Details: fmt.Sprintf("%d bytes from %s", len(data), c.Args[0]),
	}, nil
}

func (c *CommandStrategy) run(ctx context.Context, tempDir string) ([]byte, error) {
	limit := c.MemoryLimit
	if limit <= 0 {
		limit = DefaultMemoryLimit
	}
	stdout, teardown := spooled.NewIn(tempDir, limit)
	defer teardown() // nolint:errcheck

	stderr := &bytes.Buffer{}
	cmd := exec.CommandContext(ctx, c.Args[0], c.Args[1:]...) // #nosec
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = time.Second

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > stderrLimit {
			msg = msg[:stderrLimit]
		}
		if msg != "" {
			return nil, errors.Wrapf(err, "%s: %s", c.Args[0], msg)
		}
		return nil, errors.Wrap(err, c.Args[0])
	}
	return stdout.Bytes()
}
