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
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/forensicanalysis/fieldstore"
	"github.com/forensicanalysis/fieldstore/goflatten"
)

// ErrInvalidContainer is returned by verify if flaws were found.
var ErrInvalidContainer = errors.New("container is not valid")

// Verify is the fieldstore verify commandline subcommand.
func Verify() *cobra.Command {
	var noFail bool
	verifyCommand := &cobra.Command{
		Use:   "verify <container>",
		Short: "Recompute digests and check the container for missing and additional files",
		Args:  requireOneContainer,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, teardown, err := openContainer(args[0])
			if err != nil {
				return err
			}
			defer teardown() // nolint:errcheck

			flaws, err := l.Validate()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(flaws) > 0 {
				for i, v := range flaws {
					flaws[i] = strings.Replace(v, "\"", "\\\"", -1)
				}
				fmt.Fprintf(out, "[\"%s\"]\n", strings.Join(flaws, "\", \""))
				if noFail {
					return nil
				}
				return ErrInvalidContainer
			}
			fmt.Fprintf(out, "%s: %d artifacts verified\n", l.CaseID(), len(l.Artifacts()))
			return nil
		},
	}
	verifyCommand.Flags().BoolVar(&noFail, "no-fail", false, "return exit code 0")
	return verifyCommand
}

// Manifest is the fieldstore manifest commandline subcommand.
func Manifest() *cobra.Command {
	var flat bool
	manifestCommand := &cobra.Command{
		Use:   "manifest <container>",
		Short: "Print the manifest of a container",
		Args:  requireOneContainer,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, root, teardown, err := openStore(args[0])
			if err != nil {
				return err
			}
			defer teardown() // nolint:errcheck

			b, err := store.ReadFile(path.Join(root, fieldstore.ManifestFile))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !flat {
				var buf bytes.Buffer
				if err := json.Indent(&buf, b, "", "  "); err != nil {
					return err
				}
				fmt.Fprintln(out, buf.String())
				return nil
			}
			flatmap, err := goflatten.FlattenJSON(b)
			if err != nil {
				return err
			}
			for _, line := range goflatten.Lines(flatmap) {
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
	manifestCommand.Flags().BoolVar(&flat, "flat", false, "print one key=value line per field")
	return manifestCommand
}
