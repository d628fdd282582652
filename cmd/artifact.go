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
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/forensicanalysis/fieldstore"
)

// Artifact is the fieldstore artifact commandline subcommand.
func Artifact() *cobra.Command {
	artifactCommand := &cobra.Command{
		Use:   "artifact",
		Short: "Inspect the artifacts of a container",
	}
	artifactCommand.AddCommand(getCommand(), selectCommand(), catCommand(), actionsCommand())
	return artifactCommand
}

func getCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id> <container>",
		Short: "Retrieve the metadata of a single artifact",
		Args:  cobra.ExactArgs(2), //nolint:gomnd
		RunE: func(cmd *cobra.Command, args []string) error {
			l, teardown, err := openContainer(args[1])
			if err != nil {
				return err
			}
			defer teardown() // nolint:errcheck

			meta, ok := l.Artifact(args[0])
			if !ok {
				return errors.Wrap(fieldstore.ErrUnknownArtifact, args[0])
			}
			b, _ := json.Marshal(meta)
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", b)
			return nil
		},
	}
}

func selectCommand() *cobra.Command {
	var typ, module string
	selectCommand := &cobra.Command{
		Use:     "select <container>",
		Aliases: []string{"list", "all"},
		Short:   "Retrieve the metadata of all artifacts, optionally filtered",
		Args:    cobra.ExactArgs(1), //nolint:gomnd
		RunE: func(cmd *cobra.Command, args []string) error {
			l, teardown, err := openContainer(args[0])
			if err != nil {
				return err
			}
			defer teardown() // nolint:errcheck

			selected := []fieldstore.ArtifactMetadata{}
			for _, meta := range l.Artifacts() {
				if typ != "" && string(meta.Type) != typ {
					continue
				}
				if module != "" && meta.Module != module {
					continue
				}
				selected = append(selected, meta)
			}
			b, _ := json.Marshal(selected)
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", b)
			return nil
		},
	}
	selectCommand.Flags().StringVar(&typ, "type", "", "artifact type")
	selectCommand.Flags().StringVar(&module, "module", "", "collecting module")
	return selectCommand
}

func catCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cat <id> <container>",
		Short: "Write the original content of an artifact to stdout",
		Args:  cobra.ExactArgs(2), //nolint:gomnd
		RunE: func(cmd *cobra.Command, args []string) error {
			l, teardown, err := openContainer(args[1])
			if err != nil {
				return err
			}
			defer teardown() // nolint:errcheck

			data, err := l.ReadArtifact(args[0])
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func actionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "actions <container>",
		Short: "Print the action log of a container",
		Args:  cobra.ExactArgs(1), //nolint:gomnd
		RunE: func(cmd *cobra.Command, args []string) error {
			l, teardown, err := openContainer(args[0])
			if err != nil {
				return err
			}
			defer teardown() // nolint:errcheck

			out := cmd.OutOrStdout()
			for _, a := range l.Actions() {
				fmt.Fprintf(out, "%4d %s %-22s %-8s %s\n", a.Sequence, a.Timestamp.Format("2006-01-02T15:04:05Z07:00"), a.Type, a.Result, a.Details)
			}
			return nil
		},
	}
}
