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
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/forensicanalysis/fsdoublestar"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/forensicanalysis/fieldstore"
	"github.com/forensicanalysis/fieldstore/sqlar"
)

// Pack is the fieldstore pack commandline subcommand.
func Pack() *cobra.Command {
	return &cobra.Command{
		Use:   "pack <archive.sqlar> <container>...",
		Short: "Add container directories to a SQLite archive",
		Args:  cobra.MinimumNArgs(2), //nolint:gomnd
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := sqlar.Open(args[0])
			if err != nil {
				return err
			}
			defer archive.Close()

			srcFS := afero.NewOsFs()
			for _, arg := range args[1:] {
				root := filepath.Clean(arg)
				base := filepath.Base(root)
				fmt.Fprintln(cmd.OutOrStdout(), "pack", filepath.ToSlash(root))
				err := afero.Walk(srcFS, root, func(srcPath string, info os.FileInfo, err error) error {
					if err != nil {
						return err
					}
					rel, err := filepath.Rel(root, srcPath)
					if err != nil {
						return err
					}
					dest := path.Join(base, filepath.ToSlash(rel))
					if info.IsDir() {
						return archive.MkdirAll(dest)
					}
					data, err := afero.ReadFile(srcFS, srcPath)
					if err != nil {
						return err
					}
					return archive.WriteFile(dest, data)
				})
				if err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func first(s string, n int) string {
	if len(s) < n {
		n = len(s)
	}
	return s[:n]
}

func last(s string, n int) string {
	if len(s) < n {
		n = len(s)
	}
	return s[len(s)-n:]
}

func splitExt(filePath string) (nameOnly, ext string) {
	ext = path.Ext(filePath)
	nameOnly = filePath[:len(filePath)-len(ext)]
	return nameOnly, ext
}

func normalizeFilePath(filePath string) string {
	maxLength := 64
	maxSegmentLength := 4
	filePath = strings.TrimLeft(filePath, "/")
	pathSegments := strings.Split(filePath, "/")
	normalizedFilePath := strings.Join(pathSegments, "_")

	// get first 4 letters of every directory, while longer than maxLength
	for i := 0; i < len(pathSegments)-1 && len(normalizedFilePath) > maxLength; i++ {
		pathSegments[i] = first(pathSegments[i], maxSegmentLength)
		normalizedFilePath = strings.Join(pathSegments, "_")
	}

	if len(normalizedFilePath) > maxLength {
		// if still to long get first maxSegmentLength letters of filename + extension
		nameOnly, ext := splitExt(pathSegments[len(pathSegments)-1])
		pathSegments[len(pathSegments)-1] = first(nameOnly, maxSegmentLength) + ext
		normalizedFilePath = strings.Join(pathSegments, "_")
	}

	return last(normalizedFilePath, maxLength)
}

// Unpack is the fieldstore unpack commandline subcommand.
func Unpack() *cobra.Command {
	var prefix bool
	var mode, dest string
	unpackCmd := &cobra.Command{
		Use:   "unpack <container>",
		Short: "Extract the original artifact data from a container",
		Args:  requireOneContainer,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, teardown, err := openContainer(args[0])
			if err != nil {
				return err
			}
			defer teardown() // nolint:errcheck

			if err := os.MkdirAll(dest, 0o755); err != nil {
				return err
			}
			destFS := afero.NewBasePathFs(afero.NewOsFs(), dest)

			for _, a := range l.Artifacts() {
				data, err := l.ReadArtifact(a.ID)
				if err != nil {
					return err
				}
				name := destinationPath(a, mode, prefix)
				if err := destFS.MkdirAll(path.Dir(name), 0o755); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "unpack '%s' to '%s'\n", a.Path, name)
				if err := afero.WriteFile(destFS, name, data, 0o644); err != nil {
					return err
				}
			}
			return nil
		},
	}

	usage := `define the export filename and folder structure. can be one of:
folder (e.g. 'var/log/auth.log')
compact (e.g. 'var_log_auth.log')
basename (e.g. 'auth.log')
`
	unpackCmd.Flags().StringVar(&mode, "mode", "compact", usage)
	unpackCmd.Flags().BoolVar(&prefix, "prefix-module", true, "create a folder for every module (e.g. 'lnx_authlogs/auth.log')")
	unpackCmd.Flags().StringVar(&dest, "dest", ".", "destination directory")
	return unpackCmd
}

// destinationPath names the extracted file of an artifact. The source path
// is used if the artifact was read from a file on the target.
func destinationPath(a fieldstore.ArtifactMetadata, mode string, prefix bool) string {
	source := a.Filename
	if strings.HasPrefix(a.SourcePath, "/") || strings.Contains(a.SourcePath, `:\`) {
		source = path.Clean("/" + strings.ReplaceAll(strings.ReplaceAll(a.SourcePath, `:\`, "/"), `\`, "/"))
	}

	var dest string
	switch mode {
	case "basename":
		dest = a.Filename
	case "folder":
		dest = strings.TrimLeft(source, "/")
	case "compact":
		fallthrough
	default:
		dest = normalizeFilePath(source)
	}

	if prefix {
		group := a.Module
		if group == "" {
			group = string(a.Type)
		}
		dest = path.Join(group, dest)
	}
	return dest
}

// Ls is the fieldstore ls commandline subcommand.
func Ls() *cobra.Command {
	var pattern string
	lsCommand := &cobra.Command{
		Use:   "ls <archive.sqlar|directory>",
		Short: "List the files of a SQLite archive or a container directory",
		Args:  cobra.ExactArgs(1), //nolint:gomnd
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := os.Stat(args[0])
			if err != nil {
				return err
			}
			var fsys fs.FS
			if info.IsDir() {
				fsys = os.DirFS(args[0])
			} else {
				archive, err := sqlar.Open(args[0])
				if err != nil {
					return err
				}
				defer archive.Close()
				fsys = archive.FS()
			}

			matches, err := fsdoublestar.Glob(fsys, pattern)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, name := range matches {
				if name == "." {
					continue
				}
				info, err := fs.Stat(fsys, name)
				if err != nil {
					return err
				}
				if info.IsDir() {
					fmt.Fprintln(out, name+"/")
					continue
				}
				fmt.Fprintf(out, "%s %d\n", name, info.Size())
			}
			return nil
		},
	}
	lsCommand.Flags().StringVar(&pattern, "pattern", "**", "glob pattern, ** matches across directories")
	return lsCommand
}
