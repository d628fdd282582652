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

// Package fieldstore implements the fieldstore command line tool. It plans
// and runs forensic collections and handles the resulting evidence
// containers.
//     plan      Show the execution plan of a profile
//     collect   Run a collection into a new container
//     verify    Recompute digests of a finalized container
//     manifest  Print the manifest of a container
//     artifact  Inspect artifacts (get, select, cat, actions)
//     pack      Add containers to a SQLite archive
//     unpack    Extract artifacts from a container
//     ls        List the files of an archive or container
//
// Usage
//
// Plan and collect
//     fieldstore plan --profile quick --os linux
//     fieldstore collect --profile standard --responder alice --output ./cases
//     fieldstore collect --catalog mymodules.yml --module my_module --responder alice --archive
// Inspect a container
//     fieldstore verify ./cases/case-1_20200102_150405
//     fieldstore manifest --flat ./cases/case-1_20200102_150405
//     fieldstore artifact cat artifact_001 ./cases/case-1_20200102_150405 > out.txt
// Archives
//     fieldstore pack case-1.sqlar ./cases/case-1_20200102_150405
//     fieldstore ls --pattern "**/*.log" case-1.sqlar
//     fieldstore unpack --dest ./extracted case-1.sqlar
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/forensicanalysis/fieldstore/cmd"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmsgprefix)
	log.SetPrefix("fieldstore: ")

	rootCmd := &cobra.Command{
		Use:   "fieldstore",
		Short: "Collect forensic evidence into verifiable containers",
	}
	rootCmd.AddCommand(
		cmd.Plan(), cmd.Collect(), cmd.Verify(), cmd.Manifest(),
		cmd.Artifact(), cmd.Pack(), cmd.Unpack(), cmd.Ls(),
	)
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}
