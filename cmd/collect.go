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
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"os/user"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/forensicanalysis/fieldstore"
	"github.com/forensicanalysis/fieldstore/collect"
	"github.com/forensicanalysis/fieldstore/profile"
	"github.com/forensicanalysis/fieldstore/sqlar"
)

// Collect is the fieldstore collect commandline subcommand.
func Collect() *cobra.Command {
	var sel selection
	var caseID, responder, output, timingName string
	var archive bool
	var workers int
	var multiplier float64

	collectCommand := &cobra.Command{
		Use:   "collect",
		Short: "Run a collection and store the evidence in a container",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if caseID == "" {
				caseID = uuid.NewString()
			}
			m, selected, p, catalog, err := sel.setup()
			if err != nil {
				return err
			}
			plan, err := m.CreateExecutionPlanFor(selected)
			if err != nil {
				return err
			}

			timing, err := p.TimingPreset()
			if cmd.Flags().Changed("timing") {
				timing, err = profile.ParseTiming(timingName)
			}
			if err != nil {
				return err
			}
			if multiplier > 0 {
				timing.Multiplier = multiplier
			}
			if !cmd.Flags().Changed("workers") {
				workers = p.Workers
			}

			if err := os.MkdirAll(output, 0o755); err != nil {
				return err
			}
			var store fieldstore.Store
			teardown := func() error { return nil }
			if archive {
				a, err := sqlar.Open(filepath.Join(output, archiveName(caseID)))
				if err != nil {
					return err
				}
				store, teardown = a, a.Close
			} else {
				if store, err = fieldstore.NewDirStore(output); err != nil {
					return err
				}
			}
			defer teardown() // nolint:errcheck

			l := fieldstore.New(store)
			if err := l.Create(caseID, responder); err != nil {
				return err
			}
			if err := l.SetTargetSystemInfo(targetSystem()); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			runner := &collect.Runner{
				Manager:    m,
				Ledger:     l,
				Strategies: collect.FromCatalog(catalog),
				Catalog:    catalog,
				Timing:     timing,
				Workers:    workers,
				Admin:      isAdmin(),
			}
			report, runErr := runner.Run(ctx, plan)
			finalizeErr := l.Finalize()

			out := cmd.OutOrStdout()
			if report != nil {
				for _, res := range report.Results {
					line := fmt.Sprintf("%-20s %-9s %d artifacts", res.Module, res.Status, len(res.Artifacts))
					if res.Error != "" {
						line += " (" + res.Error + ")"
					}
					fmt.Fprintln(out, line)
				}
			}
			for _, flaw := range l.ValidationErrors() {
				fmt.Fprintln(out, "warning:", flaw)
			}
			fmt.Fprintf(out, "case=%s container=%s artifacts=%d\n", l.CaseID(), filepath.Join(output, l.Root()), len(l.Artifacts()))

			if runErr != nil {
				return runErr
			}
			return finalizeErr
		},
	}
	sel.register(collectCommand)
	collectCommand.Flags().StringVar(&caseID, "case-id", "", "case id (default: random UUID)")
	collectCommand.Flags().StringVar(&responder, "responder", "", "name of the responder")
	collectCommand.Flags().StringVar(&output, "output", ".", "output directory")
	collectCommand.Flags().BoolVar(&archive, "archive", false, "store the container in a SQLite archive")
	collectCommand.Flags().StringVar(&timingName, "timing", "", "timing preset (fast, normal, safe), default: from profile")
	collectCommand.Flags().Float64Var(&multiplier, "speed", 0, "delay multiplier")
	collectCommand.Flags().IntVar(&workers, "workers", 1, "number of modules running at the same time")
	_ = collectCommand.MarkFlagRequired("responder")
	return collectCommand
}

func archiveName(caseID string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, caseID) + ".sqlar"
}

func targetSystem() fieldstore.TargetSystemInfo {
	info := fieldstore.TargetSystemInfo{
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		IsAdmin:      isAdmin(),
	}
	info.Hostname, _ = os.Hostname()
	if u, err := user.Current(); err == nil {
		info.Username = u.Username
	}
	if addrs, err := net.InterfaceAddrs(); err == nil {
		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				info.IPAddresses = append(info.IPAddresses, ipnet.IP.String())
			}
		}
	}
	return info
}

func isAdmin() bool {
	return os.Geteuid() == 0
}
