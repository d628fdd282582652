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
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/forensicanalysis/fieldstore"
	"github.com/forensicanalysis/fieldstore/profile"
	"github.com/forensicanalysis/fieldstore/scheduler"
)

// Action types written by the runner.
const (
	ActionCollectionStarted   = "COLLECTION_STARTED"
	ActionModuleStarted       = "MODULE_STARTED"
	ActionModuleCompleted     = "MODULE_COMPLETED"
	ActionModuleFailed        = "MODULE_FAILED"
	ActionModuleSkipped       = "MODULE_SKIPPED"
	ActionCollectionCompleted = "COLLECTION_COMPLETED"
)

// Runner executes an execution plan.
type Runner struct {
	Manager    *scheduler.Manager
	Ledger     *fieldstore.Ledger
	Strategies *Registry
	// Catalog provides the module definitions passed to strategies. It may
	// be nil.
	Catalog *profile.Catalog
	// Timing is the initial timing. It is adapted to the observed module
	// runtimes during a run.
	Timing profile.Timing
	// Workers bounds the number of modules running at the same time.
	Workers int
	// Admin reports whether the collector runs with administrator
	// privileges. Modules that require them are skipped otherwise.
	Admin   bool
	TempDir string

	mu        sync.Mutex
	artifacts map[string][]string
	timing    profile.Timing
}

// Result describes the outcome of one planned module.
type Result struct {
	Module    string
	Status    scheduler.Status
	Artifacts []string
	Error     string
	Runtime   time.Duration
}

// Report summarizes a collection run.
type Report struct {
	// Results holds one entry per planned module in plan order.
	Results  []Result
	Stats    scheduler.Stats
	Duration time.Duration
	// Timing is the timing adapted during the run.
	Timing profile.Timing
}

// Result returns the result of a module.
func (r *Report) Result(id string) (Result, bool) {
	for _, res := range r.Results {
		if res.Module == id {
			return res, true
		}
	}
	return Result{}, false
}

// Count returns the number of results with the given status.
func (r *Report) Count(status scheduler.Status) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}

// Run executes the plan. Ready modules are started one after another and
// run concurrently up to the worker limit. A module that fails or is
// skipped causes all its planned dependents to be skipped. If ctx is
// cancelled, running modules are interrupted and all remaining modules are
// skipped. The report is returned together with any error.
func (r *Runner) Run(ctx context.Context, plan *scheduler.ExecutionPlan) (*Report, error) {
	if r.Manager == nil || r.Ledger == nil || r.Strategies == nil {
		return nil, errors.New("runner needs a manager, a ledger and strategies")
	}
	if err := r.Manager.ValidateExecutionPlan(plan); err != nil {
		return nil, err
	}
	workers := r.Workers
	if workers < 1 {
		workers = 1
	}
	r.mu.Lock()
	r.artifacts = map[string][]string{}
	r.timing = r.Timing
	r.mu.Unlock()

	start := time.Now()
	if err := r.Ledger.LogAction(ActionCollectionStarted, plan.Summary(), fieldstore.ResultSuccess); err != nil {
		return nil, err
	}
	log.Printf("collect: %s", plan.Summary())

	planned := map[string]bool{}
	for _, id := range plan.Order {
		planned[id] = true
	}
	dispatched := map[string]bool{}
	done := make(chan string, len(plan.Order))
	g, gctx := errgroup.WithContext(ctx)
	running := 0

	for {
		if gctx.Err() == nil {
			for _, id := range r.Manager.ReadyModules() {
				if running >= workers {
					break
				}
				if !planned[id] || dispatched[id] {
					continue
				}
				if reason := r.precheck(id); reason != "" {
					dispatched[id] = true
					r.skip(id, reason, planned)
					continue
				}
				if err := r.Manager.StartModule(id); err != nil {
					// a conflicting module was started in this round
					continue
				}
				dispatched[id] = true
				running++
				id := id
				g.Go(func() error {
					defer func() { done <- id }()
					return r.execute(gctx, id)
				})
			}
		}
		if running == 0 {
			break
		}
		id := <-done
		running--
		if mod, err := r.Manager.GetModule(id); err == nil && mod.Status != scheduler.StatusCompleted {
			r.skipDependents(id, mod.Status, planned)
		}
	}
	runErr := g.Wait()

	reason := "dependencies not completed"
	if ctx.Err() != nil || runErr != nil {
		reason = "collection cancelled"
	}
	for _, id := range plan.Order {
		mod, err := r.Manager.GetModule(id)
		if err != nil || mod.Status.Finished() || mod.Status == scheduler.StatusDisabled {
			continue
		}
		r.skip(id, reason, nil)
	}

	report := r.report(plan, time.Since(start))
	result := fieldstore.ResultSuccess
	if report.Count(scheduler.StatusFailed) > 0 || report.Count(scheduler.StatusSkipped) > 0 {
		result = fieldstore.ResultWarnings
	}
	details := fmt.Sprintf("Completed: %d, Failed: %d, Skipped: %d",
		report.Count(scheduler.StatusCompleted), report.Count(scheduler.StatusFailed), report.Count(scheduler.StatusSkipped))
	if err := r.Ledger.LogAction(ActionCollectionCompleted, details, result); err != nil && runErr == nil {
		runErr = err
	}
	log.Printf("collect: %s", details)

	if runErr != nil {
		return report, runErr
	}
	return report, ctx.Err()
}

func (r *Runner) precheck(id string) string {
	if _, err := r.Strategies.Lookup(id); err != nil {
		return ErrNoStrategy.Error()
	}
	mod, err := r.Manager.GetModule(id)
	if err != nil {
		return err.Error()
	}
	if mod.RequiresAdmin && !r.Admin {
		return "requires administrator privileges"
	}
	return ""
}

// execute runs a started module. Only ledger state errors are returned,
// module failures are recorded in the scheduler.
func (r *Runner) execute(ctx context.Context, id string) error {
	mod, err := r.Manager.GetModule(id)
	if err != nil {
		return err
	}
	strategy, err := r.Strategies.Lookup(id)
	if err != nil {
		return r.fail(ctx, id, err.Error())
	}
	env := Env{Module: mod, Timing: r.currentTiming(), TempDir: r.TempDir}
	if r.Catalog != nil {
		env.Definition, _ = r.Catalog.Get(id)
	}

	if err := r.Ledger.LogAction(ActionModuleStarted, "Module: "+id, fieldstore.ResultSuccess); err != nil {
		_ = r.Manager.FailModule(id, err.Error())
		return err
	}
	log.Printf("collect: running %s", id)

	mctx, cancel := ctx, context.CancelFunc(func() {})
	if mod.Timeout > 0 {
		mctx, cancel = context.WithTimeout(ctx, mod.Timeout)
	}
	started := time.Now()
	outcome, err := strategy.Execute(mctx, env)
	r.observe(mod.EstimatedDuration, time.Since(started))
	timedOut := errors.Is(mctx.Err(), context.DeadlineExceeded)
	cancel()
	if err != nil {
		switch {
		case timedOut:
			err = errors.Errorf("timed out after %s", mod.Timeout)
		case ctx.Err() != nil:
			r.skip(id, "collection cancelled", nil)
			return nil
		}
		return r.fail(ctx, id, err.Error())
	}

	var ids, failures []string
	for _, out := range outcome.Outputs {
		typ := out.Type
		if typ == "" {
			typ = fieldstore.ParseArtifactType(env.Definition.ArtifactType)
		}
		aid, err := r.Ledger.Ingest(fieldstore.Artifact{
			Type:       typ,
			Filename:   out.Filename,
			Data:       out.Data,
			Compress:   out.Compress,
			Method:     "automated",
			SourcePath: out.SourcePath,
			Module:     id,
		})
		if err != nil {
			if fatal(err) {
				_ = r.Manager.FailModule(id, err.Error())
				return err
			}
			failures = append(failures, err.Error())
			continue
		}
		ids = append(ids, aid)
	}
	r.mu.Lock()
	r.artifacts[id] = ids
	r.mu.Unlock()

	if len(failures) > 0 {
		return r.fail(ctx, id, strings.Join(failures, "; "))
	}
	if err := r.Manager.CompleteModule(id, true); err != nil {
		return err
	}
	details := fmt.Sprintf("Module: %s, Artifacts: %d", id, len(ids))
	if outcome.Details != "" {
		details += ", " + outcome.Details
	}
	log.Printf("collect: %s completed", id)
	return r.Ledger.LogAction(ActionModuleCompleted, details, fieldstore.ResultSuccess)
}

func fatal(err error) bool {
	return errors.Is(err, fieldstore.ErrSealed) || errors.Is(err, fieldstore.ErrContainerNotOpen) || errors.Is(err, fieldstore.ErrReadOnly)
}

func (r *Runner) fail(ctx context.Context, id, msg string) error {
	log.Printf("collect: %s failed: %s", id, msg)
	if err := r.Manager.FailModule(id, msg); err != nil {
		return err
	}
	if err := r.Ledger.LogAction(ActionModuleFailed, fmt.Sprintf("Module: %s, Error: %s", id, msg), fieldstore.ResultFailed); err != nil {
		return err
	}
	_ = r.currentTiming().Pause(ctx, "error")
	return nil
}

func (r *Runner) currentTiming() profile.Timing {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.timing
}

// observe adapts the timing to a module that took took instead of its
// scaled estimate.
func (r *Runner) observe(estimate, took time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	adapted := r.timing.ObserveRuntime(r.timing.Scale(estimate), took)
	if adapted.Multiplier != r.timing.Multiplier {
		log.Printf("collect: timing multiplier %.2f -> %.2f", r.timing.Multiplier, adapted.Multiplier)
	}
	r.timing = adapted
}

// skip marks a module as skipped. If planned is not nil, its planned
// dependents are skipped as well. Forced dependents are kept.
func (r *Runner) skip(id, reason string, planned map[string]bool) {
	if err := r.Manager.SkipModule(id, reason); err != nil {
		log.Printf("collect: could not skip %s: %s", id, err)
		return
	}
	log.Printf("collect: skipped %s: %s", id, reason)
	if err := r.Ledger.LogAction(ActionModuleSkipped, fmt.Sprintf("Module: %s, Reason: %s", id, reason), fieldstore.ResultWarnings); err != nil {
		log.Printf("collect: %s", err)
	}
	if planned != nil {
		r.skipDependents(id, scheduler.StatusSkipped, planned)
	}
}

func (r *Runner) skipDependents(id string, status scheduler.Status, planned map[string]bool) {
	for _, dependent := range r.Manager.Dependents(id) {
		if !planned[dependent] {
			continue
		}
		mod, err := r.Manager.GetModule(dependent)
		if err != nil || mod.Forced || (mod.Status != scheduler.StatusPending && mod.Status != scheduler.StatusReady) {
			continue
		}
		r.skip(dependent, fmt.Sprintf("dependency %s %s", id, status), planned)
	}
}

func (r *Runner) report(plan *scheduler.ExecutionPlan, duration time.Duration) *Report {
	r.mu.Lock()
	defer r.mu.Unlock()

	report := &Report{Stats: r.Manager.Stats(), Duration: duration, Timing: r.timing}
	for _, id := range plan.Order {
		mod, err := r.Manager.GetModule(id)
		if err != nil {
			continue
		}
		report.Results = append(report.Results, Result{
			Module:    id,
			Status:    mod.Status,
			Artifacts: r.artifacts[id],
			Error:     mod.Error,
			Runtime:   mod.Runtime(),
		})
	}
	return report
}
