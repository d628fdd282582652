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

// Package collect runs the modules of an execution plan and ingests their
// output into an evidence ledger.
//
// Each module id maps to a Strategy. The Runner asks the scheduler for
// ready modules, executes their strategies on a bounded worker pool and
// records every step in the ledger's action log.
package collect

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/forensicanalysis/fieldstore"
	"github.com/forensicanalysis/fieldstore/profile"
	"github.com/forensicanalysis/fieldstore/scheduler"
)

// ErrNoStrategy is returned when no strategy is registered for a module.
var ErrNoStrategy = errors.New("no collection strategy")

// Env is the input of a strategy run.
type Env struct {
	Module     scheduler.Module
	Definition profile.ModuleDefinition
	Timing     profile.Timing
	// TempDir receives spooled output. The empty string selects the
	// default temporary directory.
	TempDir string
}

// Output is a single artifact produced by a strategy.
type Output struct {
	Type       fieldstore.ArtifactType
	Filename   string
	Data       []byte
	SourcePath string
	Compress   bool
}

// Outcome is the result of a successful strategy run.
type Outcome struct {
	Outputs []Output
	// Details is logged with the module's completion.
	Details string
}

// Strategy collects the evidence of one module.
type Strategy interface {
	Execute(ctx context.Context, env Env) (Outcome, error)
}

// StrategyFunc adapts a function to the Strategy interface.
type StrategyFunc func(ctx context.Context, env Env) (Outcome, error)

// Execute calls f.
func (f StrategyFunc) Execute(ctx context.Context, env Env) (Outcome, error) {
	return f(ctx, env)
}

// Registry maps module ids to strategies.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Strategy
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{strategies: map[string]Strategy{}}
}

// FromCatalog creates a Registry with a CommandStrategy for every catalog
// module that declares a command.
func FromCatalog(c *profile.Catalog) *Registry {
	r := NewRegistry()
	for _, def := range c.Modules {
		if len(def.Command) == 0 {
			continue
		}
		r.strategies[def.ID] = &CommandStrategy{
			Args:    def.Command,
			Output:  def.Output,
			Type:    fieldstore.ParseArtifactType(def.ArtifactType),
			Retries: def.Retries,
		}
	}
	return r
}

// Register adds a strategy for a module id.
func (r *Registry) Register(id string, s Strategy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.strategies[id]; ok {
		return errors.Errorf("strategy for %s already registered", id)
	}
	r.strategies[id] = s
	return nil
}

// Replace adds or replaces the strategy for a module id.
func (r *Registry) Replace(id string, s Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategies[id] = s
}

// Lookup returns the strategy of a module.
func (r *Registry) Lookup(id string) (Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.strategies[id]
	if !ok {
		return nil, errors.Wrap(ErrNoStrategy, id)
	}
	return s, nil
}

// IDs returns the sorted ids of all registered strategies.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.strategies))
	for id := range r.strategies {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
