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

package scheduler

import (
	"github.com/pkg/errors"
)

var (
	// ErrDuplicateModule is returned when a module id is registered twice.
	ErrDuplicateModule = errors.New("module already registered")
	// ErrUnknownModule is returned for operations on ids that are not registered.
	ErrUnknownModule = errors.New("unknown module")
	// ErrSelfDependency is returned when a module depends on itself.
	ErrSelfDependency = errors.New("module cannot depend on itself")
	// ErrSelfConflict is returned when a module conflicts with itself.
	ErrSelfConflict = errors.New("module cannot conflict with itself")
	// ErrCyclicDependencies is returned when planning over a cyclic graph.
	ErrCyclicDependencies = errors.New("cyclic dependencies")
	// ErrNotReady is returned when a module is started before it is ready.
	ErrNotReady = errors.New("module is not ready")
	// ErrInvalidTransition is returned for status changes that are not allowed.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrModuleRunning is returned when a running module would be removed or disabled.
	ErrModuleRunning = errors.New("module is running")
	// ErrInvalidPlan is returned by ValidateExecutionPlan.
	ErrInvalidPlan = errors.New("invalid execution plan")
	// ErrUnknownGroup is returned for operations on groups that do not exist.
	ErrUnknownGroup = errors.New("unknown group")
)
