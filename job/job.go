// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package job describes submissions to an external cluster scheduler.
// A Group is a set of submissions sharing an array axis; submitting a
// group, possibly conditioned on previously submitted jobs, yields the
// handles of the submitted jobs. Submission is the only point at which
// bigbatch communicates with the scheduler.
package job

import (
	"context"
	"fmt"
	"strings"

	"github.com/grailbio/base/errors"
)

// A Handle is an opaque identifier returned by the scheduler for a
// submitted job, or for one element of a submitted job array.
type Handle string

// A Condition names the predecessor outcome under which a dependent
// job may run. Conditions are passed through to the scheduler; the
// constants below use Slurm's vocabulary.
type Condition string

const (
	// After runs the dependent job once its predecessors have started.
	After Condition = "after"
	// AfterAny runs the dependent job once its predecessors have
	// terminated, in any state.
	AfterAny Condition = "afterany"
	// AfterOK runs the dependent job once its predecessors have
	// completed successfully.
	AfterOK Condition = "afterok"
	// AfterNotOK runs the dependent job once its predecessors have
	// failed.
	AfterNotOK Condition = "afternotok"
	// AfterCorr runs each element of a dependent array job once the
	// corresponding element of the predecessor array has completed
	// successfully.
	AfterCorr Condition = "aftercorr"
)

// A Dependency conditions a submission on a set of previously
// submitted jobs.
type Dependency struct {
	Condition Condition
	Handles   []Handle
}

// String returns the dependency in scheduler syntax, formatted as:
//
//	{d.Condition}:{d.Handles[0]}:{d.Handles[1]}...
func (d Dependency) String() string {
	parts := make([]string, 0, len(d.Handles)+1)
	parts = append(parts, string(d.Condition))
	for _, h := range d.Handles {
		parts = append(parts, string(h))
	}
	return strings.Join(parts, ":")
}

// On returns a single dependency on all of the provided handles.
func On(cond Condition, handles []Handle) []Dependency {
	return []Dependency{{Condition: cond, Handles: append([]Handle(nil), handles...)}}
}

// Each returns one dependency per handle, all with the same
// condition. Use Each when the condition must be evaluated per
// predecessor, for example per element of an array job.
func Each(cond Condition, handles []Handle) []Dependency {
	deps := make([]Dependency, len(handles))
	for i, h := range handles {
		deps[i] = Dependency{Condition: cond, Handles: []Handle{h}}
	}
	return deps
}

// ValidateDependencies returns an error of kind errors.Invalid if any
// dependency lacks a condition or handles.
func ValidateDependencies(deps []Dependency) error {
	for i, d := range deps {
		if d.Condition == "" {
			return errors.E(errors.Invalid, fmt.Sprintf("dependency %d: missing condition", i))
		}
		if len(d.Handles) == 0 {
			return errors.E(errors.Invalid, fmt.Sprintf("dependency %d (%s): no handles", i, d.Condition))
		}
		for _, h := range d.Handles {
			if h == "" {
				return errors.E(errors.Invalid, fmt.Sprintf("dependency %d (%s): empty handle", i, d.Condition))
			}
		}
	}
	return nil
}

// FormatDependencies formats a list of dependencies in scheduler
// syntax; all dependencies must be satisfied, e.g.:
//
//	afterok:1:2,afterany:3
func FormatDependencies(deps []Dependency) string {
	parts := make([]string, len(deps))
	for i, d := range deps {
		parts[i] = d.String()
	}
	return strings.Join(parts, ",")
}

// Launch determines how the scheduler runs a job's Script.
type Launch int

const (
	// LaunchScript submits Script as the job's batch script. The
	// script is responsible for starting the job's tasks.
	LaunchScript Launch = iota
	// LaunchCommand runs Script with Args once, as the job's batch
	// step.
	LaunchCommand
	// LaunchTasks runs Script with Args once per task of the job (or
	// of each array element), so that each process sees its own rank.
	LaunchTasks
)

var launches = [...]string{
	LaunchScript:  "script",
	LaunchCommand: "command",
	LaunchTasks:   "tasks",
}

// String returns the launch mode's name.
func (l Launch) String() string {
	if l < 0 || int(l) >= len(launches) {
		return fmt.Sprintf("Launch(%d)", int(l))
	}
	return launches[l]
}

// A Spec describes a single submission to the scheduler.
type Spec struct {
	// Name is the job name.
	Name string
	// Script is the program or batch script run by the job.
	Script string
	// Launch determines how Script is run.
	Launch Launch
	// Args are the arguments passed to Script.
	Args []string
	// Array is the set of job array elements. A nil Array submits a
	// plain (non-array) job.
	Array []int
	// Resources is the resource request of each job (or array
	// element).
	Resources Resources
	// Dependencies conditions the submission on other jobs.
	Dependencies []Dependency
}

// Scheduler is the narrow interface through which bigbatch submits
// jobs. Implementations live in the scheduler/... packages.
type Scheduler interface {
	// Submit submits the job described by spec and returns its handle.
	// Submit blocks until the scheduler has accepted or rejected the
	// job; rejected submissions return an error of kind
	// errors.Unavailable.
	Submit(ctx context.Context, spec Spec) (Handle, error)
}

// A Group is a set of cluster submissions sharing an array axis.
type Group interface {
	// Submit submits the group, conditioned on deps (which may be
	// nil), and returns the handles of the submitted jobs. Submit is
	// not idempotent: each call submits anew.
	Submit(ctx context.Context, deps []Dependency) ([]Handle, error)
}
