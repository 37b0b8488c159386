// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package job

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"text/template"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

func submit(ctx context.Context, sched Scheduler, spec Spec, deps []Dependency) (Handle, error) {
	if sched == nil {
		return "", errors.E(errors.Invalid, fmt.Sprintf("job %s: no scheduler", spec.Name))
	}
	if err := ValidateDependencies(deps); err != nil {
		return "", errors.E(fmt.Sprintf("job %s", spec.Name), err)
	}
	spec.Dependencies = deps
	h, err := sched.Submit(ctx, spec)
	if err != nil {
		return "", err
	}
	if deps == nil {
		log.Printf("job %s: submitted %s", spec.Name, h)
	} else {
		log.Printf("job %s: submitted %s (dependency %s)", spec.Name, h, FormatDependencies(deps))
	}
	return h, nil
}

// Single is a group comprising a single job.
type Single struct {
	Scheduler Scheduler
	Spec      Spec
}

// Submit implements Group. It returns a single handle.
func (s *Single) Submit(ctx context.Context, deps []Dependency) ([]Handle, error) {
	h, err := submit(ctx, s.Scheduler, s.Spec, deps)
	if err != nil {
		return nil, err
	}
	return []Handle{h}, nil
}

// Array is a group comprising a single job array ("many small jobs"):
// each array element runs Spec.Resources.NTasks tasks, and each task
// typically runs the executor over its own batch.
type Array struct {
	Scheduler Scheduler
	Spec      Spec
	// PerElement returns one handle per array element, formatted as
	// "{job}_{element}", instead of a single handle for the whole
	// array. Per-element handles let dependent stages condition on
	// individual elements.
	PerElement bool
}

// Validate returns an error of kind errors.Invalid if the array job
// is underspecified.
func (a *Array) Validate() error {
	if len(a.Spec.Array) == 0 {
		return errors.E(errors.Invalid, fmt.Sprintf("array job %s: empty array", a.Spec.Name))
	}
	if err := a.Spec.Resources.Validate(FieldNTasks); err != nil {
		return errors.E(fmt.Sprintf("array job %s", a.Spec.Name), err)
	}
	return nil
}

// Submit implements Group.
func (a *Array) Submit(ctx context.Context, deps []Dependency) ([]Handle, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	h, err := submit(ctx, a.Scheduler, a.Spec, deps)
	if err != nil {
		return nil, err
	}
	if !a.PerElement {
		return []Handle{h}, nil
	}
	return ElementHandles(h, a.Spec.Array), nil
}

// ElementHandles returns the handles of the provided elements of the
// job array with handle h, in ascending element order.
func ElementHandles(h Handle, array []int) []Handle {
	elems := append([]int(nil), array...)
	sort.Ints(elems)
	handles := make([]Handle, len(elems))
	for i, e := range elems {
		handles[i] = Handle(fmt.Sprintf("%s_%d", h, e))
	}
	return handles
}

// Template is a group comprising a single job whose script arguments
// are derived from a parameter mapping: each element of Spec.Args is
// a text/template executed against Params. Referencing a parameter
// that is not in Params is an error.
type Template struct {
	Scheduler Scheduler
	Spec      Spec
	Params    map[string]string
}

// Args renders the templated arguments.
func (t *Template) Args() ([]string, error) {
	args := make([]string, len(t.Spec.Args))
	for i, arg := range t.Spec.Args {
		tmpl, err := template.New(fmt.Sprintf("arg%d", i)).Option("missingkey=error").Parse(arg)
		if err != nil {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("job %s: argument %q", t.Spec.Name, arg), err)
		}
		var b bytes.Buffer
		if err := tmpl.Execute(&b, t.Params); err != nil {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("job %s: argument %q", t.Spec.Name, arg), err)
		}
		args[i] = b.String()
	}
	return args, nil
}

// Submit implements Group. It returns a single handle.
func (t *Template) Submit(ctx context.Context, deps []Dependency) ([]Handle, error) {
	args, err := t.Args()
	if err != nil {
		return nil, err
	}
	spec := t.Spec
	spec.Args = args
	h, err := submit(ctx, t.Scheduler, spec, deps)
	if err != nil {
		return nil, err
	}
	return []Handle{h}, nil
}
