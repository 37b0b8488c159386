// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package recorder provides an in-memory job.Scheduler that records
// submissions instead of running them. It is used in tests and for
// dry runs of pipelines.
package recorder

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/bigbatch/job"
)

// A Submission is a recorded submission.
type Submission struct {
	Handle job.Handle
	Spec   job.Spec
}

// String returns a one-line description of the submission.
func (s Submission) String() string {
	str := fmt.Sprintf("%s %s", s.Handle, s.Spec.Name)
	if len(s.Spec.Array) > 0 {
		str += fmt.Sprintf(" array=%v", s.Spec.Array)
	}
	if len(s.Spec.Dependencies) > 0 {
		str += " dependency=" + job.FormatDependencies(s.Spec.Dependencies)
	}
	return str
}

// Scheduler records submitted jobs and issues sequential numeric
// handles.
type Scheduler struct {
	// Reject, if set, is consulted before each submission; a non-nil
	// error rejects the submission.
	Reject func(job.Spec) error
	// Verbose logs every submission.
	Verbose bool

	mu          sync.Mutex
	next        int
	submissions []Submission
}

// New returns a new recording scheduler whose first handle is first.
func New(first int) *Scheduler {
	return &Scheduler{next: first}
}

// Submit implements job.Scheduler.
func (s *Scheduler) Submit(ctx context.Context, spec job.Spec) (job.Handle, error) {
	if s.Reject != nil {
		if err := s.Reject(spec); err != nil {
			return "", errors.E(errors.Unavailable, fmt.Sprintf("submit %s", spec.Name), err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	h := job.Handle(strconv.Itoa(s.next))
	s.next++
	sub := Submission{Handle: h, Spec: copySpec(spec)}
	s.submissions = append(s.submissions, sub)
	if s.Verbose {
		log.Printf("recorder: %s", sub)
	}
	return h, nil
}

// Submissions returns the recorded submissions, in submission order.
func (s *Scheduler) Submissions() []Submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Submission(nil), s.submissions...)
}

func copySpec(spec job.Spec) job.Spec {
	spec.Args = append([]string(nil), spec.Args...)
	spec.Array = append([]int(nil), spec.Array...)
	if spec.Dependencies != nil {
		deps := make([]job.Dependency, len(spec.Dependencies))
		for i, d := range spec.Dependencies {
			deps[i] = job.Dependency{Condition: d.Condition, Handles: append([]job.Handle(nil), d.Handles...)}
		}
		spec.Dependencies = deps
	}
	return spec
}
