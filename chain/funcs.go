// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package chain

import (
	"github.com/grailbio/base/errors"
	"github.com/grailbio/bigbatch/job"
)

// Funcs implements Stage with functions. A nil Config passes the base
// configuration through unchanged; a nil Dependency makes the stage
// depend on the successful completion of every job returned by the
// previous stage. JobGroup must be set.
type Funcs struct {
	Config     func(base Config, state State) (Config, State, error)
	JobGroup   func(config Config, state State) (job.Group, State, error)
	Dependency func(last []job.Handle, state State) ([]job.Dependency, State, error)
}

// MakeConfig implements Stage.
func (f Funcs) MakeConfig(base Config, state State) (Config, State, error) {
	if f.Config == nil {
		return base, state, nil
	}
	return f.Config(base, state)
}

// MakeJobGroup implements Stage.
func (f Funcs) MakeJobGroup(config Config, state State) (job.Group, State, error) {
	if f.JobGroup == nil {
		return nil, state, errors.E(errors.Invalid, "stage has no job group func")
	}
	return f.JobGroup(config, state)
}

// MakeDependency implements Stage.
func (f Funcs) MakeDependency(last []job.Handle, state State) ([]job.Dependency, State, error) {
	if f.Dependency == nil {
		return job.On(job.AfterOK, last), state, nil
	}
	return f.Dependency(last, state)
}

// Const returns a stage that always submits the provided group.
func Const(group job.Group) Stage {
	return Funcs{
		JobGroup: func(_ Config, state State) (job.Group, State, error) {
			return group, state, nil
		},
	}
}
