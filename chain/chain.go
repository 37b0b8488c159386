// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package chain composes job groups into ordered pipelines. A Chain
// holds a statically known list of stages and a pipeline state. Each
// stage, in order, derives its configuration and its job group from
// the current state, and, for every stage but the first, derives its
// dependency on the job handles returned by the previous stage's
// submission. Each of these steps may replace the state, which is
// then passed on to the next step and stage.
//
// Pipelines that repeat are unrolled when the chain is built (see
// Loops): every iteration is an ordinary stage with its own
// state-dependent configuration and dependency.
//
// Stages are submitted strictly in sequence. A Chain performs no
// recovery: a failing stage leaves the chain at that stage, and stages
// that were already submitted are left to the scheduler.
package chain

import (
	"context"
	"fmt"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/eventlog"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/status"
	"github.com/grailbio/bigbatch/job"
)

// ErrExhausted is returned by SubmitNext when every stage of the chain
// has been submitted.
var ErrExhausted = errors.New("chain: all stages have been submitted")

// Config is a pipeline-defined configuration value. The chain's base
// configuration is passed to every stage's MakeConfig.
type Config interface{}

// State is a pipeline-defined value threaded through the chain.
type State interface{}

// A Stage is one position in a chain. Its methods are invoked in
// order, each receiving the state returned by the previous call.
type Stage interface {
	// MakeConfig derives the stage's configuration from the chain's
	// base configuration.
	MakeConfig(base Config, state State) (Config, State, error)
	// MakeJobGroup returns the job group submitted by the stage.
	MakeJobGroup(config Config, state State) (job.Group, State, error)
	// MakeDependency computes the stage's dependencies from the
	// handles returned by the previous stage. It is not called for
	// the first stage of a chain.
	MakeDependency(last []job.Handle, state State) ([]job.Dependency, State, error)
}

// Phase identifies the step of a stage transition.
type Phase int

const (
	PhaseConfig Phase = iota
	PhaseJobGroup
	PhaseDependency
	PhaseSubmit
)

var phases = [...]string{
	PhaseConfig:     "config",
	PhaseJobGroup:   "job group",
	PhaseDependency: "dependency",
	PhaseSubmit:     "submit",
}

// String returns the phase's name.
func (p Phase) String() string {
	return phases[p]
}

// StageError reports the failure of a stage transition.
type StageError struct {
	// Stage is the index of the failed stage.
	Stage int
	// Phase is the step that failed.
	Phase Phase
	Err   error
}

// Error implements error.
func (e *StageError) Error() string {
	return fmt.Sprintf("chain: stage %d: %s: %v", e.Stage, e.Phase, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}

// Kind returns the errors.Kind of the underlying error.
func (e *StageError) Kind() errors.Kind {
	return errors.Recover(e.Err).Kind
}

// An Option is a chain configuration parameter.
type Option func(c *Chain)

// Loops unrolls the chain's stages n times: a chain over stages
// [a, b] with Loops(2) comprises stages [a, b, a, b]. New rejects
// n <= 0.
func Loops(n int) Option {
	return func(c *Chain) {
		c.loops = n
	}
}

// InitialState sets the state passed to the first stage. The default
// initial state is nil.
func InitialState(s State) Option {
	return func(c *Chain) {
		c.state = s
	}
}

// Eventer configures the chain with an Eventer to which stage
// submissions are logged.
func Eventer(e eventlog.Eventer) Option {
	return func(c *Chain) {
		c.eventer = e
	}
}

// Status configures the chain to report stage progress to a status
// group.
func Status(group *status.Group) Option {
	return func(c *Chain) {
		c.status = group
	}
}

// Unroll returns the concatenation of n copies of stages.
func Unroll(stages []Stage, n int) []Stage {
	unrolled := make([]Stage, 0, n*len(stages))
	for i := 0; i < n; i++ {
		unrolled = append(unrolled, stages...)
	}
	return unrolled
}

// Chain is the stage machine. Its state comprises the index of the
// next stage to submit, the pipeline state, and the handles returned
// by the last submission (nil before the first). A Chain must not be
// used concurrently.
type Chain struct {
	base    Config
	stages  []Stage
	loops   int
	eventer eventlog.Eventer
	status  *status.Group

	index   int
	state   State
	last    []job.Handle
	seed    []job.Dependency
	history []job.Group
}

// New returns a chain over the provided stages, which may be unrolled
// by the Loops option. It returns an error of kind errors.Invalid if
// the options are invalid.
func New(base Config, stages []Stage, opts ...Option) (*Chain, error) {
	c := &Chain{
		base:    base,
		loops:   1,
		eventer: eventlog.Nop{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.loops <= 0 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("chain: invalid loop count %d", c.loops))
	}
	c.stages = Unroll(stages, c.loops)
	return c, nil
}

// Len returns the number of stages in the chain, after unrolling.
func (c *Chain) Len() int {
	return len(c.stages)
}

// Index returns the index of the next stage to be submitted. It equals
// Len when the chain is complete.
func (c *Chain) Index() int {
	return c.index
}

// Done tells whether every stage has been submitted.
func (c *Chain) Done() bool {
	return c.index == len(c.stages)
}

// State returns the current pipeline state.
func (c *Chain) State() State {
	return c.state
}

// Last returns the handles returned by the most recent submission,
// or nil if no stage has been submitted.
func (c *Chain) Last() []job.Handle {
	if c.last == nil {
		return nil
	}
	return append([]job.Handle(nil), c.last...)
}

// History returns the job groups submitted so far, in order.
func (c *Chain) History() []job.Group {
	return append([]job.Group(nil), c.history...)
}

// Submit submits every remaining stage, in order. It returns the first
// error encountered; the chain is then left at the failing stage.
func (c *Chain) Submit(ctx context.Context) error {
	for !c.Done() {
		if err := c.SubmitNext(ctx); err != nil {
			return err
		}
	}
	return nil
}

// SubmitNext submits the next stage. It returns ErrExhausted, without
// submitting anything, if every stage has been submitted. Failures
// are returned as *StageError; the chain's index, state, and last
// handles are then left unchanged.
func (c *Chain) SubmitNext(ctx context.Context) (err error) {
	if c.Done() {
		return ErrExhausted
	}
	var (
		index = c.index
		stage = c.stages[index]
		task  *status.Task
	)
	if c.status != nil {
		task = c.status.Start(fmt.Sprintf("stage %d/%d", index+1, len(c.stages)))
		defer func() {
			if err != nil {
				task.Printf("failed: %v", err)
			}
			task.Done()
		}()
	}
	fail := func(phase Phase, err error) error {
		log.Error.Printf("chain: stage %d: %s: %v", index, phase, err)
		c.eventer.Event("bigbatch:stageFailed", "stage", index, "phase", phase.String())
		return &StageError{Stage: index, Phase: phase, Err: err}
	}

	config, state, err := stage.MakeConfig(c.base, c.state)
	if err != nil {
		return fail(PhaseConfig, err)
	}
	group, state, err := stage.MakeJobGroup(config, state)
	if err != nil {
		return fail(PhaseJobGroup, err)
	}
	if group == nil {
		return fail(PhaseJobGroup, errors.E(errors.Invalid, "nil job group"))
	}
	var deps []job.Dependency
	switch {
	case c.last != nil:
		deps, state, err = stage.MakeDependency(c.Last(), state)
		if err != nil {
			return fail(PhaseDependency, err)
		}
	case index == 0:
		deps = c.seed
	}
	handles, err := group.Submit(ctx, deps)
	if err != nil {
		return fail(PhaseSubmit, err)
	}
	if len(handles) == 0 {
		return fail(PhaseSubmit, errors.E(errors.Invalid, "job group returned no handles"))
	}

	c.history = append(c.history, group)
	c.last = append([]job.Handle(nil), handles...)
	c.state = state
	c.index++
	log.Printf("chain: stage %d/%d: submitted %v", c.index, len(c.stages), handles)
	c.eventer.Event("bigbatch:stageSubmitted",
		"stage", index,
		"numStages", len(c.stages),
		"numHandles", len(handles),
		"dependency", job.FormatDependencies(deps))
	if task != nil {
		task.Printf("submitted %v", handles)
	}
	return nil
}

// AsGroup returns a job.Group that submits the chain's remaining
// stages. Dependencies passed to the group's Submit are applied to the
// chain's first stage, if it has not yet been submitted; the group
// returns the handles of the chain's final stage. Chains may thus be
// nested as stages of other chains.
func (c *Chain) AsGroup() job.Group {
	return chainGroup{c}
}

type chainGroup struct{ *Chain }

func (g chainGroup) Submit(ctx context.Context, deps []job.Dependency) ([]job.Handle, error) {
	if g.index == 0 {
		g.seed = deps
	}
	if err := g.Chain.Submit(ctx); err != nil {
		return nil, err
	}
	return g.Last(), nil
}
