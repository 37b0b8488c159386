// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package manysmall assembles the many-small-jobs pipeline: an input
// file of items is partitioned into per-task batches, a job array
// runs a registered transformation over every batch, and a final
// merge job, which runs only once every element of the array has
// succeeded, combines the results into a single file.
//
// Both jobs run the bigbatch command: the array job runs
// "bigbatch run" and the merge job runs "bigbatch merge".
package manysmall

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/bigbatch/chain"
	"github.com/grailbio/bigbatch/job"
	"github.com/grailbio/bigbatch/partition"
	"github.com/grailbio/bigbatch/store"
)

// MergedResultsName is the name of the merged result file within
// the results directory.
const MergedResultsName = "merged_results.txt"

// Config describes a many-small-jobs pipeline.
type Config struct {
	// ResultsDir is the directory (or URL prefix) under which all
	// intermediate and final outputs are written.
	ResultsDir string
	// InputFile contains the items to process, one per line; see
	// partition.ReadItems.
	InputFile string
	// Func is the name of the registered transformation applied to
	// every item.
	Func string
	// Array is the job array specification of the main job, in Slurm
	// syntax, e.g., "0-9" or "1,3,5-7".
	Array string
	// Script is the bigbatch command run by the jobs.
	Script string

	// Main is the resource request of each element of the main job
	// array; Main.NTasks is the number of tasks (and batches) per
	// element.
	Main job.Resources
	// Merge is the resource request of the merge job.
	Merge job.Resources
}

// Validate returns an error of kind errors.Invalid if the
// configuration is incomplete.
func (c Config) Validate() error {
	var missing []string
	if c.ResultsDir == "" {
		missing = append(missing, "results directory")
	}
	if c.InputFile == "" {
		missing = append(missing, "input file")
	}
	if c.Func == "" {
		missing = append(missing, "func")
	}
	if c.Array == "" {
		missing = append(missing, "array")
	}
	if len(missing) > 0 {
		return errors.E(errors.Invalid, fmt.Sprintf("manysmall: missing %v", missing))
	}
	if err := c.Main.Validate(job.FieldNTasks, job.FieldMemPerCPU, job.FieldTime, job.FieldAccount); err != nil {
		return errors.E("manysmall: main job", err)
	}
	if err := c.Merge.Validate(job.FieldMemPerCPU, job.FieldAccount); err != nil {
		return errors.E("manysmall: merge job", err)
	}
	_, err := c.Layout()
	return err
}

// Layout returns the partition layout of the main job.
func (c Config) Layout() (partition.Layout, error) {
	array, err := partition.ParseArray(c.Array)
	if err != nil {
		return partition.Layout{}, err
	}
	l := partition.Layout{Array: array, TasksPerElement: c.Main.NTasks}
	return l, l.Validate()
}

// TmpDir is the directory of intermediate files.
func (c Config) TmpDir() string {
	return file.Join(c.ResultsDir, "tmp")
}

// BatchedDataDir is the directory of the partitioned input batches.
func (c Config) BatchedDataDir() string {
	return file.Join(c.TmpDir(), "data_batched")
}

// BatchedResultsDir is the directory of the per-task result files.
func (c Config) BatchedResultsDir() string {
	return file.Join(c.TmpDir(), "results_batched")
}

// MergedResultsFile is the path of the final, merged result file.
func (c Config) MergedResultsFile() string {
	return file.Join(c.ResultsDir, MergedResultsName)
}

// Setup reads the input file and partitions its items into
// BatchedDataDir.
func (c Config) Setup(ctx context.Context) (partition.Summary, error) {
	if err := c.Validate(); err != nil {
		return partition.Summary{}, err
	}
	l, err := c.Layout()
	if err != nil {
		return partition.Summary{}, err
	}
	f, err := file.Open(ctx, c.InputFile)
	if err != nil {
		return partition.Summary{}, err
	}
	defer f.Close(ctx)
	items, err := partition.ReadItems(f.Reader(ctx))
	if err != nil {
		return partition.Summary{}, errors.E(fmt.Sprintf("manysmall: read %s", c.InputFile), err)
	}
	summary, err := partition.Write(ctx, &store.File{Prefix: c.BatchedDataDir()}, items, l)
	if err != nil {
		return partition.Summary{}, err
	}
	log.Printf("manysmall: partitioned %s into %s", c.InputFile, c.BatchedDataDir())
	return summary, nil
}

// EstimateTotalTime estimates the wall-clock time taken by the main
// job to process runs items, given the time taken by a single run.
func (c Config) EstimateTotalTime(runs int, single time.Duration) (time.Duration, error) {
	l, err := c.Layout()
	if err != nil {
		return 0, err
	}
	return partition.EstimateTotalTime(runs, single, l)
}

func (c Config) script() string {
	if c.Script == "" {
		return "bigbatch"
	}
	return c.Script
}

// MainGroup returns the job array that runs the transformation over
// every batch. Each array element launches one executor process per
// task.
func (c Config) MainGroup(sched job.Scheduler) (*job.Array, error) {
	l, err := c.Layout()
	if err != nil {
		return nil, err
	}
	return &job.Array{
		Scheduler: sched,
		Spec: job.Spec{
			Name:   "bigbatch-main",
			Script: c.script(),
			Args: []string{
				"run",
				"-func", c.Func,
				"-in", c.BatchedDataDir(),
				"-out", c.BatchedResultsDir(),
				"-ntasks", strconv.Itoa(l.TasksPerElement),
			},
			Launch:    job.LaunchTasks,
			Array:     l.Array,
			Resources: c.Main,
		},
	}, nil
}

// MergeGroup returns the job that merges the results of the main
// job.
func (c Config) MergeGroup(sched job.Scheduler) *job.Template {
	return &job.Template{
		Scheduler: sched,
		Spec: job.Spec{
			Name:   "bigbatch-merge",
			Script: c.script(),
			Args: []string{
				"merge",
				"-in", "{{.results}}",
				"-array", "{{.array}}",
				"-ntasks", "{{.ntasks}}",
				"-out", "{{.merged}}",
			},
			Launch:    job.LaunchCommand,
			Resources: c.Merge,
		},
		Params: map[string]string{
			"results": c.BatchedResultsDir(),
			"array":   c.Array,
			"ntasks":  strconv.Itoa(c.Main.NTasks),
			"merged":  c.MergedResultsFile(),
		},
	}
}

// Stages returns the stages of the pipeline: the main job array,
// followed by the merge job, which depends on the successful
// completion of the main job. The stages expect the chain's base
// configuration to be a Config.
func Stages(sched job.Scheduler) []chain.Stage {
	return []chain.Stage{
		chain.Funcs{
			Config: validate,
			JobGroup: func(config chain.Config, state chain.State) (job.Group, chain.State, error) {
				g, err := config.(Config).MainGroup(sched)
				return g, state, err
			},
		},
		chain.Funcs{
			Config: validate,
			JobGroup: func(config chain.Config, state chain.State) (job.Group, chain.State, error) {
				return config.(Config).MergeGroup(sched), state, nil
			},
			Dependency: func(last []job.Handle, state chain.State) ([]job.Dependency, chain.State, error) {
				return job.On(job.AfterOK, last), state, nil
			},
		},
	}
}

func validate(base chain.Config, state chain.State) (chain.Config, chain.State, error) {
	c, ok := base.(Config)
	if !ok {
		return nil, state, errors.E(errors.Invalid, fmt.Sprintf("manysmall: unexpected configuration type %T", base))
	}
	return c, state, c.Validate()
}

// Pipeline returns a chain that submits the pipeline described by c
// to sched.
func (c Config) Pipeline(sched job.Scheduler, opts ...chain.Option) (*chain.Chain, error) {
	return chain.New(c, Stages(sched), opts...)
}
