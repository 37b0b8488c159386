// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package exec

import (
	"fmt"
	"strconv"

	"github.com/grailbio/base/errors"
)

// TaskContext describes the position of the current process within
// its job: Rank is the task's index and Size the number of tasks.
// It is resolved once at process entry and passed explicitly to
// Execute.
type TaskContext struct {
	Rank, Size int
}

// String returns a description of the context, formatted as
// "{Rank}/{Size}".
func (c TaskContext) String() string {
	return fmt.Sprintf("%d/%d", c.Rank, c.Size)
}

// Validate returns an error of kind errors.Precondition if the
// context does not describe a task.
func (c TaskContext) Validate() error {
	if c.Size <= 0 || c.Rank < 0 || c.Rank >= c.Size {
		return errors.E(errors.Precondition, fmt.Sprintf("invalid task context: rank %d, size %d", c.Rank, c.Size))
	}
	return nil
}

// envVars lists the (rank, size) environment variable pairs that are
// consulted, in order, by ContextFromEnv. Open MPI's variables take
// precedence over Slurm's.
var envVars = [][2]string{
	{"OMPI_COMM_WORLD_RANK", "OMPI_COMM_WORLD_SIZE"},
	{"SLURM_PROCID", "SLURM_NTASKS"},
}

// ContextFromEnv resolves the task context from the environment, as
// provided by lookup (usually os.LookupEnv). Both the rank and the
// size must be present; otherwise an error of kind
// errors.Precondition is returned.
func ContextFromEnv(lookup func(string) (string, bool)) (TaskContext, error) {
	for _, vars := range envVars {
		rank, rankOk := lookup(vars[0])
		size, sizeOk := lookup(vars[1])
		if !rankOk && !sizeOk {
			continue
		}
		if !rankOk || !sizeOk {
			return TaskContext{}, errors.E(errors.Precondition,
				fmt.Sprintf("required environment variables are missing: %s is %q and %s is %q", vars[0], rank, vars[1], size))
		}
		var (
			c   TaskContext
			err error
		)
		if c.Rank, err = strconv.Atoi(rank); err != nil {
			return TaskContext{}, errors.E(errors.Precondition, fmt.Sprintf("%s=%q", vars[0], rank), err)
		}
		if c.Size, err = strconv.Atoi(size); err != nil {
			return TaskContext{}, errors.E(errors.Precondition, fmt.Sprintf("%s=%q", vars[1], size), err)
		}
		return c, c.Validate()
	}
	return TaskContext{}, errors.E(errors.Precondition,
		fmt.Sprintf("required environment variables are missing: none of %v are set", envVars))
}

// ArrayIndexFromEnv returns the job array element of the current
// process, as given by SLURM_ARRAY_TASK_ID. An error of kind
// errors.Precondition is returned if the variable is missing or
// malformed.
func ArrayIndexFromEnv(lookup func(string) (string, bool)) (int, error) {
	const key = "SLURM_ARRAY_TASK_ID"
	v, ok := lookup(key)
	if !ok {
		return 0, errors.E(errors.Precondition, fmt.Sprintf("required environment variable %s is missing", key))
	}
	index, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.E(errors.Precondition, fmt.Sprintf("%s=%q", key, v), err)
	}
	if index < 0 {
		return 0, errors.E(errors.Precondition, fmt.Sprintf("%s=%q: negative array index", key, v))
	}
	return index, nil
}
