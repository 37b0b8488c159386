// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/grailbio/base/log"
	"github.com/grailbio/bigbatch"
	"github.com/grailbio/bigbatch/exec"
	"github.com/grailbio/bigbatch/store"
)

func runUsage(flags *flag.FlagSet) {
	fmt.Fprint(os.Stderr, `usage: bigbatch run -func name -in dir -out dir -ntasks n [-array-index n]

Command run applies a registered transformation to every item of the
batch of the current task, and writes the results to the output
directory. The task's rank and the number of tasks are read from the
environment (OMPI_COMM_WORLD_RANK and OMPI_COMM_WORLD_SIZE, or
SLURM_PROCID and SLURM_NTASKS); the array element defaults to
SLURM_ARRAY_TASK_ID. The number of tasks must match the number of
tasks per array element that the batches were partitioned for.

The flags are:
`)
	flags.PrintDefaults()
	os.Exit(2)
}

func runCmd(ctx context.Context, args []string) error {
	var (
		flags  = flag.NewFlagSet("bigbatch run", flag.ExitOnError)
		name   = flags.String("func", "", "the name of the transformation")
		in     = flags.String("in", "", "the directory of batches")
		out    = flags.String("out", "", "the directory of results")
		ntasks = flags.Int("ntasks", 0, "the number of tasks per array element")
		index  = flags.Int("array-index", -1, "the array element; defaults to $SLURM_ARRAY_TASK_ID")
	)
	flags.Usage = func() { runUsage(flags) }
	flags.Parse(args)
	if flags.NArg() != 0 || *name == "" || *in == "" || *out == "" || *ntasks <= 0 {
		flags.Usage()
	}
	fn, err := bigbatch.LookupFunc(*name)
	if err != nil {
		return err
	}
	tc, err := exec.ContextFromEnv(os.LookupEnv)
	if err != nil {
		return err
	}
	array := *index
	if array < 0 {
		if array, err = exec.ArrayIndexFromEnv(os.LookupEnv); err != nil {
			return err
		}
	}
	stats, err := exec.Execute(ctx, tc, array, *ntasks, &store.File{Prefix: *in}, &store.File{Prefix: *out}, fn)
	if err != nil {
		return err
	}
	log.Printf("%s: element %d, task %s: %s", *name, array, tc, stats)
	return nil
}
