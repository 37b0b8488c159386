// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/grailbio/base/file"
	"github.com/grailbio/bigbatch/partition"
	"github.com/grailbio/bigbatch/store"
)

func partitionUsage(flags *flag.FlagSet) {
	fmt.Fprint(os.Stderr, `usage: bigbatch partition -input file -out dir -array spec [-ntasks n] [-single duration]

Command partition reads items from the input file, one per line, and
splits them into one batch per (array element, task) pair. Each line
is either "id<TAB>payload" or a bare payload, whose identity is its
line number. Batches are written to the output directory as
data_batch_{element}_{task}.

The flags are:
`)
	flags.PrintDefaults()
	os.Exit(2)
}

func partitionCmd(ctx context.Context, args []string) error {
	var (
		flags  = flag.NewFlagSet("bigbatch partition", flag.ExitOnError)
		input  = flags.String("input", "", "the input file")
		out    = flags.String("out", "", "the directory of batches")
		array  = flags.String("array", "", "the job array, e.g., 0-9")
		ntasks = flags.Int("ntasks", 1, "the number of tasks per array element")
		single = flags.Duration("single", 0, "the duration of a single run; if set, the total run time is estimated")
	)
	flags.Usage = func() { partitionUsage(flags) }
	flags.Parse(args)
	if flags.NArg() != 0 || *input == "" || *out == "" {
		flags.Usage()
	}
	l, err := parseLayout(*array, *ntasks)
	if err != nil {
		return err
	}
	f, err := file.Open(ctx, *input)
	if err != nil {
		return err
	}
	defer f.Close(ctx)
	items, err := partition.ReadItems(f.Reader(ctx))
	if err != nil {
		return err
	}
	summary, err := partition.Write(ctx, &store.File{Prefix: *out}, items, l)
	if err != nil {
		return err
	}
	for _, b := range summary.Batches {
		fmt.Printf("%s\t%d\n", b.Name, b.Items)
	}
	fmt.Printf("%d items, %d batches, fingerprint %016x\n", summary.Items, len(summary.Batches), summary.Fingerprint)
	if *single > 0 {
		total, err := partition.EstimateTotalTime(len(items), *single, l)
		if err != nil {
			return err
		}
		fmt.Printf("estimated total time: %s\n", total.Round(time.Second))
	}
	return nil
}
