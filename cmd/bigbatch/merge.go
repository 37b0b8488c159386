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
	"github.com/grailbio/bigbatch/merge"
	"github.com/grailbio/bigbatch/store"
)

func mergeUsage(flags *flag.FlagSet) {
	fmt.Fprint(os.Stderr, `usage: bigbatch merge -in dir -array spec -ntasks n -out file [-order batch|id]

Command merge reads the result file of every (array element, task)
pair and writes their results to a single file, one "id<TAB>value"
line per item. Every result file must be present.

The flags are:
`)
	flags.PrintDefaults()
	os.Exit(2)
}

func mergeCmd(ctx context.Context, args []string) error {
	var (
		flags  = flag.NewFlagSet("bigbatch merge", flag.ExitOnError)
		in     = flags.String("in", "", "the directory of results")
		array  = flags.String("array", "", "the job array of the main job, e.g., 0-9")
		ntasks = flags.Int("ntasks", 1, "the number of tasks per array element")
		order  = flags.String("order", "batch", "the order of merged results: batch or id")
		out    = flags.String("out", "", "the merged result file")
	)
	flags.Usage = func() { mergeUsage(flags) }
	flags.Parse(args)
	if flags.NArg() != 0 || *in == "" || *out == "" {
		flags.Usage()
	}
	l, err := parseLayout(*array, *ntasks)
	if err != nil {
		return err
	}
	o, err := merge.ParseOrder(*order)
	if err != nil {
		return err
	}
	results, err := merge.Merge(ctx, &store.File{Prefix: *in}, l, o)
	if err != nil {
		return err
	}
	if err := merge.WriteTSV(ctx, *out, results); err != nil {
		return err
	}
	log.Printf("merged %d results into %s", len(results), *out)
	return nil
}
