// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Command bigbatch partitions inputs into batches, runs registered
// transformations over batches within cluster jobs, merges their
// results, and submits many-small-jobs pipelines to a scheduler.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/file/s3file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/must"
	"github.com/grailbio/bigbatch/batchconfig"
	"github.com/grailbio/bigbatch/partition"

	// Registers the example transformations.
	_ "github.com/grailbio/bigbatch/example"
)

func init() {
	file.RegisterImplementation("s3", s3file.NewImplementation(
		s3file.NewDefaultProvider(session.Options{})))
}

func usage() {
	fmt.Fprintf(os.Stderr, `Bigbatch is a tool for running many small jobs on a cluster.

Usage:

	bigbatch [flags] <command> [arguments]

The commands are:

	partition   split an input file into per-task batches
	run         run a transformation over the batch of the current task
	merge       merge the results of every task into a single file
	submit      submit a many-small-jobs pipeline
	funcs       list the registered transformations

Configuration is read from %s; instances may be
overridden by flags. The flags are:

`, batchconfig.Path)
	flag.PrintDefaults()
	os.Exit(2)
}

func main() {
	log.AddFlags()
	log.SetFlags(0)
	log.SetPrefix("bigbatch: ")
	must.Func = log.Fatal
	flag.Usage = usage
	batchconfig.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
	}

	var (
		ctx       = context.Background()
		cmd, args = flag.Arg(0), flag.Args()[1:]
		err       error
	)
	switch cmd {
	default:
		fmt.Fprintln(os.Stderr, "unknown command", cmd)
		flag.Usage()
	case "partition":
		err = partitionCmd(ctx, args)
	case "run":
		err = runCmd(ctx, args)
	case "merge":
		err = mergeCmd(ctx, args)
	case "submit":
		err = submitCmd(ctx, args)
	case "funcs":
		funcsCmd(args)
	}
	must.Nil(err, cmd)
}

// parseLayout returns the layout of an array specification and a
// number of tasks per element.
func parseLayout(array string, ntasks int) (partition.Layout, error) {
	elems, err := partition.ParseArray(array)
	if err != nil {
		return partition.Layout{}, err
	}
	l := partition.Layout{Array: elems, TasksPerElement: ntasks}
	return l, l.Validate()
}
