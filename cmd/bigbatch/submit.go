// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/grailbio/base/log"
	"github.com/grailbio/base/status"
	"github.com/grailbio/bigbatch/batchconfig"
	"github.com/grailbio/bigbatch/chain"
	"github.com/grailbio/bigbatch/job"
	"github.com/grailbio/bigbatch/scheduler/recorder"
)

func submitUsage(flags *flag.FlagSet) {
	fmt.Fprint(os.Stderr, `usage: bigbatch submit [-pipeline instance] [-scheduler instance] [-dryrun] [-nosetup]

Command submit submits a many-small-jobs pipeline: the input is
partitioned into batches, a job array runs the configured
transformation over every batch, and a merge job, which depends on
the successful completion of the array, merges the results.

The pipeline and the scheduler are configuration instances; see
bigbatch -help.

The flags are:
`)
	flags.PrintDefaults()
	os.Exit(2)
}

// logEventer logs chain events at debug level.
type logEventer struct{}

func (logEventer) Event(typ string, fieldPairs ...interface{}) {
	log.Debug.Printf("event %s %v", typ, fieldPairs)
}

// closeScheduler closes sched if it holds resources, such as a broker
// connection.
func closeScheduler(sched job.Scheduler) {
	closer, ok := sched.(io.Closer)
	if !ok {
		return
	}
	if err := closer.Close(); err != nil {
		log.Error.Printf("close scheduler: %v", err)
	}
}

func submitCmd(ctx context.Context, args []string) error {
	var (
		flags     = flag.NewFlagSet("bigbatch submit", flag.ExitOnError)
		pipeline  = flags.String("pipeline", "bigbatch/manysmall", "the pipeline configuration instance")
		scheduler = flags.String("scheduler", "bigbatch", "the scheduler configuration instance")
		dryrun    = flags.Bool("dryrun", false, "print submissions instead of submitting them")
		nosetup   = flags.Bool("nosetup", false, "do not partition the input; batches must already exist")
		console   = flags.Bool("status", false, "print submission status to the console")
	)
	flags.Usage = func() { submitUsage(flags) }
	flags.Parse(args)
	if flags.NArg() != 0 {
		flags.Usage()
	}
	config, err := batchconfig.Pipeline(*pipeline)
	if err != nil {
		return err
	}
	var sched job.Scheduler
	if *dryrun {
		rec := recorder.New(1)
		rec.Verbose = true
		sched = rec
	} else if sched, err = batchconfig.Scheduler(*scheduler); err != nil {
		return err
	}
	defer closeScheduler(sched)
	if !*nosetup && !*dryrun {
		summary, err := config.Setup(ctx)
		if err != nil {
			return err
		}
		log.Printf("partitioned %d items into %d batches", summary.Items, len(summary.Batches))
	}

	var st status.Status
	if *console {
		var reporter status.Reporter
		go reporter.Go(os.Stdout, &st)
	}
	start := time.Now()
	c, err := config.Pipeline(sched,
		chain.Eventer(logEventer{}),
		chain.Status(st.Group("bigbatch submit")))
	if err != nil {
		return err
	}
	if err := c.Submit(ctx); err != nil {
		return err
	}
	log.Printf("submitted %d stages in %s; final jobs %v", c.Len(), time.Since(start), c.Last())
	return nil
}
