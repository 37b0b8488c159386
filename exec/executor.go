// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package exec implements the task executor: the code that runs inside
// one task of one job array element, processing the batch assigned to
// that task.
//
// Within a task, items are processed sequentially and in order; the
// parallelism of a bigbatch job comes entirely from the scheduler's
// array and task topology. Tasks read and write only the files named
// by their own (array element, rank) pair, so no coordination between
// tasks is required.
package exec

import (
	"context"
	"fmt"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/bigbatch"
	"github.com/grailbio/bigbatch/batchio"
	"github.com/grailbio/bigbatch/store"
)

// Stats describes a completed execution.
type Stats struct {
	// Items is the number of processed items.
	Items int
	// Read, Run and Write are the durations spent loading the batch,
	// applying the func, and writing results.
	Read, Run, Write time.Duration
}

// String returns a summary of the stats.
func (s Stats) String() string {
	return fmt.Sprintf("items:%d read:%s run:%s write:%s", s.Items, s.Read, s.Run, s.Write)
}

// Execute processes the batch assigned to the task described by tc
// within the provided array element. Tasks is the number of tasks per
// array element that the batches were partitioned for; a task context
// of a different size is reported as errors.Precondition, since some
// batches would then never be processed. The batch is read from in, fn is
// applied to every item's payload in order, and the results, keyed by
// item ID and in input order, are committed to out.
//
// An empty batch commits an empty result file. If fn fails on any
// item, Execute returns its error unmodified and no result file is
// written; recovery is left to the scheduler, which may rerun the
// task.
func Execute(ctx context.Context, tc TaskContext, array, tasks int, in, out store.Store, fn bigbatch.Func) (Stats, error) {
	var stats Stats
	if err := tc.Validate(); err != nil {
		return stats, err
	}
	if tc.Size != tasks {
		return stats, errors.E(errors.Precondition,
			fmt.Sprintf("task %s: job runs %d tasks per array element, but batches were partitioned for %d", tc, tc.Size, tasks))
	}
	var (
		input  = store.Name{Kind: store.Data, Array: array, Task: tc.Rank}
		output = store.Name{Kind: store.Result, Array: array, Task: tc.Rank}
		start  = time.Now()
	)
	items, err := ReadBatch(ctx, in, input)
	if err != nil {
		return stats, err
	}
	stats.Read = time.Since(start)
	stats.Items = len(items)

	var results []bigbatch.Result
	if len(items) > 0 {
		start = time.Now()
		results = make([]bigbatch.Result, len(items))
		for i, item := range items {
			value, err := fn(item.Payload)
			if err != nil {
				log.Error.Printf("exec %s (task %s): item %d (%s): %v", input, tc, i, item.ID, err)
				return stats, err
			}
			results[i] = bigbatch.Result{ID: item.ID, Value: value}
		}
		stats.Run = time.Since(start)
	}

	start = time.Now()
	if err := WriteResults(ctx, out, output, results); err != nil {
		return stats, err
	}
	stats.Write = time.Since(start)
	log.Printf("exec %s (task %s): %s", input, tc, stats)
	return stats, nil
}

// ReadBatch reads the named batch from st. The number of decoded items
// is checked against the record count stored with the batch.
func ReadBatch(ctx context.Context, st store.Store, name store.Name) ([]bigbatch.Item, error) {
	info, err := st.Stat(ctx, name)
	if err != nil {
		return nil, err
	}
	rc, err := st.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	items, err := batchio.NewDecoder(rc).DecodeItems()
	if err != nil {
		return nil, errors.E(fmt.Sprintf("read %s", name), err)
	}
	if int64(len(items)) != info.Records {
		return nil, errors.E(errors.Integrity,
			fmt.Sprintf("read %s: decoded %d items, expected %d", name, len(items), info.Records))
	}
	return items, nil
}

// ReadResults reads the named result file from st. As with ReadBatch,
// the number of decoded results is checked against the stored record
// count.
func ReadResults(ctx context.Context, st store.Store, name store.Name) ([]bigbatch.Result, error) {
	info, err := st.Stat(ctx, name)
	if err != nil {
		return nil, err
	}
	rc, err := st.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	results, err := batchio.NewDecoder(rc).DecodeResults()
	if err != nil {
		return nil, errors.E(fmt.Sprintf("read %s", name), err)
	}
	if int64(len(results)) != info.Records {
		return nil, errors.E(errors.Integrity,
			fmt.Sprintf("read %s: decoded %d results, expected %d", name, len(results), info.Records))
	}
	return results, nil
}

// WriteResults commits results to the named file in st.
func WriteResults(ctx context.Context, st store.Store, name store.Name, results []bigbatch.Result) error {
	wc, err := st.Create(ctx, name)
	if err != nil {
		return err
	}
	enc := batchio.NewEncoder(wc)
	if err := enc.EncodeResults(results); err != nil {
		wc.Discard(ctx)
		return errors.E(fmt.Sprintf("write %s", name), err)
	}
	return wc.Commit(ctx, enc.Records())
}
