// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package merge implements the final stage of a many-small-jobs
// pipeline: it collects the result files written by every task of
// every array element and combines them into a single artifact.
package merge

import (
	"bufio"
	"context"
	"fmt"
	"runtime"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/bigbatch"
	"github.com/grailbio/bigbatch/exec"
	"github.com/grailbio/bigbatch/partition"
	"github.com/grailbio/bigbatch/store"
	"golang.org/x/sync/errgroup"
)

// Order determines the order of merged results.
type Order int

const (
	// ByBatch orders results by array element, then by task, then by
	// position within the batch. Since batches are contiguous blocks
	// of the input, this reproduces the input order.
	ByBatch Order = iota
	// ByID orders results by item identity.
	ByID
)

// String returns the order's name, as accepted by ParseOrder.
func (o Order) String() string {
	switch o {
	case ByBatch:
		return "batch"
	case ByID:
		return "id"
	default:
		return fmt.Sprintf("Order(%d)", int(o))
	}
}

// ParseOrder parses an order name.
func ParseOrder(s string) (Order, error) {
	switch s {
	case "", "batch":
		return ByBatch, nil
	case "id":
		return ByID, nil
	}
	return ByBatch, errors.E(errors.Invalid, fmt.Sprintf("merge: invalid order %q", s))
}

// Merge reads the result file of every batch in the layout and returns
// their combined results in the requested order. Every result file
// must be present: a missing file is reported as errors.NotExist. Two
// results that carry the same identity are reported as
// errors.Integrity.
func Merge(ctx context.Context, st store.Store, l partition.Layout, order Order) ([]bigbatch.Result, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	var (
		names   = l.Batches(store.Result)
		batches = make([][]bigbatch.Result, len(names))
		sem     = make(chan struct{}, 2*runtime.NumCPU())
	)
	// The group's context stops reads that have not yet started once
	// any read fails or ctx is canceled; sem bounds the number of
	// concurrent reads.
	g, gctx := errgroup.WithContext(ctx)
	for i := range names {
		i := i
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()
			if err := gctx.Err(); err != nil {
				return err
			}
			results, err := exec.ReadResults(gctx, st, names[i])
			if err != nil {
				if errors.Is(errors.NotExist, err) {
					return errors.E(errors.NotExist, fmt.Sprintf("merge: missing results %s", names[i]), err)
				}
				return errors.E(fmt.Sprintf("merge: %s", names[i]), err)
			}
			batches[i] = results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var (
		merged []bigbatch.Result
		seen   = make(map[string]store.Name)
	)
	for i, results := range batches {
		for _, r := range results {
			if prev, ok := seen[r.ID]; ok {
				return nil, errors.E(errors.Integrity,
					fmt.Sprintf("merge: result %q appears in both %s and %s", r.ID, prev, names[i]))
			}
			seen[r.ID] = names[i]
		}
		merged = append(merged, results...)
	}
	if order == ByID {
		sort.SliceStable(merged, func(i, j int) bool {
			return merged[i].ID < merged[j].ID
		})
	}
	log.Printf("merge: %d results from %d batches (%s)", len(merged), len(names), l)
	return merged, nil
}

// WriteTSV writes results to path, one "{id}\t{value}" line per
// result. Path may be any URL supported by package file.
func WriteTSV(ctx context.Context, path string, results []bigbatch.Result) (err error) {
	f, err := file.Create(ctx, path)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			f.Discard(ctx)
			return
		}
		err = f.Close(ctx)
	}()
	w := bufio.NewWriter(f.Writer(ctx))
	for _, r := range results {
		if _, err = fmt.Fprintf(w, "%s\t%s\n", r.ID, r.Value); err != nil {
			return err
		}
	}
	return w.Flush()
}
