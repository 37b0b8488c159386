// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package partition splits a sequence of items into batches, one per
// (array element, task) pair of a job array, and writes the batches
// to a store.
//
// Items are assigned in contiguous blocks: the (array element, task)
// pairs are ordered array-major, and the i'th pair receives the i'th
// block of items. Blocks differ in size by at most one; earlier blocks
// receive the remainder. The assignment depends only on the number of
// items and the layout, so re-running a partition with the same
// inputs yields the same batches.
package partition

import (
	"context"
	"encoding/binary"
	"fmt"
	"runtime"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/bigbatch"
	"github.com/grailbio/bigbatch/batchio"
	"github.com/grailbio/bigbatch/store"
	"github.com/spaolacci/murmur3"
)

// A Layout describes the shape of a job array: the set of array
// elements and the number of tasks run by each element.
type Layout struct {
	// Array is the set of job array elements.
	Array []int
	// TasksPerElement is the number of parallel tasks in each element.
	TasksPerElement int
}

// Validate returns an error of kind errors.Invalid if the layout
// cannot hold any batches.
func (l Layout) Validate() error {
	if len(l.Array) == 0 {
		return errors.E(errors.Invalid, "partition: empty job array")
	}
	if l.TasksPerElement <= 0 {
		return errors.E(errors.Invalid, fmt.Sprintf("partition: tasks per element must be positive, got %d", l.TasksPerElement))
	}
	seen := make(map[int]bool, len(l.Array))
	for _, a := range l.Array {
		if a < 0 {
			return errors.E(errors.Invalid, fmt.Sprintf("partition: negative array element %d", a))
		}
		if seen[a] {
			return errors.E(errors.Invalid, fmt.Sprintf("partition: duplicate array element %d", a))
		}
		seen[a] = true
	}
	return nil
}

// NumBatch returns the number of batches in the layout.
func (l Layout) NumBatch() int {
	return len(l.Array) * l.TasksPerElement
}

// Batches returns the names of every batch in the layout, of the
// provided kind, in assignment order: sorted by array element, then
// by task.
func (l Layout) Batches(kind store.Kind) []store.Name {
	array := append([]int(nil), l.Array...)
	sort.Ints(array)
	names := make([]store.Name, 0, len(array)*l.TasksPerElement)
	for _, a := range array {
		for t := 0; t < l.TasksPerElement; t++ {
			names = append(names, store.Name{Kind: kind, Array: a, Task: t})
		}
	}
	return names
}

// String returns a compact description of the layout.
func (l Layout) String() string {
	return fmt.Sprintf("%s x %d", FormatArray(l.Array), l.TasksPerElement)
}

// Bounds returns, for each batch of the layout (in the order of
// Batches), the half-open range [start, end) of item positions
// assigned to it.
func Bounds(n int, l Layout) ([][2]int, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("partition: negative item count %d", n))
	}
	k := l.NumBatch()
	size, rem := n/k, n%k
	bounds := make([][2]int, k)
	start := 0
	for i := range bounds {
		end := start + size
		if i < rem {
			end++
		}
		bounds[i] = [2]int{start, end}
		start = end
	}
	return bounds, nil
}

// Assign returns the batch (of kind store.Data) to which each of n
// items is assigned.
func Assign(n int, l Layout) ([]store.Name, error) {
	bounds, err := Bounds(n, l)
	if err != nil {
		return nil, err
	}
	batches := l.Batches(store.Data)
	names := make([]store.Name, n)
	for i, b := range bounds {
		for j := b[0]; j < b[1]; j++ {
			names[j] = batches[i]
		}
	}
	return names, nil
}

// A Batch counts the items assigned to a single batch.
type Batch struct {
	Name  store.Name
	Items int
}

// A Summary describes the outcome of a partition.
type Summary struct {
	// Items is the total number of partitioned items.
	Items int
	// Batches lists every written batch in assignment order.
	Batches []Batch
	// Fingerprint is a hash of the complete assignment of item IDs to
	// batches. Partitions of identical inputs have identical
	// fingerprints.
	Fingerprint uint64
}

// Fingerprint computes the assignment fingerprint of the provided
// items and their assigned batches.
func Fingerprint(items []bigbatch.Item, names []store.Name) uint64 {
	h := murmur3.New64()
	var b [8]byte
	for i := range items {
		binary.LittleEndian.PutUint32(b[:4], uint32(names[i].Array))
		binary.LittleEndian.PutUint32(b[4:], uint32(names[i].Task))
		h.Write(b[:])
		binary.LittleEndian.PutUint64(b[:], uint64(len(items[i].ID)))
		h.Write(b[:])
		h.Write([]byte(items[i].ID))
	}
	return h.Sum64()
}

// Write partitions items according to the layout and writes one data
// batch per (array element, task) pair into st. Batches that receive
// no items are written empty. Item IDs must be unique.
func Write(ctx context.Context, st store.Store, items []bigbatch.Item, l Layout) (Summary, error) {
	bounds, err := Bounds(len(items), l)
	if err != nil {
		return Summary{}, err
	}
	seen := make(map[string]int, len(items))
	for i, item := range items {
		if j, ok := seen[item.ID]; ok {
			return Summary{}, errors.E(errors.Invalid, fmt.Sprintf("partition: items %d and %d share ID %q", j, i, item.ID))
		}
		seen[item.ID] = i
	}
	batches := l.Batches(store.Data)
	err = traverse.Limit(2*runtime.NumCPU()).Each(len(batches), func(i int) error {
		return writeBatch(ctx, st, batches[i], items[bounds[i][0]:bounds[i][1]])
	})
	if err != nil {
		return Summary{}, err
	}
	summary := Summary{Items: len(items), Batches: make([]Batch, len(batches))}
	names := make([]store.Name, len(items))
	for i, b := range bounds {
		summary.Batches[i] = Batch{Name: batches[i], Items: b[1] - b[0]}
		for j := b[0]; j < b[1]; j++ {
			names[j] = batches[i]
		}
	}
	summary.Fingerprint = Fingerprint(items, names)
	log.Printf("partition: %d items into %d batches (%s), fingerprint %016x",
		len(items), len(batches), l, summary.Fingerprint)
	return summary, nil
}

func writeBatch(ctx context.Context, st store.Store, name store.Name, items []bigbatch.Item) error {
	wc, err := st.Create(ctx, name)
	if err != nil {
		return err
	}
	enc := batchio.NewEncoder(wc)
	if err := enc.EncodeItems(items); err != nil {
		wc.Discard(ctx)
		return errors.E(fmt.Sprintf("partition: write %s", name), err)
	}
	if err := wc.Commit(ctx, enc.Records()); err != nil {
		return errors.E(fmt.Sprintf("partition: commit %s", name), err)
	}
	log.Debug.Printf("partition: wrote %s: %d items", name, len(items))
	return nil
}
