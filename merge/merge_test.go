// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package merge

import (
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"sort"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/bigbatch"
	"github.com/grailbio/bigbatch/exec"
	"github.com/grailbio/bigbatch/partition"
	"github.com/grailbio/bigbatch/store"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func double(p []byte) ([]byte, error) {
	return append(append([]byte(nil), p...), p...), nil
}

// run partitions items into st and executes fn for every task of
// every array element in the layout, in reverse order.
func run(t *testing.T, st store.Store, items []bigbatch.Item, l partition.Layout) {
	t.Helper()
	ctx := context.Background()
	_, err := partition.Write(ctx, st, items, l)
	assert.NoError(t, err)
	for i := len(l.Array) - 1; i >= 0; i-- {
		for task := l.TasksPerElement - 1; task >= 0; task-- {
			tc := exec.TaskContext{Rank: task, Size: l.TasksPerElement}
			_, err := exec.Execute(ctx, tc, l.Array[i], l.TasksPerElement, st, st, double)
			assert.NoError(t, err)
		}
	}
}

func makeItems(ids ...string) []bigbatch.Item {
	items := make([]bigbatch.Item, len(ids))
	for i, id := range ids {
		items[i] = bigbatch.Item{ID: id, Payload: []byte(fmt.Sprint(i))}
	}
	return items
}

func TestMergeByBatch(t *testing.T) {
	var (
		ctx   = context.Background()
		st    = store.NewMemory()
		items = makeItems("g", "c", "a", "f", "b", "e", "d")
		l     = partition.Layout{Array: []int{3, 1}, TasksPerElement: 2}
	)
	run(t, st, items, l)
	results, err := Merge(ctx, st, l, ByBatch)
	assert.NoError(t, err)
	expect.EQ(t, bigbatch.ResultIDs(results), bigbatch.IDs(items))
	for i, r := range results {
		expect.EQ(t, string(r.Value), fmt.Sprintf("%d%d", i, i))
	}
}

func TestMergeByID(t *testing.T) {
	var (
		ctx   = context.Background()
		st    = store.NewMemory()
		items = makeItems("g", "c", "a", "f", "b", "e", "d")
		l     = partition.Layout{Array: []int{0, 1, 2}, TasksPerElement: 1}
	)
	run(t, st, items, l)
	results, err := Merge(ctx, st, l, ByID)
	assert.NoError(t, err)
	ids := bigbatch.IDs(items)
	sort.Strings(ids)
	expect.EQ(t, bigbatch.ResultIDs(results), ids)
}

func TestMergeMoreBatchesThanItems(t *testing.T) {
	var (
		ctx   = context.Background()
		st    = store.NewMemory()
		items = makeItems("x", "y")
		l     = partition.Layout{Array: []int{0, 1}, TasksPerElement: 2}
	)
	run(t, st, items, l)
	results, err := Merge(ctx, st, l, ByBatch)
	assert.NoError(t, err)
	expect.EQ(t, bigbatch.ResultIDs(results), []string{"x", "y"})
}

func TestMergeMissing(t *testing.T) {
	var (
		ctx = context.Background()
		st  = store.NewMemory()
		l   = partition.Layout{Array: []int{0, 1}, TasksPerElement: 2}
	)
	run(t, st, makeItems("a", "b", "c", "d", "e"), l)
	assert.NoError(t, st.Discard(ctx, store.Name{Kind: store.Result, Array: 1, Task: 0}))
	_, err := Merge(ctx, st, l, ByBatch)
	if !errors.Is(errors.NotExist, err) {
		t.Errorf("expected NotExist, got %v", err)
	}
}

func TestMergeCanceled(t *testing.T) {
	var (
		st = store.NewMemory()
		l  = partition.Layout{Array: []int{0, 1}, TasksPerElement: 2}
	)
	run(t, st, makeItems("a", "b", "c", "d", "e"), l)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results, err := Merge(ctx, st, l, ByBatch)
	if err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	expect.EQ(t, len(results), 0)
}

func TestMergeDuplicate(t *testing.T) {
	var (
		ctx = context.Background()
		st  = store.NewMemory()
		l   = partition.Layout{Array: []int{0}, TasksPerElement: 2}
	)
	for task, ids := range [][]string{{"a", "b"}, {"c", "a"}} {
		var results []bigbatch.Result
		for _, id := range ids {
			results = append(results, bigbatch.Result{ID: id})
		}
		name := store.Name{Kind: store.Result, Array: 0, Task: task}
		assert.NoError(t, exec.WriteResults(ctx, st, name, results))
	}
	_, err := Merge(ctx, st, l, ByBatch)
	if !errors.Is(errors.Integrity, err) {
		t.Errorf("expected Integrity, got %v", err)
	}
}

func TestMergeInvalidLayout(t *testing.T) {
	_, err := Merge(context.Background(), store.NewMemory(), partition.Layout{}, ByBatch)
	if !errors.Is(errors.Invalid, err) {
		t.Errorf("expected Invalid, got %v", err)
	}
}

func TestWriteTSV(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	var (
		ctx  = context.Background()
		path = filepath.Join(dir, "merged_results.txt")
	)
	results := []bigbatch.Result{
		{ID: "a", Value: []byte("1")},
		{ID: "b", Value: []byte("two")},
		{ID: "c"},
	}
	assert.NoError(t, WriteTSV(ctx, path, results))
	p, err := ioutil.ReadFile(path)
	assert.NoError(t, err)
	if want := []byte("a\t1\nb\ttwo\nc\t\n"); !bytes.Equal(p, want) {
		t.Errorf("got %q, want %q", p, want)
	}
}

func TestParseOrder(t *testing.T) {
	for _, o := range []Order{ByBatch, ByID} {
		parsed, err := ParseOrder(o.String())
		assert.NoError(t, err)
		expect.EQ(t, parsed, o)
	}
	if o, err := ParseOrder(""); err != nil || o != ByBatch {
		t.Errorf("got %v, %v; want default order", o, err)
	}
	if _, err := ParseOrder("random"); !errors.Is(errors.Invalid, err) {
		t.Errorf("expected Invalid, got %v", err)
	}
}
