// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package store

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/testutil"
)

func testStore(t *testing.T, store Store) {
	t.Helper()
	fz := fuzz.New()
	fz.NumElements(1e3, 1e5)
	var data []byte
	fz.Fuzz(&data)
	ctx := context.Background()
	name := Name{Kind: Data, Array: 3, Task: 1}
	wc, err := store.Create(ctx, name)
	if err != nil {
		t.Error(err)
		return
	}
	if _, err := io.Copy(wc, bytes.NewReader(data)); err != nil {
		t.Error(err)
		return
	}
	// Make sure the file isn't available until it's committed.
	_, err = store.Open(ctx, name)
	if err == nil {
		t.Error("store prematurely available")
	} else if !errors.Is(errors.NotExist, err) {
		t.Errorf("unexpected error: %v", err)
	}
	if err := wc.Commit(ctx, 12345); err != nil {
		t.Error(err)
		return
	}
	info, err := store.Stat(ctx, name)
	if err != nil {
		t.Error(err)
	} else {
		if got, want := info.Size, int64(len(data)); got != want {
			t.Errorf("got %v, want %v", got, want)
		}
		if got, want := info.Records, int64(12345); got != want {
			t.Errorf("got %v, want %v", got, want)
		}
	}

	rc, err := store.Open(ctx, name)
	if err != nil {
		t.Error(err)
		return
	}
	got, err := ioutil.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Error(err)
		return
	}
	if !bytes.Equal(data, got) {
		t.Error("data do not match")
	}
	// The result file of the same (array, task) pair is distinct.
	if _, err := store.Open(ctx, Name{Kind: Result, Array: 3, Task: 1}); err == nil {
		t.Error("expected error opening result file")
	}
	if err := store.Discard(ctx, name); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Open(ctx, name); err == nil {
		t.Fatal("expected error opening discarded file")
	}
}

func TestStoreImpls(t *testing.T) {
	testStore(t, NewMemory())
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	testStore(t, &File{dir})
}

func TestStoreEmpty(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()
	for _, store := range []Store{NewMemory(), &File{dir}} {
		name := Name{Kind: Result, Array: 0, Task: 0}
		wc, err := store.Create(ctx, name)
		if err != nil {
			t.Fatal(err)
		}
		if err := wc.Commit(ctx, 0); err != nil {
			t.Fatal(err)
		}
		info, err := store.Stat(ctx, name)
		if err != nil {
			t.Fatal(err)
		}
		if info.Size != 0 || info.Records != 0 {
			t.Errorf("got %+v, want empty", info)
		}
		rc, err := store.Open(ctx, name)
		if err != nil {
			t.Fatal(err)
		}
		p, err := ioutil.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatal(err)
		}
		if len(p) != 0 {
			t.Errorf("read %d bytes from empty file", len(p))
		}
	}
}

func TestName(t *testing.T) {
	for _, c := range []struct {
		name Name
		want string
	}{
		{Name{Data, 0, 0}, "data_batch_0_0"},
		{Name{Data, 12, 3}, "data_batch_12_3"},
		{Name{Result, 5, 7}, "results_5_7"},
	} {
		if got := c.name.String(); got != c.want {
			t.Errorf("got %v, want %v", got, c.want)
		}
	}
	s := &File{Prefix: "/tmp/x"}
	if got, want := s.Path(Name{Result, 1, 2}), "/tmp/x/results_1_2"; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}
