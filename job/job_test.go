// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package job

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/testutil/assert"
)

type testScheduler struct {
	specs  []Spec
	reject bool
}

func (s *testScheduler) Submit(ctx context.Context, spec Spec) (Handle, error) {
	if s.reject {
		return "", errors.E(errors.Unavailable, "rejected")
	}
	s.specs = append(s.specs, spec)
	return Handle(fmt.Sprint(100 + len(s.specs))), nil
}

func TestFormatDependencies(t *testing.T) {
	deps := []Dependency{
		{Condition: AfterOK, Handles: []Handle{"1", "2"}},
		{Condition: AfterAny, Handles: []Handle{"3"}},
	}
	assert.EQ(t, FormatDependencies(deps), "afterok:1:2,afterany:3")
	assert.EQ(t, FormatDependencies(nil), "")
	assert.EQ(t, FormatDependencies(On(AfterOK, []Handle{"7", "8"})), "afterok:7:8")
	assert.EQ(t, FormatDependencies(Each(AfterCorr, []Handle{"7_0", "7_1"})), "aftercorr:7_0,aftercorr:7_1")
}

func TestValidateDependencies(t *testing.T) {
	for _, deps := range [][]Dependency{
		{{Handles: []Handle{"1"}}},
		{{Condition: AfterOK}},
		{{Condition: AfterOK, Handles: []Handle{""}}},
	} {
		if err := ValidateDependencies(deps); !errors.Is(errors.Invalid, err) {
			t.Errorf("%v: unexpected error %v", deps, err)
		}
	}
	assert.NoError(t, ValidateDependencies(nil))
}

func TestSingle(t *testing.T) {
	ctx := context.Background()
	sched := new(testScheduler)
	g := &Single{Scheduler: sched, Spec: Spec{Name: "merge", Script: "merge.sh"}}
	handles, err := g.Submit(ctx, nil)
	assert.NoError(t, err)
	assert.EQ(t, handles, []Handle{"101"})
	deps := On(AfterOK, handles)
	handles, err = g.Submit(ctx, deps)
	assert.NoError(t, err)
	assert.EQ(t, handles, []Handle{"102"})
	// Submission is not idempotent: both calls reached the scheduler.
	assert.EQ(t, len(sched.specs), 2)
	if deps := sched.specs[0].Dependencies; deps != nil {
		t.Errorf("unexpected dependencies %v", deps)
	}
	assert.EQ(t, FormatDependencies(sched.specs[1].Dependencies), "afterok:101")

	sched.reject = true
	_, err = g.Submit(ctx, nil)
	if !errors.Is(errors.Unavailable, err) {
		t.Errorf("unexpected error %v", err)
	}
}

func TestArray(t *testing.T) {
	ctx := context.Background()
	sched := new(testScheduler)
	g := &Array{
		Scheduler: sched,
		Spec: Spec{
			Name:      "main",
			Array:     []int{3, 1, 2},
			Resources: Resources{NTasks: 4},
		},
	}
	handles, err := g.Submit(ctx, nil)
	assert.NoError(t, err)
	assert.EQ(t, handles, []Handle{"101"})
	g.PerElement = true
	handles, err = g.Submit(ctx, nil)
	assert.NoError(t, err)
	assert.EQ(t, handles, []Handle{"102_1", "102_2", "102_3"})

	for _, bad := range []*Array{
		{Scheduler: sched, Spec: Spec{Name: "noarray", Resources: Resources{NTasks: 1}}},
		{Scheduler: sched, Spec: Spec{Name: "notasks", Array: []int{0}}},
	} {
		n := len(sched.specs)
		if _, err := bad.Submit(ctx, nil); !errors.Is(errors.Invalid, err) {
			t.Errorf("%s: unexpected error %v", bad.Spec.Name, err)
		}
		if len(sched.specs) != n {
			t.Errorf("%s: invalid group was submitted", bad.Spec.Name)
		}
	}
}

func TestTemplate(t *testing.T) {
	ctx := context.Background()
	sched := new(testScheduler)
	g := &Template{
		Scheduler: sched,
		Spec: Spec{
			Name: "train",
			Args: []string{"--lr={{.lr}}", "--out", "{{.dir}}/iter{{.iter}}"},
		},
		Params: map[string]string{"lr": "0.1", "dir": "/tmp/run", "iter": "2"},
	}
	_, err := g.Submit(ctx, nil)
	assert.NoError(t, err)
	assert.EQ(t, strings.Join(sched.specs[0].Args, " "), "--lr=0.1 --out /tmp/run/iter2")
	// The template itself is unchanged.
	assert.EQ(t, g.Spec.Args[0], "--lr={{.lr}}")

	delete(g.Params, "lr")
	if _, err := g.Submit(ctx, nil); !errors.Is(errors.Invalid, err) {
		t.Errorf("unexpected error %v", err)
	}
	assert.EQ(t, len(sched.specs), 1)
}

func TestResources(t *testing.T) {
	r := Resources{Account: "lab", Time: "01:00:00", NTasks: 4}
	assert.NoError(t, r.Validate(FieldAccount, FieldTime, FieldNTasks))
	err := r.Validate(FieldAccount, FieldMemPerCPU, FieldPartition)
	if !errors.Is(errors.Invalid, err) {
		t.Fatalf("unexpected error %v", err)
	}
	if !strings.Contains(err.Error(), "mem-per-cpu, partition") {
		t.Errorf("error %q does not name missing fields", err)
	}
	assert.EQ(t, strings.Join(r.Flags(), " "), "--account=lab --time=01:00:00 --ntasks=4")
}
