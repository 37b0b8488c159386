// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package slurm

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/bigbatch/job"
	"github.com/grailbio/testutil/assert"
)

func TestArgs(t *testing.T) {
	s := &Scheduler{Defaults: job.Resources{Account: "lab", Partition: "short"}}
	args, err := s.Args(job.Spec{
		Name:      "main",
		Script:    "run.sh",
		Args:      []string{"-in", "/data"},
		Array:     []int{0, 1, 2, 5},
		Resources: job.Resources{Partition: "long", Time: "1:00:00", MemPerCPU: "2G", NTasks: 4},
		Dependencies: []job.Dependency{
			{Condition: job.AfterOK, Handles: []job.Handle{"11", "12"}},
		},
	})
	assert.NoError(t, err)
	want := "--parsable --job-name=main --account=lab --partition=long --time=1:00:00 --mem-per-cpu=2G --ntasks=4 " +
		"--array=0-2,5 --dependency=afterok:11:12 run.sh -in /data"
	assert.EQ(t, strings.Join(args, " "), want)

	_, err = s.Args(job.Spec{Name: "noscript"})
	if !errors.Is(errors.Invalid, err) {
		t.Errorf("unexpected error %v", err)
	}
}

func TestArgsLaunch(t *testing.T) {
	s := new(Scheduler)
	spec := job.Spec{
		Name:      "main",
		Script:    "/usr/local/bin/bigbatch",
		Args:      []string{"run", "-func", "upper", "-in", "/data/in dir", "-ntasks", "2"},
		Array:     []int{0, 1},
		Launch:    job.LaunchTasks,
		Resources: job.Resources{NTasks: 2},
	}
	args, err := s.Args(spec)
	assert.NoError(t, err)
	assert.EQ(t, args, []string{
		"--parsable", "--job-name=main", "--ntasks=2", "--array=0-1",
		"--wrap=srun /usr/local/bin/bigbatch run -func upper -in '/data/in dir' -ntasks 2",
	})

	spec = job.Spec{
		Name:   "merge",
		Script: "bigbatch",
		Args:   []string{"merge", "-out", "it's.txt", ""},
		Launch: job.LaunchCommand,
		Dependencies: []job.Dependency{
			{Condition: job.AfterOK, Handles: []job.Handle{"41"}},
		},
	}
	args, err = s.Args(spec)
	assert.NoError(t, err)
	assert.EQ(t, args, []string{
		"--parsable", "--job-name=merge", "--dependency=afterok:41",
		`--wrap=bigbatch merge -out 'it'\''s.txt' ''`,
	})

	spec.Launch = job.Launch(7)
	if _, err := s.Args(spec); !errors.Is(errors.Invalid, err) {
		t.Errorf("unexpected error %v", err)
	}
}

func TestSubmit(t *testing.T) {
	var calls [][]string
	s := &Scheduler{
		Sbatch: "/usr/bin/sbatch",
		Run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			calls = append(calls, append([]string{name}, args...))
			return []byte("4242;cluster\n"), nil
		},
	}
	h, err := s.Submit(context.Background(), job.Spec{Name: "x", Script: "x.sh"})
	assert.NoError(t, err)
	assert.EQ(t, h, job.Handle("4242"))
	assert.EQ(t, len(calls), 1)
	assert.EQ(t, calls[0][0], "/usr/bin/sbatch")

	s.Run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return nil, fmt.Errorf("sbatch: error: invalid account")
	}
	if _, err := s.Submit(context.Background(), job.Spec{Name: "x", Script: "x.sh"}); !errors.Is(errors.Unavailable, err) {
		t.Errorf("unexpected error %v", err)
	}
}

func TestParseJobID(t *testing.T) {
	for _, c := range []struct {
		out  string
		want job.Handle
	}{
		{"123\n", "123"},
		{"77;cluster1", "77"},
	} {
		got, err := ParseJobID([]byte(c.out))
		if err != nil {
			t.Errorf("%q: %v", c.out, err)
			continue
		}
		assert.EQ(t, got, c.want)
	}
	for _, out := range []string{"", "Submitted batch job 12", "abc"} {
		if _, err := ParseJobID([]byte(out)); !errors.Is(errors.Unavailable, err) {
			t.Errorf("%q: unexpected error %v", out, err)
		}
	}
}
