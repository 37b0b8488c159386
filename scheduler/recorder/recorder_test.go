// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package recorder

import (
	"context"
	"fmt"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/bigbatch/job"
	"github.com/grailbio/testutil/assert"
)

func TestRecorder(t *testing.T) {
	ctx := context.Background()
	s := New(10)
	deps := job.On(job.AfterOK, []job.Handle{"1"})
	spec := job.Spec{Name: "a", Array: []int{0, 1}, Dependencies: deps}
	h, err := s.Submit(ctx, spec)
	assert.NoError(t, err)
	assert.EQ(t, h, job.Handle("10"))
	// Mutating the caller's spec does not affect the record.
	deps[0].Handles[0] = "2"
	spec.Array[0] = 5
	h, err = s.Submit(ctx, job.Spec{Name: "b"})
	assert.NoError(t, err)
	assert.EQ(t, h, job.Handle("11"))

	subs := s.Submissions()
	assert.EQ(t, len(subs), 2)
	assert.EQ(t, subs[0].String(), "10 a array=[0 1] dependency=afterok:1")
	assert.EQ(t, subs[1].String(), "11 b")

	s.Reject = func(spec job.Spec) error {
		return fmt.Errorf("queue full")
	}
	_, err = s.Submit(ctx, job.Spec{Name: "c"})
	if !errors.Is(errors.Unavailable, err) {
		t.Errorf("unexpected error %v", err)
	}
	assert.EQ(t, len(s.Submissions()), 2)
}
