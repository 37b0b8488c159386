// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package example

import (
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/bigbatch"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func TestFuncs(t *testing.T) {
	for _, test := range []struct {
		name, in, out string
	}{
		{"identity", "Hello, world", "Hello, world"},
		{"upper", "Hello, world", "HELLO, WORLD"},
		{"wordcount", "  the quick\tbrown fox ", "4"},
		{"wordcount", "", "0"},
		{"max", "3 -7 12 5", "12"},
		{"max", "-3 -7", "-3"},
	} {
		fn, err := bigbatch.LookupFunc(test.name)
		assert.NoError(t, err)
		out, err := fn([]byte(test.in))
		assert.NoError(t, err)
		expect.EQ(t, string(out), test.out)
	}
}

func TestIntMaxInvalid(t *testing.T) {
	for _, in := range []string{"", "1 two 3"} {
		if _, err := IntMax([]byte(in)); !errors.Is(errors.Invalid, err) {
			t.Errorf("%q: expected Invalid, got %v", in, err)
		}
	}
}
