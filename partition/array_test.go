// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package partition

import (
	"fmt"
	"strings"
	"testing"

	"github.com/grailbio/base/errors"
)

func TestParseArray(t *testing.T) {
	for _, c := range []struct {
		spec string
		want []int
	}{
		{"0", []int{0}},
		{"0-3", []int{0, 1, 2, 3}},
		{"0,6,16-18", []int{0, 6, 16, 17, 18}},
		{"0-15:4", []int{0, 4, 8, 12}},
		{"3-5%2", []int{3, 4, 5}},
		{"5,1-2,2", []int{1, 2, 5}},
	} {
		got, err := ParseArray(c.spec)
		if err != nil {
			t.Errorf("%s: %v", c.spec, err)
			continue
		}
		if fmt.Sprint(got) != fmt.Sprint(c.want) {
			t.Errorf("%s: got %v, want %v", c.spec, got, c.want)
		}
	}
}

func TestParseArrayInvalid(t *testing.T) {
	for _, spec := range []string{"", "a", "3-1", "-1", "0-4:0", "2:3", "0-3%x"} {
		_, err := ParseArray(spec)
		if !errors.Is(errors.Invalid, err) {
			t.Errorf("%q: unexpected error %v", spec, err)
		}
	}
}

func TestFormatArray(t *testing.T) {
	for _, c := range []struct {
		array []int
		want  string
	}{
		{nil, ""},
		{[]int{0}, "0"},
		{[]int{3, 0, 1, 2}, "0-3"},
		{[]int{0, 6, 16, 17, 18}, "0,6,16-18"},
	} {
		if got := FormatArray(c.array); got != c.want {
			t.Errorf("%v: got %q, want %q", c.array, got, c.want)
		}
	}
}

func TestReadItems(t *testing.T) {
	items, err := ReadItems(strings.NewReader("a\tfirst\nsecond\nc\tthird\twith tab\n"))
	if err != nil {
		t.Fatal(err)
	}
	want := [][2]string{{"a", "first"}, {"1", "second"}, {"c", "third\twith tab"}}
	if len(items) != len(want) {
		t.Fatalf("got %d items, want %d", len(items), len(want))
	}
	for i, w := range want {
		if items[i].ID != w[0] || string(items[i].Payload) != w[1] {
			t.Errorf("item %d: got %v, want %v", i, items[i], w)
		}
	}
	_, err = ReadItems(strings.NewReader("x\t1\nx\t2\n"))
	if !errors.Is(errors.Invalid, err) {
		t.Errorf("unexpected error %v", err)
	}
}
