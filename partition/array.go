// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package partition

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
)

// ParseArray parses a job array specification in the syntax accepted
// by Slurm's --array flag: a comma-separated list of indices and
// ranges, where ranges may carry a step, e.g. "0-3,7,10-20:5". A
// trailing "%limit" (which bounds concurrently running elements) is
// accepted and ignored. The returned elements are sorted and unique.
func ParseArray(spec string) ([]int, error) {
	if i := strings.IndexByte(spec, '%'); i >= 0 {
		if _, err := strconv.Atoi(spec[i+1:]); err != nil {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("array %q: bad limit", spec), err)
		}
		spec = spec[:i]
	}
	if strings.TrimSpace(spec) == "" {
		return nil, errors.E(errors.Invalid, "empty array specification")
	}
	set := make(map[int]bool)
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		step := 1
		if i := strings.IndexByte(part, ':'); i >= 0 {
			var err error
			step, err = strconv.Atoi(part[i+1:])
			if err != nil || step <= 0 {
				return nil, errors.E(errors.Invalid, fmt.Sprintf("array %q: bad step in %q", spec, part))
			}
			part = part[:i]
		}
		lo, hi := part, part
		if i := strings.IndexByte(part, '-'); i >= 0 {
			lo, hi = part[:i], part[i+1:]
		} else if step != 1 {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("array %q: step without range in %q", spec, part))
		}
		start, err := strconv.Atoi(lo)
		if err != nil || start < 0 {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("array %q: bad index %q", spec, lo))
		}
		end, err := strconv.Atoi(hi)
		if err != nil || end < start {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("array %q: bad range %q", spec, part))
		}
		for i := start; i <= end; i += step {
			set[i] = true
		}
	}
	array := make([]int, 0, len(set))
	for i := range set {
		array = append(array, i)
	}
	sort.Ints(array)
	return array, nil
}

// FormatArray formats a set of array elements in the syntax parsed by
// ParseArray, collapsing runs of consecutive elements into ranges.
func FormatArray(array []int) string {
	if len(array) == 0 {
		return ""
	}
	sorted := append([]int(nil), array...)
	sort.Ints(sorted)
	var parts []string
	for i := 0; i < len(sorted); {
		j := i
		for j+1 < len(sorted) && sorted[j+1] == sorted[j]+1 {
			j++
		}
		switch {
		case j == i:
			parts = append(parts, strconv.Itoa(sorted[i]))
		default:
			parts = append(parts, fmt.Sprintf("%d-%d", sorted[i], sorted[j]))
		}
		i = j + 1
		for i < len(sorted) && sorted[i] == sorted[i-1] {
			i++
		}
	}
	return strings.Join(parts, ",")
}
