// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package example

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/grailbio/base/errors"
)

// IntMax computes the maximum of the whitespace-separated integers in
// payload. It is registered as "max".
func IntMax(payload []byte) ([]byte, error) {
	fields := bytes.Fields(payload)
	if len(fields) == 0 {
		return nil, errors.E(errors.Invalid, "max: no integers")
	}
	var max int64
	for i, f := range fields {
		v, err := strconv.ParseInt(string(f), 10, 64)
		if err != nil {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("max: field %d", i), err)
		}
		if i == 0 || v > max {
			max = v
		}
	}
	return []byte(strconv.FormatInt(max, 10)), nil
}
