// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package partition

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/bigbatch"
)

const maxLine = 64 << 20

// ReadItems reads line-oriented items from r. Each line is either
// "id<TAB>payload", or a bare payload, in which case the item's ID is
// the line's (0-based) position in the input. IDs must be unique.
func ReadItems(r io.Reader) ([]bigbatch.Item, error) {
	var (
		items []bigbatch.Item
		seen  = make(map[string]bool)
		scan  = bufio.NewScanner(r)
	)
	scan.Buffer(nil, maxLine)
	for n := 0; scan.Scan(); n++ {
		line := scan.Bytes()
		var item bigbatch.Item
		if i := bytes.IndexByte(line, '\t'); i >= 0 {
			item.ID = string(line[:i])
			item.Payload = append([]byte(nil), line[i+1:]...)
		} else {
			item.ID = strconv.Itoa(n)
			item.Payload = append([]byte(nil), line...)
		}
		if seen[item.ID] {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("line %d: duplicate item ID %q", n+1, item.ID))
		}
		seen[item.ID] = true
		items = append(items, item)
	}
	if err := scan.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// EstimateTotalTime estimates the wall-clock time needed to process
// runs items, each taking single, with the parallelism afforded by
// the layout. Every task processes its batch sequentially, so the
// estimate is the size of the largest batch times single.
func EstimateTotalTime(runs int, single time.Duration, l Layout) (time.Duration, error) {
	bounds, err := Bounds(runs, l)
	if err != nil {
		return 0, err
	}
	var largest int
	for _, b := range bounds {
		if n := b[1] - b[0]; n > largest {
			largest = n
		}
	}
	total := time.Duration(largest) * single
	log.Printf("estimate: %d runs of %s over %d tasks (%s): %s", runs, single, l.NumBatch(), l, total)
	return total, nil
}
