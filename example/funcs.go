// Copyright 2020 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package example registers a few simple transformations, selectable
// by name in the bigbatch command.
package example

import (
	"bytes"
	"strconv"

	"github.com/grailbio/bigbatch"
)

func init() {
	bigbatch.RegisterFunc("identity", Identity)
	bigbatch.RegisterFunc("upper", Upper)
	bigbatch.RegisterFunc("wordcount", WordCount)
	bigbatch.RegisterFunc("max", IntMax)
}

// Identity returns its payload.
func Identity(payload []byte) ([]byte, error) {
	return payload, nil
}

// Upper returns the payload with all letters mapped to upper case.
func Upper(payload []byte) ([]byte, error) {
	return bytes.ToUpper(payload), nil
}

// WordCount returns the number of whitespace-separated words in the
// payload, in decimal.
func WordCount(payload []byte) ([]byte, error) {
	return []byte(strconv.Itoa(len(bytes.Fields(payload)))), nil
}
