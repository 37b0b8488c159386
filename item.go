// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bigbatch

// An Item is a single unit of input data. Its ID is preserved
// end-to-end: every result produced from an item carries the same ID.
// The payload is opaque to bigbatch; only the user's Func interprets it.
type Item struct {
	ID      string
	Payload []byte
}

// A Result is the output of applying a Func to an Item's payload.
type Result struct {
	ID    string
	Value []byte
}

// IDs returns the identities of the provided items, in order.
func IDs(items []Item) []string {
	ids := make([]string, len(items))
	for i := range items {
		ids[i] = items[i].ID
	}
	return ids
}

// ResultIDs returns the identities of the provided results, in order.
func ResultIDs(results []Result) []string {
	ids := make([]string, len(results))
	for i := range results {
		ids[i] = results[i].ID
	}
	return ids
}
