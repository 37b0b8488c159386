// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bigbatch

import (
	"fmt"
	"sort"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

// A Func is a user-supplied transformation applied to the payload of
// each item of a batch. Funcs are invoked sequentially; an error
// aborts the batch in which it occurred.
type Func func(payload []byte) ([]byte, error)

var (
	mu sync.Mutex
	// funcs is the global registry of funcs, keyed by name. Executors
	// are separate processes, so funcs must be registered during
	// package initialization of the binary that runs them.
	funcs = map[string]Func{}
)

// RegisterFunc registers fn under the provided name, so that it may be
// selected by executors (for example through the -func flag of the
// bigbatch command). RegisterFunc panics if the name is already
// registered or fn is nil.
func RegisterFunc(name string, fn Func) {
	if fn == nil {
		log.Panicf("bigbatch.RegisterFunc: nil func %s", name)
	}
	mu.Lock()
	defer mu.Unlock()
	if funcs[name] != nil {
		log.Panicf("bigbatch.RegisterFunc: func %s is already registered", name)
	}
	funcs[name] = fn
}

// LookupFunc returns the func registered under the provided name. An
// error of kind errors.NotExist is returned if no such func exists.
func LookupFunc(name string) (Func, error) {
	mu.Lock()
	defer mu.Unlock()
	fn := funcs[name]
	if fn == nil {
		return nil, errors.E(errors.NotExist, fmt.Sprintf("func %q is not registered", name))
	}
	return fn, nil
}

// Funcs returns the names of all registered funcs, sorted.
func Funcs() []string {
	mu.Lock()
	defer mu.Unlock()
	names := make([]string, 0, len(funcs))
	for name := range funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
