// Copyright 2019 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/grailbio/bigbatch"
)

func funcsCmd(args []string) {
	flags := flag.NewFlagSet("bigbatch funcs", flag.ExitOnError)
	flags.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: bigbatch funcs")
		os.Exit(2)
	}
	flags.Parse(args)
	for _, name := range bigbatch.Funcs() {
		fmt.Println(name)
	}
}
