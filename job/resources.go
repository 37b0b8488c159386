// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package job

import (
	"fmt"
	"strings"

	"github.com/grailbio/base/errors"
)

// Resources is the resource request of a job. Fields left at their
// zero value are not passed to the scheduler.
type Resources struct {
	Account   string
	Partition string
	// Time is the wall-clock limit, in scheduler syntax (e.g.,
	// "01:30:00").
	Time string
	// MemPerCPU is the memory per allocated CPU, in scheduler syntax
	// (e.g., "4G").
	MemPerCPU string
	// NTasks is the number of parallel tasks in each job or array
	// element.
	NTasks      int
	CPUsPerTask int
}

// A Field names a resource field for validation.
type Field int

const (
	FieldAccount Field = iota
	FieldPartition
	FieldTime
	FieldMemPerCPU
	FieldNTasks
	FieldCPUsPerTask
)

var fieldNames = [...]string{
	FieldAccount:     "account",
	FieldPartition:   "partition",
	FieldTime:        "time",
	FieldMemPerCPU:   "mem-per-cpu",
	FieldNTasks:      "ntasks",
	FieldCPUsPerTask: "cpus-per-task",
}

// String returns the field's scheduler flag name.
func (f Field) String() string {
	return fieldNames[f]
}

func (r Resources) isSet(f Field) bool {
	switch f {
	case FieldAccount:
		return r.Account != ""
	case FieldPartition:
		return r.Partition != ""
	case FieldTime:
		return r.Time != ""
	case FieldMemPerCPU:
		return r.MemPerCPU != ""
	case FieldNTasks:
		return r.NTasks > 0
	case FieldCPUsPerTask:
		return r.CPUsPerTask > 0
	}
	panic(f)
}

// Validate returns an error of kind errors.Invalid naming every
// required field that is not set.
func (r Resources) Validate(required ...Field) error {
	var missing []string
	for _, f := range required {
		if !r.isSet(f) {
			missing = append(missing, f.String())
		}
	}
	if r.NTasks < 0 || r.CPUsPerTask < 0 {
		return errors.E(errors.Invalid, fmt.Sprintf("negative task counts: ntasks %d, cpus-per-task %d", r.NTasks, r.CPUsPerTask))
	}
	if len(missing) > 0 {
		return errors.E(errors.Invalid, fmt.Sprintf("missing required resource fields: %s", strings.Join(missing, ", ")))
	}
	return nil
}

// Flags returns the set fields of r as scheduler flags, e.g.,
// "--account=lab".
func (r Resources) Flags() []string {
	var flags []string
	add := func(f Field, v string) {
		if r.isSet(f) {
			flags = append(flags, fmt.Sprintf("--%s=%s", f, v))
		}
	}
	add(FieldAccount, r.Account)
	add(FieldPartition, r.Partition)
	add(FieldTime, r.Time)
	add(FieldMemPerCPU, r.MemPerCPU)
	add(FieldNTasks, fmt.Sprint(r.NTasks))
	add(FieldCPUsPerTask, fmt.Sprint(r.CPUsPerTask))
	return flags
}
