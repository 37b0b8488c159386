// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package slurm implements job.Scheduler by invoking Slurm's sbatch
// command. Submissions are not retried: a rejected submission is
// returned to the caller.
package slurm

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/bigbatch/job"
	"github.com/grailbio/bigbatch/partition"
)

// A Runner runs a command and returns its standard output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Scheduler submits jobs with sbatch.
type Scheduler struct {
	// Sbatch is the sbatch binary; defaults to "sbatch".
	Sbatch string
	// Defaults supplies resource fields that are not set in a
	// submitted spec.
	Defaults job.Resources
	// Run runs sbatch; defaults to running the command with os/exec.
	Run Runner
}

// Args returns the sbatch arguments that submit spec. Specs launched
// as commands are wrapped in a batch script with --wrap; specs
// launched as tasks are additionally started with srun, which runs
// one process per task with SLURM_PROCID and SLURM_NTASKS set.
func (s *Scheduler) Args(spec job.Spec) ([]string, error) {
	if spec.Script == "" {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("job %s: no script", spec.Name))
	}
	args := []string{"--parsable"}
	if spec.Name != "" {
		args = append(args, "--job-name="+spec.Name)
	}
	args = append(args, merge(spec.Resources, s.Defaults).Flags()...)
	if len(spec.Array) > 0 {
		args = append(args, "--array="+partition.FormatArray(spec.Array))
	}
	if len(spec.Dependencies) > 0 {
		if err := job.ValidateDependencies(spec.Dependencies); err != nil {
			return nil, err
		}
		args = append(args, "--dependency="+job.FormatDependencies(spec.Dependencies))
	}
	command := append([]string{spec.Script}, spec.Args...)
	switch spec.Launch {
	case job.LaunchScript:
		return append(args, command...), nil
	case job.LaunchCommand:
		return append(args, "--wrap="+shellJoin(command)), nil
	case job.LaunchTasks:
		return append(args, "--wrap="+shellJoin(append([]string{"srun"}, command...))), nil
	default:
		return nil, errors.E(errors.Invalid, fmt.Sprintf("job %s: invalid launch mode %s", spec.Name, spec.Launch))
	}
}

// shellJoin joins args into a command line for the batch script that
// sbatch generates for --wrap.
func shellJoin(args []string) string {
	quoted := make([]string, len(args))
	for i, arg := range args {
		quoted[i] = shellQuote(arg)
	}
	return strings.Join(quoted, " ")
}

func shellQuote(s string) string {
	if s != "" && strings.IndexFunc(s, unsafeShellRune) < 0 {
		return s
	}
	return "'" + strings.Replace(s, "'", `'\''`, -1) + "'"
}

func unsafeShellRune(r rune) bool {
	switch {
	case 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z', '0' <= r && r <= '9':
		return false
	}
	return !strings.ContainsRune("-_./:=,@%+", r)
}

// Submit implements job.Scheduler.
func (s *Scheduler) Submit(ctx context.Context, spec job.Spec) (job.Handle, error) {
	args, err := s.Args(spec)
	if err != nil {
		return "", err
	}
	sbatch, run := s.Sbatch, s.Run
	if sbatch == "" {
		sbatch = "sbatch"
	}
	if run == nil {
		run = runCommand
	}
	log.Debug.Printf("slurm: %s %s", sbatch, strings.Join(args, " "))
	out, err := run(ctx, sbatch, args...)
	if err != nil {
		return "", errors.E(errors.Unavailable, fmt.Sprintf("sbatch %s", spec.Name), err)
	}
	return ParseJobID(out)
}

// ParseJobID parses the output of "sbatch --parsable", which is
// formatted as "jobid[;cluster]".
func ParseJobID(out []byte) (job.Handle, error) {
	id := strings.TrimSpace(string(out))
	if i := strings.IndexByte(id, ';'); i >= 0 {
		id = id[:i]
	}
	if id == "" || strings.IndexFunc(id, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
		return "", errors.E(errors.Unavailable, fmt.Sprintf("sbatch: unexpected output %q", out))
	}
	return job.Handle(id), nil
}

func merge(r, defaults job.Resources) job.Resources {
	if r.Account == "" {
		r.Account = defaults.Account
	}
	if r.Partition == "" {
		r.Partition = defaults.Partition
	}
	if r.Time == "" {
		r.Time = defaults.Time
	}
	if r.MemPerCPU == "" {
		r.MemPerCPU = defaults.MemPerCPU
	}
	if r.NTasks == 0 {
		r.NTasks = defaults.NTasks
	}
	if r.CPUsPerTask == 0 {
		r.CPUsPerTask = defaults.CPUsPerTask
	}
	return r
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%v: %s", err, msg)
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}
