// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package sysop

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Status classifies how an external operation ended.
type Status string

const (
	// StatusOK: the command exited zero within its timeout.
	StatusOK Status = "ok"

	// StatusTimeout: the command was killed when its timeout
	// elapsed. Reported as failure to the caller, but distinguishable
	// in the audit trail from a clean non-zero exit.
	StatusTimeout Status = "timeout"

	// StatusFailed: the command exited non-zero, or could not be
	// started at all.
	StatusFailed Status = "failed"
)

// Outcome is the typed result of one external operation.
type Outcome struct {
	// Status classifies the result.
	Status Status

	// ExitCode is the process exit code. -1 when the process never
	// ran or was killed.
	ExitCode int

	// Detail carries the tail of stderr on failure, or a short
	// explanation when the process could not be started. Empty on
	// success.
	Detail string

	// Duration is how long the operation ran.
	Duration time.Duration
}

// OK reports whether the operation completed successfully.
func (o Outcome) OK() bool { return o.Status == StatusOK }

// String renders the outcome for logs and failure reasons.
func (o Outcome) String() string {
	switch o.Status {
	case StatusOK:
		return "ok"
	case StatusTimeout:
		return fmt.Sprintf("timeout after %s", o.Duration.Round(time.Millisecond))
	default:
		if o.Detail != "" {
			return fmt.Sprintf("exit %d: %s", o.ExitCode, o.Detail)
		}
		return fmt.Sprintf("exit %d", o.ExitCode)
	}
}

// stderrTailLimit bounds how much stderr is carried in an Outcome.
// Enough to diagnose, small enough for a status record.
const stderrTailLimit = 1024

// Runner executes one external command under a timeout. The stdin
// bytes are piped to the process (nftables rule sets arrive this
// way); pass nil for commands that read nothing.
type Runner interface {
	Run(ctx context.Context, timeout time.Duration, stdin []byte, name string, args ...string) Outcome
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner. The command runs under a context timeout;
// when the deadline fires the process is killed and the outcome is
// StatusTimeout.
func (ExecRunner) Run(ctx context.Context, timeout time.Duration, stdin []byte, name string, args ...string) Outcome {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stderr bytes.Buffer
	command := exec.CommandContext(ctx, name, args...)
	command.Stderr = &stderr
	if stdin != nil {
		command.Stdin = bytes.NewReader(stdin)
	}

	started := time.Now()
	err := command.Run()
	duration := time.Since(started)

	if err == nil {
		return Outcome{Status: StatusOK, ExitCode: 0, Duration: duration}
	}

	if ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return Outcome{
			Status:   StatusTimeout,
			ExitCode: -1,
			Detail:   fmt.Sprintf("%s killed after %s", name, timeout),
			Duration: duration,
		}
	}

	var exitError *exec.ExitError
	if errors.As(err, &exitError) {
		return Outcome{
			Status:   StatusFailed,
			ExitCode: exitError.ExitCode(),
			Detail:   stderrTail(stderr.String()),
			Duration: duration,
		}
	}

	// The process never started (binary missing, permission denied).
	return Outcome{
		Status:   StatusFailed,
		ExitCode: -1,
		Detail:   err.Error(),
		Duration: duration,
	}
}

// stderrTail returns the last stderrTailLimit bytes of s, trimmed.
func stderrTail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > stderrTailLimit {
		s = s[len(s)-stderrTailLimit:]
	}
	return s
}

// FakeRunner records invocations and returns scripted outcomes, in
// call order. When the script runs out, it returns StatusOK.
type FakeRunner struct {
	// Outcomes are returned one per call, in order.
	Outcomes []Outcome

	// Calls records every invocation.
	Calls []FakeCall
}

// FakeCall is one recorded Run invocation.
type FakeCall struct {
	Name    string
	Args    []string
	Stdin   string
	Timeout time.Duration
}

// Run implements Runner.
func (f *FakeRunner) Run(ctx context.Context, timeout time.Duration, stdin []byte, name string, args ...string) Outcome {
	f.Calls = append(f.Calls, FakeCall{
		Name:    name,
		Args:    append([]string(nil), args...),
		Stdin:   string(stdin),
		Timeout: timeout,
	})
	if len(f.Outcomes) == 0 {
		return Outcome{Status: StatusOK}
	}
	outcome := f.Outcomes[0]
	f.Outcomes = f.Outcomes[1:]
	return outcome
}
