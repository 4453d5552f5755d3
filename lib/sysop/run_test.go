// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package sysop

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestExecRunnerSuccess(t *testing.T) {
	outcome := ExecRunner{}.Run(context.Background(), 5*time.Second, nil, "true")

	if outcome.Status != StatusOK {
		t.Errorf("Status = %s, want ok (detail: %s)", outcome.Status, outcome.Detail)
	}
	if outcome.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", outcome.ExitCode)
	}
}

func TestExecRunnerNonZeroExit(t *testing.T) {
	outcome := ExecRunner{}.Run(context.Background(), 5*time.Second, nil, "sh", "-c", "echo broken >&2; exit 3")

	if outcome.Status != StatusFailed {
		t.Errorf("Status = %s, want failed", outcome.Status)
	}
	if outcome.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", outcome.ExitCode)
	}
	if !strings.Contains(outcome.Detail, "broken") {
		t.Errorf("Detail = %q, want stderr tail", outcome.Detail)
	}
}

func TestExecRunnerTimeout(t *testing.T) {
	started := time.Now()
	outcome := ExecRunner{}.Run(context.Background(), 100*time.Millisecond, nil, "sleep", "30")

	if outcome.Status != StatusTimeout {
		t.Errorf("Status = %s, want timeout", outcome.Status)
	}
	if elapsed := time.Since(started); elapsed > 5*time.Second {
		t.Errorf("runner took %s, the timeout did not bound the call", elapsed)
	}
}

func TestExecRunnerMissingBinary(t *testing.T) {
	outcome := ExecRunner{}.Run(context.Background(), time.Second, nil, "warden-no-such-binary-xyz")

	if outcome.Status != StatusFailed {
		t.Errorf("Status = %s, want failed", outcome.Status)
	}
	if outcome.ExitCode != -1 {
		t.Errorf("ExitCode = %d, want -1 for a process that never ran", outcome.ExitCode)
	}
	if outcome.Detail == "" {
		t.Error("Detail is empty, want an explanation")
	}
}

func TestExecRunnerStdin(t *testing.T) {
	outcome := ExecRunner{}.Run(context.Background(), 5*time.Second, []byte("exit 0\n"), "sh")

	if outcome.Status != StatusOK {
		t.Errorf("Status = %s, want ok (detail: %s)", outcome.Status, outcome.Detail)
	}
}

func TestOutcomeString(t *testing.T) {
	cases := []struct {
		outcome Outcome
		want    string
	}{
		{Outcome{Status: StatusOK}, "ok"},
		{Outcome{Status: StatusFailed, ExitCode: 5}, "exit 5"},
		{Outcome{Status: StatusFailed, ExitCode: 1, Detail: "unit not found"}, "exit 1: unit not found"},
	}
	for _, c := range cases {
		if got := c.outcome.String(); got != c.want {
			t.Errorf("String(%+v) = %q, want %q", c.outcome, got, c.want)
		}
	}
}

func TestStderrTailTruncates(t *testing.T) {
	long := strings.Repeat("x", 4*stderrTailLimit)
	tail := stderrTail(long)
	if len(tail) != stderrTailLimit {
		t.Errorf("tail length = %d, want %d", len(tail), stderrTailLimit)
	}
}
