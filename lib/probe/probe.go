// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package probe

import (
	"context"
	"time"
)

// Result is the outcome of one probe check. Ephemeral: produced by a
// Probe, consumed immediately by the controller, never persisted
// as-is.
type Result struct {
	// OK reports whether the target looked healthy.
	OK bool

	// Detail is a short human-readable reason, populated on failure
	// ("probe_timeout: ...", "probe_unreachable: ...") and optionally
	// on success ("status 200").
	Detail string

	// ObservedAt is when the check completed.
	ObservedAt time.Time
}

// Probe checks one named target within a bounded time. Implementations
// must respect ctx cancellation and their configured timeout, folding
// both into an unhealthy Result rather than returning an error.
type Probe interface {
	// Name identifies the target for logs and status records.
	Name() string

	// Check runs one health check.
	Check(ctx context.Context) Result
}

// Func adapts a function to the Probe interface. Used by tests and by
// callers composing ad hoc checks.
type Func struct {
	ProbeName string
	CheckFunc func(ctx context.Context) Result
}

// Name implements Probe.
func (f Func) Name() string { return f.ProbeName }

// Check implements Probe.
func (f Func) Check(ctx context.Context) Result { return f.CheckFunc(ctx) }
