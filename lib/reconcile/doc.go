// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// Package reconcile keeps one externally observable invariant true:
// check for drift, repair through the privileged gateway, and give up
// into a human-visible incident after repeated failed repairs.
//
// The loop is strictly pull-based. When the invariant holds, a run
// performs zero privileged calls. When drift is found, the run makes
// at most one repair attempt (reset-routing then apply-routing),
// waits a settle delay, re-checks, and records the outcome; retries
// happen by re-invocation on the next scheduler tick, never by
// looping in-process.
//
// After the configured number of consecutive failed repairs the loop
// opens an incident and enters a terminal state: subsequent runs only
// re-check, refreshing the incident, until a check passes or a human
// intervenes. Incidents are never auto-deleted.
package reconcile
