// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package statestore

import (
	"context"
	"strings"
	"time"
)

// FailureCounter tracks consecutive probe failures for one watchdog
// monitor. Owned exclusively by that monitor's controller: reset to
// zero after any successful probe, incremented by exactly one per
// consecutive failure, and reset to zero when an escalation fires
// regardless of the escalation's outcome.
type FailureCounter struct {
	// MonitorID identifies the owning monitor.
	MonitorID string `json:"monitor_id"`

	// ConsecutiveFailures is the current run of failed probes.
	// Never negative.
	ConsecutiveFailures int `json:"consecutive_failures"`

	// LastAction describes the most recent controller action
	// ("probe_ok", "probe_fail", "escalated").
	LastAction string `json:"last_action"`

	// LastUpdated is when the counter was last written.
	LastUpdated time.Time `json:"last_updated"`
}

// DriftState tracks the repair lifecycle for one reconciliation
// monitor. RepairCount counts consecutive failed repairs; it resets
// to zero whenever the invariant is observed to hold.
type DriftState struct {
	// InvariantName identifies the invariant being reconciled.
	InvariantName string `json:"invariant_name"`

	// DriftDetected records whether the last check found drift.
	DriftDetected bool `json:"drift_detected"`

	// LastRepairAttempt is when a repair was last attempted. Zero
	// if no repair has ever run.
	LastRepairAttempt time.Time `json:"last_repair_attempt"`

	// RepairCount is the number of consecutive failed repairs.
	RepairCount int `json:"repair_count"`

	// IncidentOpen marks the terminal state: repeated repairs have
	// failed and an incident record has been written for a human.
	// Cleared only when a later check finds the invariant holding.
	IncidentOpen bool `json:"incident_open"`
}

// Store is the durable record store consulted at the start and end of
// every controller invocation. Loads of missing or corrupt records
// return the zero value and no error; implementations log corruption
// instead of propagating it.
type Store interface {
	LoadCounter(ctx context.Context, key string) (FailureCounter, error)
	SaveCounter(ctx context.Context, key string, counter FailureCounter) error
	LoadDrift(ctx context.Context, key string) (DriftState, error)
	SaveDrift(ctx context.Context, key string, state DriftState) error
	Close() error
}

// record kinds used to namespace the two record types under one key.
const (
	kindCounter = "counter"
	kindDrift   = "drift"
)

// sanitizeKey maps a monitor key to a string safe for use in a file
// name. Monitor ids are operator-chosen; slashes would escape the
// state directory.
func sanitizeKey(key string) string {
	replacer := strings.NewReplacer("/", "_", string([]byte{0}), "_", "..", "_")
	return replacer.Replace(key)
}
