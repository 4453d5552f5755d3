// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// Package statestore persists the small per-monitor records that
// survive between controller invocations: failure counters for
// watchdog monitors and drift state for reconciliation monitors.
//
// Controllers are short-lived processes triggered by an external
// scheduler, so the store must be durable and support atomic
// read-then-write per key. The scheduler guarantees at most one
// concurrent run per monitor key, so cross-key coordination is
// unnecessary.
//
// Two backends are provided. FileStore keeps one JSON document per
// record, written atomically; it has no dependencies beyond the
// filesystem and is the default. SQLiteStore keeps all records in a
// single WAL-mode database, which is preferable when many monitors
// share a host and the operator wants one file to back up.
//
// A record that is missing or unreadable loads as its zero value: a
// corrupt counter resets the monitor rather than crashing it. The
// corruption is logged, never propagated.
package statestore
