// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// Package status writes per-run status artifacts for monitors and
// reconciliation runs.
//
// Every invocation of a monitor produces exactly one JSON document
// under <root>/<monitor>/, named by its UTC timestamp and run ID so
// artifacts sort chronologically. The newest artifact is additionally
// mirrored to <root>/<monitor>/latest.json for consumers that only
// care about current state. All writes are atomic (temp file, fsync,
// rename) so a reader never observes a partially written document.
//
// Old artifacts are pruned per monitor once the count exceeds the
// configured retention; latest.json is never counted or pruned.
package status
