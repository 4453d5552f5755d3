// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package status

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wardenhq/warden/lib/atomicfile"
)

// defaultRetention is how many artifacts per monitor are kept when the
// Writer is created with retention 0.
const defaultRetention = 200

// latestName is the fixed filename of the newest-artifact mirror.
const latestName = "latest.json"

// Record is one status artifact. Written once per monitor or
// reconciliation invocation, whether or not that invocation succeeded.
type Record struct {
	// RunID uniquely identifies the invocation that produced this
	// record.
	RunID string `json:"run_id"`

	// Monitor is the monitor or loop name the record belongs to.
	Monitor string `json:"monitor"`

	// OK reports whether the monitored condition held.
	OK bool `json:"ok"`

	// Detail carries the probe or repair detail for failed runs.
	Detail string `json:"detail,omitempty"`

	// Action records what the invocation did about the result:
	// "none", "escalated", "repaired", "repair_failed",
	// "incident_opened", "skipped_unsafe", "error".
	Action string `json:"action"`

	// ConsecutiveFailures is the failure counter value after this
	// invocation. Only meaningful for threshold monitors.
	ConsecutiveFailures int `json:"consecutive_failures,omitempty"`

	// DriftDetected is set by reconciliation runs.
	DriftDetected bool `json:"drift_detected,omitempty"`

	// TimestampUTC is when the record was written.
	TimestampUTC time.Time `json:"timestamp_utc"`
}

// NewRunID returns a fresh invocation identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Writer persists status records beneath a root directory.
type Writer struct {
	root      string
	retention int
	logger    *slog.Logger
}

// NewWriter creates a Writer rooted at root, keeping at most retention
// artifacts per monitor (0 means the default). The root is created on
// first write, not here.
func NewWriter(root string, retention int, logger *slog.Logger) *Writer {
	if retention <= 0 {
		retention = defaultRetention
	}
	return &Writer{root: root, retention: retention, logger: logger}
}

// Write persists one record atomically and refreshes latest.json.
// Pruning failures are logged, not returned: retention is bookkeeping,
// the artifact itself is the contract.
func (w *Writer) Write(record Record) error {
	if record.Monitor == "" {
		return fmt.Errorf("status: record has no monitor name")
	}
	if record.TimestampUTC.IsZero() {
		record.TimestampUTC = time.Now().UTC()
	} else {
		record.TimestampUTC = record.TimestampUTC.UTC()
	}
	if record.RunID == "" {
		record.RunID = NewRunID()
	}

	directory := filepath.Join(w.root, sanitizeMonitorName(record.Monitor))
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return fmt.Errorf("status: creating %s: %w", directory, err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("status: encoding record: %w", err)
	}
	data = append(data, '\n')

	// Timestamp first so lexical order is chronological order.
	name := fmt.Sprintf("%s-%s.json",
		record.TimestampUTC.Format("20060102T150405.000000000Z"),
		record.RunID,
	)
	if err := atomicfile.WriteFile(filepath.Join(directory, name), data, 0o644); err != nil {
		return fmt.Errorf("status: writing artifact: %w", err)
	}
	if err := atomicfile.WriteFile(filepath.Join(directory, latestName), data, 0o644); err != nil {
		return fmt.Errorf("status: writing %s: %w", latestName, err)
	}

	if err := w.prune(directory); err != nil && w.logger != nil {
		w.logger.Warn("status artifact pruning failed",
			"monitor", record.Monitor,
			"error", err,
		)
	}
	return nil
}

// prune removes the oldest artifacts beyond the retention count.
func (w *Writer) prune(directory string) error {
	entries, err := os.ReadDir(directory)
	if err != nil {
		return err
	}

	var artifacts []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == latestName || !strings.HasSuffix(name, ".json") {
			continue
		}
		artifacts = append(artifacts, name)
	}
	if len(artifacts) <= w.retention {
		return nil
	}

	sort.Strings(artifacts)
	for _, name := range artifacts[:len(artifacts)-w.retention] {
		if err := os.Remove(filepath.Join(directory, name)); err != nil {
			return err
		}
	}
	return nil
}

// sanitizeMonitorName keeps monitor-derived paths inside the status
// root.
func sanitizeMonitorName(name string) string {
	return strings.NewReplacer("/", "_", "\x00", "_", "..", "_").Replace(name)
}
