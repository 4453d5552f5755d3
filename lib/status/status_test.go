// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package status

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestWriter(t *testing.T, retention int) (*Writer, string) {
	t.Helper()
	root := t.TempDir()
	return NewWriter(root, retention, slog.New(slog.DiscardHandler)), root
}

// readLatest decodes latest.json the way an external poller would.
func readLatest(t *testing.T, root, monitor string) Record {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, monitor, "latest.json"))
	if err != nil {
		t.Fatalf("reading latest.json: %v", err)
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatalf("decoding latest.json: %v", err)
	}
	return record
}

func TestWriteProducesArtifactAndLatest(t *testing.T) {
	writer, root := newTestWriter(t, 0)

	record := Record{
		Monitor: "edge-health",
		OK:      false,
		Detail:  "probe_timeout: context deadline exceeded",
		Action:  "escalated",

		ConsecutiveFailures: 3,
	}
	if err := writer.Write(record); err != nil {
		t.Fatalf("Write: %v", err)
	}

	directory := filepath.Join(root, "edge-health")
	entries, err := os.ReadDir(directory)
	if err != nil {
		t.Fatalf("reading %s: %v", directory, err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want artifact + latest.json", len(entries))
	}

	latest := readLatest(t, root, "edge-health")
	if latest.RunID == "" {
		t.Error("RunID was not assigned")
	}
	if latest.TimestampUTC.IsZero() {
		t.Error("TimestampUTC was not assigned")
	}
	if latest.Action != "escalated" || latest.ConsecutiveFailures != 3 {
		t.Errorf("latest = %+v, want escalated with counter 3", latest)
	}
}

func TestWriteRejectsEmptyMonitor(t *testing.T) {
	writer, _ := newTestWriter(t, 0)
	if err := writer.Write(Record{Action: "none"}); err == nil {
		t.Error("Write accepted a record with no monitor name")
	}
}

func TestTimestampsNormalizedToUTC(t *testing.T) {
	writer, root := newTestWriter(t, 0)

	local := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	err := writer.Write(Record{Monitor: "m", Action: "none", TimestampUTC: local})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	latest := readLatest(t, root, "m")
	if latest.TimestampUTC.Location() != time.UTC {
		t.Errorf("timestamp location = %v, want UTC", latest.TimestampUTC.Location())
	}
	if !latest.TimestampUTC.Equal(local) {
		t.Errorf("timestamp = %v, want instant of %v", latest.TimestampUTC, local)
	}
}

func TestRetentionPrunesOldestKeepsLatest(t *testing.T) {
	writer, root := newTestWriter(t, 3)

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 6; i++ {
		err := writer.Write(Record{
			Monitor:      "m",
			OK:           true,
			Action:       "none",
			RunID:        fmt.Sprintf("run-%d", i),
			TimestampUTC: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Write %d: %v", i, err)
		}
	}

	directory := filepath.Join(root, "m")
	entries, err := os.ReadDir(directory)
	if err != nil {
		t.Fatalf("reading %s: %v", directory, err)
	}

	sawLatest := false
	artifacts := 0
	for _, entry := range entries {
		if entry.Name() == "latest.json" {
			sawLatest = true
			continue
		}
		artifacts++

		data, err := os.ReadFile(filepath.Join(directory, entry.Name()))
		if err != nil {
			t.Fatalf("reading artifact: %v", err)
		}
		var record Record
		if err := json.Unmarshal(data, &record); err != nil {
			t.Fatalf("decoding artifact %s: %v", entry.Name(), err)
		}
		// Runs 0-2 were pruned; only the newest three survive.
		switch record.RunID {
		case "run-3", "run-4", "run-5":
		default:
			t.Errorf("unexpected surviving artifact %s", record.RunID)
		}
	}
	if !sawLatest {
		t.Error("latest.json missing after pruning")
	}
	if artifacts != 3 {
		t.Errorf("got %d artifacts, want 3", artifacts)
	}
}

func TestMonitorNameCannotEscapeRoot(t *testing.T) {
	writer, root := newTestWriter(t, 0)

	err := writer.Write(Record{Monitor: "../escape", Action: "none"})
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	if _, err := os.Stat(filepath.Join(filepath.Dir(root), "escape")); err == nil {
		t.Error("artifact written outside the status root")
	}
}
