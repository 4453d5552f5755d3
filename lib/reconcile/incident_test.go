// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestIncidentOpenWritesJSONAndMarkdown(t *testing.T) {
	directory := t.TempDir()
	writer := NewIncidentWriter(directory)
	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	incident, err := writer.Open("routing-target",
		"Automated repair keeps failing.",
		[]string{"check the backend", "re-run the apply"},
		3, now)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if incident.ID == "" {
		t.Error("incident has no ID")
	}
	if !incident.OpenedAt.Equal(now) || !incident.UpdatedAt.Equal(now) {
		t.Errorf("timestamps = %v / %v, want %v", incident.OpenedAt, incident.UpdatedAt, now)
	}

	loaded, err := writer.Load("routing-target")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.ID != incident.ID || loaded.FailureCount != 3 {
		t.Errorf("loaded = %+v, want ID %s with 3 failures", loaded, incident.ID)
	}

	markdown, err := os.ReadFile(filepath.Join(directory, "routing-target.md"))
	if err != nil {
		t.Fatalf("reading markdown: %v", err)
	}
	text := string(markdown)
	for _, want := range []string{incident.ID, "check the backend", "re-run the apply", "Manual remediation"} {
		if !strings.Contains(text, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
}

func TestIncidentRefreshKeepsIDAndOpenedAt(t *testing.T) {
	writer := NewIncidentWriter(t.TempDir())
	opened := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	first, err := writer.Open("routing-target", "failing", nil, 1, opened)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}

	second, err := writer.Open("routing-target", "still failing", nil, 2, opened.Add(time.Hour))
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("ID changed on refresh: %s -> %s", first.ID, second.ID)
	}
	if !second.OpenedAt.Equal(first.OpenedAt) {
		t.Errorf("OpenedAt changed on refresh: %v -> %v", first.OpenedAt, second.OpenedAt)
	}
	if !second.UpdatedAt.After(first.UpdatedAt) {
		t.Errorf("UpdatedAt did not advance: %v -> %v", first.UpdatedAt, second.UpdatedAt)
	}
	if second.FailureCount != 2 {
		t.Errorf("FailureCount = %d, want 2", second.FailureCount)
	}
}

func TestIncidentNameCannotEscapeDirectory(t *testing.T) {
	directory := t.TempDir()
	writer := NewIncidentWriter(directory)

	if _, err := writer.Open("../escape", "x", nil, 1, time.Now()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := os.Stat(filepath.Join(filepath.Dir(directory), "escape.json")); err == nil {
		t.Error("incident written outside its directory")
	}
}
