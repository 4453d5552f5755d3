// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wardenhq/warden/lib/atomicfile"
)

// Incident is the terminal escalation record: automated repair has
// failed repeatedly and a human needs to act. Written as JSON for
// machines and Markdown for the human next to it.
type Incident struct {
	// ID is stable across refreshes of the same unresolved incident.
	ID string `json:"id"`

	// InvariantName names the invariant whose repair failed.
	InvariantName string `json:"invariant_name"`

	// OpenedAt is when the incident was first created.
	OpenedAt time.Time `json:"opened_at"`

	// UpdatedAt advances on every refresh.
	UpdatedAt time.Time `json:"updated_at"`

	// FailureCount is how many failed repair attempts the incident
	// now covers.
	FailureCount int `json:"failure_count"`

	// Summary is the one-line human-readable description.
	Summary string `json:"summary"`

	// RemediationSteps are the manual steps for the operator.
	RemediationSteps []string `json:"remediation_steps"`
}

// IncidentWriter persists incidents in a directory, one JSON record
// and one Markdown summary per invariant.
type IncidentWriter struct {
	directory string
}

// NewIncidentWriter creates a writer rooted at directory.
func NewIncidentWriter(directory string) *IncidentWriter {
	return &IncidentWriter{directory: directory}
}

func (w *IncidentWriter) jsonPath(invariant string) string {
	return filepath.Join(w.directory, sanitizeInvariantName(invariant)+".json")
}

// Open creates the incident for an invariant, or refreshes the
// existing unresolved one: same ID, updated timestamp and failure
// count. Never deletes; resolution is a human act.
func (w *IncidentWriter) Open(invariant, summary string, steps []string, failureCount int, now time.Time) (Incident, error) {
	if err := os.MkdirAll(w.directory, 0o755); err != nil {
		return Incident{}, fmt.Errorf("reconcile: creating incident directory: %w", err)
	}

	now = now.UTC()
	incident := Incident{
		ID:               uuid.NewString(),
		InvariantName:    invariant,
		OpenedAt:         now,
		UpdatedAt:        now,
		FailureCount:     failureCount,
		Summary:          summary,
		RemediationSteps: steps,
	}

	if existing, err := w.Load(invariant); err == nil {
		incident.ID = existing.ID
		incident.OpenedAt = existing.OpenedAt
	}

	data, err := json.MarshalIndent(incident, "", "  ")
	if err != nil {
		return Incident{}, fmt.Errorf("reconcile: encoding incident: %w", err)
	}
	data = append(data, '\n')

	jsonPath := w.jsonPath(invariant)
	if err := atomicfile.WriteFile(jsonPath, data, 0o644); err != nil {
		return Incident{}, fmt.Errorf("reconcile: writing incident record: %w", err)
	}

	markdownPath := strings.TrimSuffix(jsonPath, ".json") + ".md"
	if err := atomicfile.WriteFile(markdownPath, incident.markdown(), 0o644); err != nil {
		return Incident{}, fmt.Errorf("reconcile: writing incident summary: %w", err)
	}
	return incident, nil
}

// Load reads the current incident for an invariant. A missing
// incident returns an error satisfying os.IsNotExist.
func (w *IncidentWriter) Load(invariant string) (Incident, error) {
	data, err := os.ReadFile(w.jsonPath(invariant))
	if err != nil {
		return Incident{}, err
	}
	var incident Incident
	if err := json.Unmarshal(data, &incident); err != nil {
		return Incident{}, fmt.Errorf("reconcile: decoding incident for %q: %w", invariant, err)
	}
	return incident, nil
}

// markdown renders the operator-facing summary.
func (i Incident) markdown() []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "# Incident: %s\n\n", i.InvariantName)
	fmt.Fprintf(&b, "- **ID**: %s\n", i.ID)
	fmt.Fprintf(&b, "- **Opened**: %s\n", i.OpenedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- **Last failure**: %s\n", i.UpdatedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "- **Failed repair attempts**: %d\n\n", i.FailureCount)
	fmt.Fprintf(&b, "%s\n\n", i.Summary)
	b.WriteString("## Manual remediation\n\n")
	for n, step := range i.RemediationSteps {
		fmt.Fprintf(&b, "%d. %s\n", n+1, step)
	}
	return []byte(b.String())
}

// sanitizeInvariantName keeps invariant-derived paths inside the
// incident directory.
func sanitizeInvariantName(name string) string {
	return strings.NewReplacer("/", "_", "\x00", "_", "..", "_").Replace(name)
}
