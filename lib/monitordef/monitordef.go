// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package monitordef

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/tidwall/jsonc"
)

// Kind selects which controller a definition drives.
type Kind string

const (
	// KindWatchdog is the failure-threshold watchdog.
	KindWatchdog Kind = "watchdog"

	// KindReconcile is the invariant reconciliation loop.
	KindReconcile Kind = "reconcile"
)

// ProbeKind selects the probe implementation.
type ProbeKind string

const (
	// ProbeHTTP checks a local HTTP health endpoint for a 2xx answer.
	ProbeHTTP ProbeKind = "http"

	// ProbeSocket checks that a Unix socket exists and accepts a
	// connection.
	ProbeSocket ProbeKind = "socket"

	// ProbeRoute checks that routed traffic reaches the expected
	// backend.
	ProbeRoute ProbeKind = "route"

	// ProbeGateway checks that the privileged gateway answers its
	// health request, not merely that its socket accepts a
	// connection.
	ProbeGateway ProbeKind = "gateway"
)

// ProbeSpec describes the health check of one monitor.
type ProbeSpec struct {
	// Type selects the probe implementation.
	Type ProbeKind `json:"type"`

	// Endpoint is the URL for http and route probes.
	Endpoint string `json:"endpoint,omitempty"`

	// Socket is the Unix socket path for socket probes.
	Socket string `json:"socket,omitempty"`

	// ExpectMarker, for route probes, is the backend identity marker
	// the response must carry; an answer without it means the wrong
	// backend is receiving the routed traffic.
	ExpectMarker string `json:"expect_marker,omitempty"`

	// TimeoutSeconds bounds one check. Zero takes the controller
	// default.
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
}

// Timeout returns the probe timeout as a duration, zero when unset.
func (p ProbeSpec) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// GuardSpec configures the safety policy inputs for repairs that can
// sever remote access. An absent guard means the repair is
// access-safe and runs unguarded.
type GuardSpec struct {
	// OverlayInterface is the overlay network interface whose carrier
	// state gates remediation (e.g. "wg0").
	OverlayInterface string `json:"overlay_interface"`

	// RemoteAccessPort is the port the remote-access service must be
	// publicly bound on.
	RemoteAccessPort int `json:"remote_access_port"`
}

// Definition is one monitor: everything an invocation of
// warden-watchdog or warden-reconcile needs.
type Definition struct {
	// MonitorID names the monitor. State keys, status directories,
	// and incident files derive from it.
	MonitorID string `json:"monitor_id"`

	// Kind selects the controller.
	Kind Kind `json:"kind"`

	// Probe is the health or invariant check.
	Probe ProbeSpec `json:"probe"`

	// Threshold is the watchdog escalation threshold. Zero takes the
	// default of 3.
	Threshold int `json:"threshold,omitempty"`

	// SettleDelaySeconds is the pause before the post-action
	// re-probe.
	SettleDelaySeconds int `json:"settle_delay_seconds,omitempty"`

	// ServiceUnit is the systemd unit the watchdog escalation
	// restarts.
	ServiceUnit string `json:"service_unit,omitempty"`

	// RoutingTarget and RoutingPort are the destination the
	// reconcile repair points routing at.
	RoutingTarget string `json:"routing_target,omitempty"`
	RoutingPort   int    `json:"routing_port,omitempty"`

	// RoutedPort is the public-facing port whose traffic the managed
	// rule set redirects. It must match the gateway's routed_port:
	// the direct privileged fallback builds the same rule set the
	// gateway would, and a mismatched port would converge to a
	// different external state than the gateway path.
	RoutedPort int `json:"routed_port,omitempty"`

	// RepairLimit is the consecutive failed-repair count that opens
	// an incident. Zero takes the default of 3.
	RepairLimit int `json:"repair_limit,omitempty"`

	// Guard gates reconcile repairs on the safety policy.
	Guard *GuardSpec `json:"guard,omitempty"`

	// StateDir holds the file state store; SQLitePath selects the
	// SQLite backend instead. Exactly one must be set.
	StateDir   string `json:"state_dir,omitempty"`
	SQLitePath string `json:"sqlite_path,omitempty"`

	// StatusRoot is where status artifacts are written.
	StatusRoot string `json:"status_root"`

	// StatusRetention caps artifacts kept per monitor. Zero takes the
	// writer default.
	StatusRetention int `json:"status_retention,omitempty"`

	// GatewaySocket is the gateway's Unix socket path. Empty means no
	// gateway: the watchdog escalates directly via sysop and the
	// reconciler has no privileged repair channel.
	GatewaySocket string `json:"gateway_socket,omitempty"`

	// SecretFile holds the shared MAC secret for the gateway.
	SecretFile string `json:"secret_file,omitempty"`

	// IncidentDir is where reconcile incidents are written.
	IncidentDir string `json:"incident_dir,omitempty"`

	// DegradedMarker is the flag file a successful repair removes.
	DegradedMarker string `json:"degraded_marker,omitempty"`
}

// SettleDelay returns the settle delay as a duration.
func (d Definition) SettleDelay() time.Duration {
	return time.Duration(d.SettleDelaySeconds) * time.Second
}

// Load reads and validates a definition file. The file may contain
// comments and trailing commas; it is translated to strict JSON
// before decoding, and unknown fields are rejected.
func Load(path string) (Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, fmt.Errorf("monitordef: reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a JSONC definition.
func Parse(data []byte) (Definition, error) {
	decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	decoder.DisallowUnknownFields()

	var definition Definition
	if err := decoder.Decode(&definition); err != nil {
		return Definition{}, fmt.Errorf("monitordef: decoding definition: %w", err)
	}
	if err := definition.Validate(); err != nil {
		return Definition{}, err
	}
	return definition, nil
}

// Validate checks the definition field by field.
func (d Definition) Validate() error {
	if d.MonitorID == "" {
		return fmt.Errorf("monitordef: monitor_id is required")
	}
	switch d.Kind {
	case KindWatchdog, KindReconcile:
	case "":
		return fmt.Errorf("monitordef: %s: kind is required", d.MonitorID)
	default:
		return fmt.Errorf("monitordef: %s: kind %q is not watchdog or reconcile", d.MonitorID, d.Kind)
	}
	if err := d.Probe.validate(d.MonitorID); err != nil {
		return err
	}
	if d.Threshold < 0 {
		return fmt.Errorf("monitordef: %s: threshold must not be negative", d.MonitorID)
	}
	if d.SettleDelaySeconds < 0 {
		return fmt.Errorf("monitordef: %s: settle_delay_seconds must not be negative", d.MonitorID)
	}

	switch {
	case d.StateDir == "" && d.SQLitePath == "":
		return fmt.Errorf("monitordef: %s: one of state_dir or sqlite_path is required", d.MonitorID)
	case d.StateDir != "" && d.SQLitePath != "":
		return fmt.Errorf("monitordef: %s: state_dir and sqlite_path are mutually exclusive", d.MonitorID)
	}
	if d.StatusRoot == "" {
		return fmt.Errorf("monitordef: %s: status_root is required", d.MonitorID)
	}
	if d.GatewaySocket != "" && d.SecretFile == "" {
		return fmt.Errorf("monitordef: %s: secret_file is required when gateway_socket is set", d.MonitorID)
	}

	switch d.Kind {
	case KindWatchdog:
		if d.ServiceUnit == "" {
			return fmt.Errorf("monitordef: %s: service_unit is required for the watchdog escalation", d.MonitorID)
		}
	case KindReconcile:
		if d.RoutingTarget == "" {
			return fmt.Errorf("monitordef: %s: routing_target is required for reconcile", d.MonitorID)
		}
		if d.RoutingPort < 1 || d.RoutingPort > 65535 {
			return fmt.Errorf("monitordef: %s: routing_port %d out of range", d.MonitorID, d.RoutingPort)
		}
		if d.RoutedPort < 1 || d.RoutedPort > 65535 {
			return fmt.Errorf("monitordef: %s: routed_port %d out of range", d.MonitorID, d.RoutedPort)
		}
		if d.IncidentDir == "" {
			return fmt.Errorf("monitordef: %s: incident_dir is required for reconcile", d.MonitorID)
		}
		if d.Guard != nil {
			if d.Guard.OverlayInterface == "" {
				return fmt.Errorf("monitordef: %s: guard.overlay_interface is required", d.MonitorID)
			}
			if d.Guard.RemoteAccessPort < 1 || d.Guard.RemoteAccessPort > 65535 {
				return fmt.Errorf("monitordef: %s: guard.remote_access_port %d out of range", d.MonitorID, d.Guard.RemoteAccessPort)
			}
		}
	}
	return nil
}

// validate checks the probe spec against its type.
func (p ProbeSpec) validate(monitorID string) error {
	switch p.Type {
	case ProbeHTTP:
		if p.Endpoint == "" {
			return fmt.Errorf("monitordef: %s: probe.endpoint is required for http probes", monitorID)
		}
	case ProbeSocket:
		if p.Socket == "" {
			return fmt.Errorf("monitordef: %s: probe.socket is required for socket probes", monitorID)
		}
	case ProbeRoute:
		if p.Endpoint == "" {
			return fmt.Errorf("monitordef: %s: probe.endpoint is required for route probes", monitorID)
		}
	case ProbeGateway:
		if p.Socket == "" {
			return fmt.Errorf("monitordef: %s: probe.socket is required for gateway probes", monitorID)
		}
	case "":
		return fmt.Errorf("monitordef: %s: probe.type is required", monitorID)
	default:
		return fmt.Errorf("monitordef: %s: probe.type %q is not http, socket, route, or gateway", monitorID, p.Type)
	}
	if p.TimeoutSeconds < 0 {
		return fmt.Errorf("monitordef: %s: probe.timeout_seconds must not be negative", monitorID)
	}
	return nil
}
