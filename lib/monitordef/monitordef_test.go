// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package monitordef

import (
	"strings"
	"testing"
	"time"
)

const watchdogDefinition = `{
	// Edge proxy health, checked every minute by a systemd timer.
	"monitor_id": "edge-health",
	"kind": "watchdog",
	"probe": {
		"type": "http",
		"endpoint": "http://127.0.0.1:2019/health",
		"timeout_seconds": 5,
	},
	"threshold": 3,
	"settle_delay_seconds": 20,
	"service_unit": "caddy.service",
	"state_dir": "/var/lib/warden/state",
	"status_root": "/var/lib/warden/status",
	"gateway_socket": "/run/warden/gateway.sock",
	"secret_file": "/etc/warden/secret",
}`

const reconcileDefinition = `{
	"monitor_id": "routing-target",
	"kind": "reconcile",
	"probe": {
		"type": "route",
		"endpoint": "http://127.0.0.1:8443/",
		"expect_marker": "backend-a",
	},
	"routing_target": "10.0.0.5",
	"routing_port": 8443,
	// Public port; must match the gateway's routed_port.
	"routed_port": 443,
	"repair_limit": 2,
	"guard": {
		"overlay_interface": "wg0",
		"remote_access_port": 22,
	},
	"sqlite_path": "/var/lib/warden/state.db",
	"status_root": "/var/lib/warden/status",
	"gateway_socket": "/run/warden/gateway.sock",
	"secret_file": "/etc/warden/secret",
	"incident_dir": "/var/lib/warden/incidents",
	"degraded_marker": "/run/warden/degraded",
}`

func TestParseWatchdogDefinitionWithComments(t *testing.T) {
	definition, err := Parse([]byte(watchdogDefinition))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if definition.MonitorID != "edge-health" || definition.Kind != KindWatchdog {
		t.Errorf("definition = %+v, want edge-health watchdog", definition)
	}
	if definition.Probe.Type != ProbeHTTP || definition.Probe.Timeout() != 5*time.Second {
		t.Errorf("probe = %+v, want http with 5s timeout", definition.Probe)
	}
	if definition.SettleDelay() != 20*time.Second {
		t.Errorf("settle delay = %v, want 20s", definition.SettleDelay())
	}
}

func TestParseReconcileDefinition(t *testing.T) {
	definition, err := Parse([]byte(reconcileDefinition))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if definition.Kind != KindReconcile || definition.RoutingTarget != "10.0.0.5" {
		t.Errorf("definition = %+v, want reconcile targeting 10.0.0.5", definition)
	}
	if definition.Guard == nil || definition.Guard.OverlayInterface != "wg0" {
		t.Errorf("guard = %+v, want wg0 overlay guard", definition.Guard)
	}
}

func TestGatewayProbeRequiresSocket(t *testing.T) {
	definition, err := Parse([]byte(watchdogDefinition))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	definition.Probe = ProbeSpec{Type: ProbeGateway}
	if err := definition.Validate(); err == nil || !strings.Contains(err.Error(), "probe.socket") {
		t.Errorf("Validate = %v, want probe.socket error", err)
	}
	definition.Probe.Socket = "/run/warden/gateway.sock"
	if err := definition.Validate(); err != nil {
		t.Errorf("Validate with socket set: %v", err)
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	mangled := strings.Replace(watchdogDefinition, `"threshold"`, `"treshold"`, 1)
	if _, err := Parse([]byte(mangled)); err == nil {
		t.Error("Parse accepted a misspelled field")
	}
}

func TestValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Definition)
		wantPart string
	}{
		{"missing id", func(d *Definition) { d.MonitorID = "" }, "monitor_id"},
		{"bad kind", func(d *Definition) { d.Kind = "cron" }, "kind"},
		{"missing probe type", func(d *Definition) { d.Probe.Type = "" }, "probe.type"},
		{"http without endpoint", func(d *Definition) { d.Probe.Endpoint = "" }, "probe.endpoint"},
		{"negative threshold", func(d *Definition) { d.Threshold = -1 }, "threshold"},
		{"no state backend", func(d *Definition) { d.StateDir = "" }, "state_dir"},
		{"both state backends", func(d *Definition) { d.SQLitePath = "/tmp/x.db" }, "mutually exclusive"},
		{"missing status root", func(d *Definition) { d.StatusRoot = "" }, "status_root"},
		{"gateway without secret", func(d *Definition) { d.SecretFile = "" }, "secret_file"},
		{
			"no escalation unit",
			func(d *Definition) { d.ServiceUnit = "" },
			"service_unit",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			definition, err := Parse([]byte(watchdogDefinition))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			test.mutate(&definition)
			err = definition.Validate()
			if err == nil {
				t.Fatal("Validate accepted an invalid definition")
			}
			if !strings.Contains(err.Error(), test.wantPart) {
				t.Errorf("error %q does not mention %q", err, test.wantPart)
			}
		})
	}
}

func TestReconcileValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Definition)
		wantPart string
	}{
		{"missing target", func(d *Definition) { d.RoutingTarget = "" }, "routing_target"},
		{"bad port", func(d *Definition) { d.RoutingPort = 0 }, "routing_port"},
		{"missing routed port", func(d *Definition) { d.RoutedPort = 0 }, "routed_port"},
		{"missing incident dir", func(d *Definition) { d.IncidentDir = "" }, "incident_dir"},
		{"guard without interface", func(d *Definition) { d.Guard.OverlayInterface = "" }, "overlay_interface"},
		{"guard bad port", func(d *Definition) { d.Guard.RemoteAccessPort = 70000 }, "remote_access_port"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			definition, err := Parse([]byte(reconcileDefinition))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			test.mutate(&definition)
			err = definition.Validate()
			if err == nil {
				t.Fatal("Validate accepted an invalid definition")
			}
			if !strings.Contains(err.Error(), test.wantPart) {
				t.Errorf("error %q does not mention %q", err, test.wantPart)
			}
		})
	}
}
