// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// warden-reconcile runs one reconciliation tick for an invariant
// definition: check for drift, repair through the gateway, escalate
// into an incident after repeated failed repairs. Scheduling is
// external.
//
// Exit codes: 0 the invariant holds (already or after repair); 1
// drift is unresolved (skipped, repair failed, or incident open); 2
// usage or infrastructure error.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/wardenhq/warden/lib/monitordef"
	"github.com/wardenhq/warden/lib/reconcile"
	"github.com/wardenhq/warden/lib/setup"
	"github.com/wardenhq/warden/lib/status"
	"github.com/wardenhq/warden/lib/sysop"
	"github.com/wardenhq/warden/lib/version"
)

const (
	exitInvariantHolds = 0
	exitDrift          = 1
	exitInfrastructure = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		definitionPath string
		showVersion    bool
	)
	flag.StringVar(&definitionPath, "definition", "", "path to the monitor definition (JSONC)")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("warden-reconcile %s\n", version.Info())
		return exitInvariantHolds
	}
	if definitionPath == "" {
		fmt.Fprintln(os.Stderr, "warden-reconcile: --definition is required")
		return exitInfrastructure
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	definition, err := monitordef.Load(definitionPath)
	if err != nil {
		logger.Error("loading definition failed", "error", err)
		return exitInfrastructure
	}
	if definition.Kind != monitordef.KindReconcile {
		logger.Error("definition is not a reconcile loop", "kind", string(definition.Kind))
		return exitInfrastructure
	}

	check, err := setup.BuildProbe(definition.MonitorID, definition.Probe)
	if err != nil {
		logger.Error("building probe failed", "error", err)
		return exitInfrastructure
	}

	store, err := setup.OpenStore(definition, logger)
	if err != nil {
		logger.Error("opening state store failed", "error", err)
		return exitInfrastructure
	}
	defer store.Close()

	client, err := setup.NewGatewayClient(definition)
	if err != nil {
		logger.Error("building gateway client failed", "error", err)
		return exitInfrastructure
	}
	if client == nil {
		logger.Error("reconcile requires a gateway_socket in the definition")
		return exitInfrastructure
	}

	reconciler, err := reconcile.NewReconciler(reconcile.Config{
		InvariantName: definition.MonitorID,
		Check:         check,
		CheckTimeout:  definition.Probe.Timeout(),
		Client:        client,
		Fallback: &sysop.Operations{
			Runner:     sysop.ExecRunner{},
			Timeout:    fallbackTimeout,
			RoutedPort: definition.RoutedPort,
			Logger:     logger,
		},
		Guard:            setup.BuildGuard(definition.Guard, logger),
		Target:           definition.RoutingTarget,
		Port:             definition.RoutingPort,
		SettleDelay:      definition.SettleDelay(),
		RepairLimit:      definition.RepairLimit,
		DegradedMarker:   definition.DegradedMarker,
		RemediationSteps: remediationSteps(definition),
		Store:            store,
		Status:           status.NewWriter(definition.StatusRoot, definition.StatusRetention, logger),
		Incidents:        reconcile.NewIncidentWriter(definition.IncidentDir),
		Logger:           logger,
	})
	if err != nil {
		logger.Error("building reconciler failed", "error", err)
		return exitInfrastructure
	}

	report, err := reconciler.Run(context.Background())
	if err != nil {
		logger.Error("reconcile run failed", "error", err)
		return exitInfrastructure
	}
	if report.OK {
		return exitInvariantHolds
	}
	return exitDrift
}

// fallbackTimeout bounds each direct privileged operation on the
// gateway-unavailable path.
const fallbackTimeout = 60 * time.Second

// remediationSteps are the operator instructions embedded in the
// incident when automated repair gives up.
func remediationSteps(definition monitordef.Definition) []string {
	return []string{
		fmt.Sprintf("Check the gateway: systemctl status warden-gateway; its socket should be %s.", definition.GatewaySocket),
		fmt.Sprintf("Verify the backend answers directly: curl -sS http://%s:%d/.", definition.RoutingTarget, definition.RoutingPort),
		"Inspect the routing table: nft list table ip warden.",
		fmt.Sprintf("Re-run the repair by hand: warden-reconcile --definition %s.", definition.MonitorID),
		fmt.Sprintf("Resolve by removing the incident files under %s once routing is confirmed.", definition.IncidentDir),
	}
}
