// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// warden-watchdog runs one failure-threshold watchdog tick for a
// monitor definition: probe, count, escalate at threshold. Scheduling
// is external (a systemd timer or cron line per monitor).
//
// Exit codes: 0 the target is healthy; 1 the probe failed, whether or
// not an escalation fired; 2 usage or infrastructure error.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/wardenhq/warden/lib/gateway"
	"github.com/wardenhq/warden/lib/gatewayapi"
	"github.com/wardenhq/warden/lib/monitor"
	"github.com/wardenhq/warden/lib/monitordef"
	"github.com/wardenhq/warden/lib/setup"
	"github.com/wardenhq/warden/lib/status"
	"github.com/wardenhq/warden/lib/sysop"
	"github.com/wardenhq/warden/lib/version"
)

const (
	exitHealthy        = 0
	exitProbeFailed    = 1
	exitInfrastructure = 2
)

// directRestartTimeout bounds the systemctl call on the gateway-less
// escalation path.
const directRestartTimeout = 60 * time.Second

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
		fmt.Printf("warden-watchdog %s\n", version.Info())
		return exitHealthy
	}
	if definitionPath == "" {
		fmt.Fprintln(os.Stderr, "warden-watchdog: --definition is required")
		return exitInfrastructure
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	definition, err := monitordef.Load(definitionPath)
	if err != nil {
		logger.Error("loading definition failed", "error", err)
		return exitInfrastructure
	}
	if definition.Kind != monitordef.KindWatchdog {
		logger.Error("definition is not a watchdog", "kind", string(definition.Kind))
		return exitInfrastructure
	}

	target, err := setup.BuildProbe(definition.MonitorID, definition.Probe)
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

	controller, err := monitor.NewController(monitor.Config{
		MonitorID:    definition.MonitorID,
		Probe:        target,
		ProbeTimeout: definition.Probe.Timeout(),
		Threshold:    definition.Threshold,
		Escalator:    buildEscalator(definition, client, logger),
		SettleDelay:  definition.SettleDelay(),
		Store:        store,
		Status:       status.NewWriter(definition.StatusRoot, definition.StatusRetention, logger),
		Logger:       logger,
	})
	if err != nil {
		logger.Error("building controller failed", "error", err)
		return exitInfrastructure
	}

	report, err := controller.Run(context.Background())
	if err != nil {
		logger.Error("watchdog run failed", "error", err)
		return exitInfrastructure
	}
	if report.Healthy {
		return exitHealthy
	}
	return exitProbeFailed
}

// buildEscalator picks the restart path: through the gateway when one
// is configured, directly via systemctl otherwise (the invoking unit
// then needs the privilege itself).
func buildEscalator(definition monitordef.Definition, client *gateway.Client, logger *slog.Logger) monitor.Escalator {
	if client != nil {
		return monitor.EscalateFunc(func(ctx context.Context) error {
			command, err := gatewayapi.NewRestartService(definition.ServiceUnit)
			if err != nil {
				return err
			}
			result, err := client.Execute(ctx, command)
			if err != nil {
				return err
			}
			if !result.OK {
				return fmt.Errorf("gateway refused restart: %s", result.Reason)
			}
			return nil
		})
	}

	operations := &sysop.Operations{
		Runner:  sysop.ExecRunner{},
		Timeout: directRestartTimeout,
		Logger:  logger,
	}
	return monitor.EscalateFunc(func(ctx context.Context) error {
		if outcome := operations.RestartService(ctx, definition.ServiceUnit); !outcome.OK() {
			return fmt.Errorf("restart failed: %s", outcome.String())
		}
		return nil
	})
}
