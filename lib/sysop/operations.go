// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package sysop

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// routingTable is the dedicated nftables table Warden owns. Nothing
// else on the host writes to it, so flushing it cannot disturb
// foreign rules.
const routingTable = "warden"

// Operations executes Warden's privileged operations through a
// Runner. One instance is shared by the gateway's executor; the
// reconciler's direct-fallback path builds its own when it already
// holds privilege.
type Operations struct {
	// Runner executes the underlying commands. Required.
	Runner Runner

	// Timeout bounds each individual operation. Required.
	Timeout time.Duration

	// RoutedPort is the public-facing port whose traffic the
	// managed rule set redirects. Required for routing operations.
	RoutedPort int

	// Logger receives one line per operation. Required.
	Logger *slog.Logger
}

// RestartService restarts a systemd unit. The unit name must already
// have been validated (gatewayapi validates on both ends); this is
// the last stop before argv.
func (o *Operations) RestartService(ctx context.Context, unit string) Outcome {
	outcome := o.Runner.Run(ctx, o.Timeout, nil, "systemctl", "restart", unit)
	o.Logger.Info("restart-service executed",
		"unit", unit,
		"status", outcome.Status,
		"exit_code", outcome.ExitCode,
		"duration", outcome.Duration,
	)
	return outcome
}

// ApplyRouting atomically replaces the managed rule set so that
// traffic arriving on the routed port is forwarded to target:port.
// The declare-delete-declare sequence is nftables' atomic replacement
// idiom: repeating the same apply converges to the same rule set
// instead of erroring or accumulating duplicates.
func (o *Operations) ApplyRouting(ctx context.Context, target string, port int) Outcome {
	ruleset := fmt.Sprintf(`table ip %[1]s {}
delete table ip %[1]s
table ip %[1]s {
	chain prerouting {
		type nat hook prerouting priority dstnat; policy accept;
		tcp dport %[2]d dnat to %[3]s:%[4]d
	}
	chain postrouting {
		type nat hook postrouting priority srcnat; policy accept;
		ip daddr %[3]s tcp dport %[4]d masquerade
	}
}
`, routingTable, o.RoutedPort, target, port)

	outcome := o.Runner.Run(ctx, o.Timeout, []byte(ruleset), "nft", "-f", "-")
	o.Logger.Info("apply-routing executed",
		"target", target,
		"port", port,
		"routed_port", o.RoutedPort,
		"status", outcome.Status,
		"exit_code", outcome.ExitCode,
		"duration", outcome.Duration,
	)
	return outcome
}

// ResetRouting flushes the managed rule set back to the pass-through
// default. Declaring the table before deleting it makes the delete
// succeed whether or not the table exists, so reset is safe to repeat
// and safe to run before the first apply.
func (o *Operations) ResetRouting(ctx context.Context) Outcome {
	ruleset := fmt.Sprintf("table ip %[1]s {}\ndelete table ip %[1]s\n", routingTable)

	outcome := o.Runner.Run(ctx, o.Timeout, []byte(ruleset), "nft", "-f", "-")
	o.Logger.Info("reset-routing executed",
		"status", outcome.Status,
		"exit_code", outcome.ExitCode,
		"duration", outcome.Duration,
	)
	return outcome
}
