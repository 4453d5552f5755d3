// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wardenhq/warden/lib/clock"
	"github.com/wardenhq/warden/lib/probe"
)

// HealthProbe checks the gateway with a full health round-trip over
// its socket. A plain connect is not enough: a unix dial succeeds out
// of the kernel backlog even when the accept loop is wedged, so only
// an answered health request proves the gateway is serving.
type HealthProbe struct {
	// ProbeName identifies the monitor target.
	ProbeName string

	// SocketPath is the gateway's Unix socket.
	SocketPath string

	// Timeout bounds the whole round-trip.
	Timeout time.Duration

	// Clock supplies ObservedAt timestamps. Defaults to the real
	// clock when nil.
	Clock clock.Clock
}

// Name implements probe.Probe.
func (p *HealthProbe) Name() string { return p.ProbeName }

// Check implements probe.Probe. Health requests are unauthenticated,
// so the probe needs no secret.
func (p *HealthProbe) Check(ctx context.Context) probe.Result {
	clk := p.Clock
	if clk == nil {
		clk = clock.Real()
	}

	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	err := NewClient(p.SocketPath, nil).Health(ctx)
	switch {
	case err == nil:
		return probe.Result{OK: true, Detail: "gateway answers health", ObservedAt: clk.Now()}
	case errors.Is(err, ErrUnavailable):
		return probe.Result{
			OK:         false,
			Detail:     fmt.Sprintf("probe_unreachable: %v", err),
			ObservedAt: clk.Now(),
		}
	default:
		return probe.Result{
			OK:         false,
			Detail:     fmt.Sprintf("probe_unhealthy: %v", err),
			ObservedAt: clk.Now(),
		}
	}
}
