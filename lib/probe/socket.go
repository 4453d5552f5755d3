// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package probe

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/wardenhq/warden/lib/clock"
)

// SocketProbe checks that a Unix socket exists and accepts a
// connection. Used for local daemons whose readiness is "the socket
// answers". A dial alone cannot see a wedged accept loop, so the
// privileged gateway is watched with a health round-trip instead.
type SocketProbe struct {
	// ProbeName identifies the monitor target.
	ProbeName string

	// Path is the Unix socket path.
	Path string

	// Timeout bounds the stat and dial.
	Timeout time.Duration

	// Clock supplies ObservedAt timestamps. Defaults to the real
	// clock when nil.
	Clock clock.Clock
}

// Name implements Probe.
func (p *SocketProbe) Name() string { return p.ProbeName }

// Check implements Probe.
func (p *SocketProbe) Check(ctx context.Context) Result {
	clk := p.Clock
	if clk == nil {
		clk = clock.Real()
	}

	if _, err := os.Stat(p.Path); err != nil {
		return Result{
			OK:         false,
			Detail:     fmt.Sprintf("probe_unreachable: socket absent: %v", err),
			ObservedAt: clk.Now(),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "unix", p.Path)
	if err != nil {
		return Result{OK: false, Detail: classifyTransportError(err), ObservedAt: clk.Now()}
	}
	conn.Close()

	return Result{OK: true, Detail: "socket accepts connections", ObservedAt: clk.Now()}
}
