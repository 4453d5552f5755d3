// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package probe

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/wardenhq/warden/lib/clock"
)

// MarkerHeader is the response header the expected internal backend
// sets on its health endpoint. When a RouteProbe is configured with
// an ExpectMarker, a reachable endpoint that does not present the
// marker counts as drift: something other than the expected backend
// answered on the routed port.
const MarkerHeader = "X-Warden-Backend"

// RouteProbe verifies the routing invariant: traffic through the
// routed address reaches the expected internal endpoint. A plain
// reachability check catches a removed or broken rule; the optional
// marker check additionally catches a rule pointing at the wrong
// backend.
type RouteProbe struct {
	// ProbeName identifies the monitor target.
	ProbeName string

	// Address is the routed host:port the outside world uses.
	Address string

	// HealthPath, when non-empty, upgrades the check from a TCP dial
	// to an HTTP GET of this path through the routed address.
	HealthPath string

	// ExpectMarker, when non-empty, requires the MarkerHeader of the
	// HTTP response to equal this value. Only meaningful with
	// HealthPath set.
	ExpectMarker string

	// Timeout bounds the whole check.
	Timeout time.Duration

	// Clock supplies ObservedAt timestamps. Defaults to the real
	// clock when nil.
	Clock clock.Clock
}

// Name implements Probe.
func (p *RouteProbe) Name() string { return p.ProbeName }

// Check implements Probe.
func (p *RouteProbe) Check(ctx context.Context) Result {
	clk := p.Clock
	if clk == nil {
		clk = clock.Real()
	}

	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	if p.HealthPath == "" {
		dialer := net.Dialer{}
		conn, err := dialer.DialContext(ctx, "tcp", p.Address)
		if err != nil {
			return Result{OK: false, Detail: classifyTransportError(err), ObservedAt: clk.Now()}
		}
		conn.Close()
		return Result{OK: true, Detail: "route accepts connections", ObservedAt: clk.Now()}
	}

	url := "http://" + p.Address + p.HealthPath
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Result{OK: false, Detail: fmt.Sprintf("probe_unreachable: building request: %v", err), ObservedAt: clk.Now()}
	}

	response, err := http.DefaultTransport.RoundTrip(request)
	if err != nil {
		return Result{OK: false, Detail: classifyTransportError(err), ObservedAt: clk.Now()}
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return Result{
			OK:         false,
			Detail:     fmt.Sprintf("probe_unhealthy: status %d through route", response.StatusCode),
			ObservedAt: clk.Now(),
		}
	}

	if p.ExpectMarker != "" {
		if marker := response.Header.Get(MarkerHeader); marker != p.ExpectMarker {
			return Result{
				OK:         false,
				Detail:     fmt.Sprintf("probe_unhealthy: backend marker %q, want %q (wrong backend answered)", marker, p.ExpectMarker),
				ObservedAt: clk.Now(),
			}
		}
	}

	return Result{OK: true, Detail: "route reaches expected backend", ObservedAt: clk.Now()}
}
