// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/wardenhq/warden/lib/clock"
)

// HTTPProbe checks a local health endpoint: any 2xx response within
// the timeout is healthy. Redirects are not followed — a health
// endpoint that redirects is not answering for itself.
type HTTPProbe struct {
	// ProbeName identifies the monitor target.
	ProbeName string

	// URL is the health endpoint (e.g., "http://127.0.0.1:2019/healthz").
	URL string

	// Timeout bounds the whole check: dial, request, response.
	Timeout time.Duration

	// Clock supplies ObservedAt timestamps. Defaults to the real
	// clock when nil.
	Clock clock.Clock
}

// Name implements Probe.
func (p *HTTPProbe) Name() string { return p.ProbeName }

// Check implements Probe.
func (p *HTTPProbe) Check(ctx context.Context) Result {
	clk := p.Clock
	if clk == nil {
		clk = clock.Real()
	}

	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return Result{OK: false, Detail: fmt.Sprintf("probe_unreachable: building request: %v", err), ObservedAt: clk.Now()}
	}

	response, err := client.Do(request)
	if err != nil {
		return Result{OK: false, Detail: classifyTransportError(err), ObservedAt: clk.Now()}
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return Result{
			OK:         false,
			Detail:     fmt.Sprintf("probe_unhealthy: status %d", response.StatusCode),
			ObservedAt: clk.Now(),
		}
	}

	return Result{OK: true, Detail: fmt.Sprintf("status %d", response.StatusCode), ObservedAt: clk.Now()}
}

// classifyTransportError maps a transport failure onto the probe
// error taxonomy: timeouts are distinguishable from unreachability in
// the status record, even though the controller treats them alike.
func classifyTransportError(err error) string {
	var netError net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) ||
		(errors.As(err, &netError) && netError.Timeout()) {
		return fmt.Sprintf("probe_timeout: %v", err)
	}
	return fmt.Sprintf("probe_unreachable: %v", err)
}
