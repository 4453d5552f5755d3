// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/wardenhq/warden/lib/probe"
	"github.com/wardenhq/warden/lib/sysop"
	"github.com/wardenhq/warden/lib/testutil"
)

func TestHealthProbeHealthyGateway(t *testing.T) {
	client := startServer(t, &sysop.FakeRunner{}, nil)

	p := &HealthProbe{
		ProbeName:  "gateway",
		SocketPath: client.socketPath,
		Timeout:    2 * time.Second,
	}
	if p.Name() != "gateway" {
		t.Errorf("Name = %q, want gateway", p.Name())
	}

	result := p.Check(context.Background())
	if !result.OK {
		t.Errorf("result = %+v, want healthy", result)
	}
}

func TestHealthProbeDetectsWedgedAcceptLoop(t *testing.T) {
	// A listener that never accepts. Connects still succeed out of
	// the kernel backlog, so a dial-only check reports healthy.
	socketPath := filepath.Join(testutil.SocketDir(t), "wedged.sock")
	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer listener.Close()

	dialOnly := &probe.SocketProbe{ProbeName: "gateway", Path: socketPath, Timeout: time.Second}
	if result := dialOnly.Check(context.Background()); !result.OK {
		t.Fatalf("dial-only check = %+v, want OK against the backlog", result)
	}

	p := &HealthProbe{ProbeName: "gateway", SocketPath: socketPath, Timeout: 200 * time.Millisecond}
	result := p.Check(context.Background())
	if result.OK {
		t.Fatal("health round-trip reported OK against a listener that never accepts")
	}
	if !strings.HasPrefix(result.Detail, "probe_unreachable:") {
		t.Errorf("detail = %q, want a probe_unreachable classification", result.Detail)
	}
}

func TestHealthProbeSocketAbsent(t *testing.T) {
	p := &HealthProbe{
		ProbeName:  "gateway",
		SocketPath: filepath.Join(testutil.SocketDir(t), "missing.sock"),
		Timeout:    time.Second,
	}

	result := p.Check(context.Background())
	if result.OK {
		t.Fatal("result.OK = true for an absent socket")
	}
	if !strings.HasPrefix(result.Detail, "probe_unreachable:") {
		t.Errorf("detail = %q, want a probe_unreachable classification", result.Detail)
	}
}
