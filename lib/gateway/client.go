// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/wardenhq/warden/lib/codec"
	"github.com/wardenhq/warden/lib/gatewayapi"
)

// ErrUnavailable reports that the gateway itself could not be
// reached: socket absent, connection refused, or transport timeout.
// Distinct from the gateway answering with a failure — callers with a
// local fallback path use this distinction to decide whether to
// attempt privileged work directly; callers without a fallback treat
// it as an ordinary failure.
var ErrUnavailable = errors.New("gateway unavailable")

// dialTimeout covers only the connect phase.
const dialTimeout = 5 * time.Second

// responseTimeout is how long the client waits for the gateway's
// response after writing the request. Privileged operations run under
// the gateway's own operation timeout, so this must comfortably
// exceed it.
const responseTimeout = 60 * time.Second

// maxResponseSize mirrors the server's request bound.
const maxResponseSize = 64 * 1024

// Client sends authenticated commands to the gateway. Each call opens
// one connection, matching the server's one-request-per-connection
// model.
type Client struct {
	socketPath string
	secret     []byte
}

// NewClient creates a client for the gateway at socketPath. The
// secret signs every command; health checks do not use it.
func NewClient(socketPath string, secret []byte) *Client {
	return &Client{socketPath: socketPath, secret: secret}
}

// Execute signs and sends one command. Transport failures return
// ErrUnavailable (wrapped); a reachable gateway always produces an
// ExecutionResult, which may itself report failure.
func (c *Client) Execute(ctx context.Context, command gatewayapi.Command) (gatewayapi.ExecutionResult, error) {
	mac, err := gatewayapi.SignCommand(c.secret, command)
	if err != nil {
		return gatewayapi.ExecutionResult{}, fmt.Errorf("gateway: signing command: %w", err)
	}
	return c.send(ctx, gatewayapi.Request{Command: command, MAC: mac})
}

// Health checks gateway liveness over the reserved unauthenticated
// path. Returns ErrUnavailable (wrapped) when the gateway cannot be
// reached.
func (c *Client) Health(ctx context.Context) error {
	result, err := c.send(ctx, gatewayapi.Request{
		Command: gatewayapi.Command{Action: gatewayapi.ActionHealth},
	})
	if err != nil {
		return err
	}
	if !result.OK {
		return fmt.Errorf("gateway: health check failed: %s", result.Reason)
	}
	return nil
}

// send performs one request-response cycle.
func (c *Client) send(ctx context.Context, request gatewayapi.Request) (gatewayapi.ExecutionResult, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return gatewayapi.ExecutionResult{}, fmt.Errorf("%w: dialing %s: %v", ErrUnavailable, c.socketPath, err)
	}
	defer conn.Close()

	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		return gatewayapi.ExecutionResult{}, fmt.Errorf("%w: writing request: %v", ErrUnavailable, err)
	}

	// Half-close the write side so the server's read sees EOF
	// cleanly. CBOR is self-delimiting, so this is a courtesy, not a
	// framing requirement.
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	// The server closes the connection after its single response, so
	// read to EOF and decode the complete message. The context
	// deadline, when sooner, overrides the default response timeout.
	deadline := time.Now().Add(responseTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetReadDeadline(deadline)

	data, err := io.ReadAll(io.LimitReader(conn, maxResponseSize))
	if err != nil {
		return gatewayapi.ExecutionResult{}, fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}
	var result gatewayapi.ExecutionResult
	if err := codec.Unmarshal(data, &result); err != nil {
		return gatewayapi.ExecutionResult{}, fmt.Errorf("%w: decoding response: %v", ErrUnavailable, err)
	}

	return result, nil
}
