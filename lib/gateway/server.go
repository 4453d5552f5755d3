// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/wardenhq/warden/lib/codec"
	"github.com/wardenhq/warden/lib/gatewayapi"
	"github.com/wardenhq/warden/lib/sysop"
)

// readTimeout is how long the server waits for a client to send its
// request. A well-behaved client sends immediately after connecting.
const readTimeout = 10 * time.Second

// writeTimeout is how long the server waits for the response write.
const writeTimeout = 10 * time.Second

// maxRequestSize bounds a single CBOR request. Commands are tiny;
// 64 KB is generous and stops a misbehaving client from exhausting
// memory.
const maxRequestSize = 64 * 1024

// reasonNotPermitted is returned for any action outside the
// allow-list or disabled in the gateway's configuration. Uniform for
// both cases: the caller learns the action is off-limits, not why.
const reasonNotPermitted = "action not permitted"

// Config configures a gateway Server.
type Config struct {
	// SocketPath is where the Unix socket is created. The parent
	// directory should restrict access; the socket itself is
	// created with mode 0660.
	SocketPath string

	// Secret is the shared MAC secret. Required.
	Secret []byte

	// Operations executes the privileged work. Required.
	Operations *sysop.Operations

	// Disabled lists allow-listed actions this deployment refuses
	// anyway (e.g., a host with no managed routing disables the
	// routing actions). Optional.
	Disabled map[gatewayapi.Action]bool

	// Logger is the structured audit logger. Required.
	Logger *slog.Logger
}

// Server serves the gateway protocol on a Unix socket.
type Server struct {
	config Config

	// executeMutex serializes all privileged operations. Health
	// never takes it.
	executeMutex sync.Mutex

	// activeConnections tracks in-flight handlers so Serve can
	// drain before returning.
	activeConnections sync.WaitGroup

	// ready is closed once the listener is bound.
	ready chan struct{}
}

// NewServer creates a gateway server. Call Serve to start.
func NewServer(config Config) (*Server, error) {
	if config.SocketPath == "" {
		return nil, fmt.Errorf("gateway: SocketPath is required")
	}
	if len(config.Secret) == 0 {
		return nil, fmt.Errorf("gateway: Secret is required")
	}
	if config.Operations == nil {
		return nil, fmt.Errorf("gateway: Operations is required")
	}
	if config.Logger == nil {
		return nil, fmt.Errorf("gateway: Logger is required")
	}
	return &Server{
		config: config,
		ready:  make(chan struct{}),
	}, nil
}

// Ready returns a channel closed once the server is accepting
// connections.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Serve accepts connections until ctx is cancelled, then stops
// accepting and waits for active handlers to complete. Any stale
// socket file at the configured path is removed before listening,
// and the socket file is removed on return.
func (s *Server) Serve(ctx context.Context) error {
	if err := os.Remove(s.config.SocketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("gateway: removing stale socket %s: %w", s.config.SocketPath, err)
	}

	listener, err := net.Listen("unix", s.config.SocketPath)
	if err != nil {
		return fmt.Errorf("gateway: listening on %s: %w", s.config.SocketPath, err)
	}
	defer func() {
		listener.Close()
		os.Remove(s.config.SocketPath)
	}()

	// Group-readable socket: the channel is restricted by file
	// permissions, not by network policy.
	if err := os.Chmod(s.config.SocketPath, 0660); err != nil {
		return fmt.Errorf("gateway: setting socket permissions: %w", err)
	}

	// Unblock Accept when the context is cancelled.
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.config.Logger.Info("gateway listening",
		"socket", s.config.SocketPath,
		"secret_fingerprint", gatewayapi.SecretFingerprint(s.config.Secret),
	)
	close(s.ready)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.config.Logger.Error("accept failed", "error", err)
			continue
		}

		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.activeConnections.Wait()
	return nil
}

// handleConnection processes one request-response cycle.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	peer := peerCredentials(conn)

	conn.SetReadDeadline(time.Now().Add(readTimeout))

	var request gatewayapi.Request
	if err := codec.NewDecoder(io.LimitReader(conn, maxRequestSize)).Decode(&request); err != nil {
		if errors.Is(err, io.EOF) {
			// Client connected but sent nothing.
			return
		}
		// A request the decoder cannot even parse gets the same
		// generic rejection as a bad MAC.
		s.writeResult(conn, gatewayapi.ExecutionResult{OK: false, Reason: "unauthorized"})
		return
	}

	// Health: reserved, unauthenticated, never privileged, never
	// queued behind privileged work.
	if request.Command.Action == gatewayapi.ActionHealth {
		s.writeResult(conn, gatewayapi.ExecutionResult{OK: true})
		return
	}

	// Authentication always comes first: an unauthenticated caller
	// learns nothing about the allow-list.
	if err := gatewayapi.VerifyCommand(s.config.Secret, request); err != nil {
		s.config.Logger.Warn("rejected unauthenticated request",
			"peer_uid", peer.UID,
			"peer_pid", peer.PID,
		)
		s.writeResult(conn, gatewayapi.ExecutionResult{OK: false, Reason: "unauthorized"})
		return
	}

	command := request.Command
	if !command.Action.Allowed() || s.config.Disabled[command.Action] || command.Validate() != nil {
		s.config.Logger.Warn("rejected command",
			"action", string(command.Action),
			"request_id", command.RequestID,
			"peer_uid", peer.UID,
			"peer_pid", peer.PID,
			"reason", reasonNotPermitted,
		)
		s.writeResult(conn, gatewayapi.ExecutionResult{OK: false, Reason: reasonNotPermitted})
		return
	}

	// Serialize privileged work. Waiters queue here; they are never
	// dropped. The connection read deadline has already been
	// satisfied, so queueing does not race the transport.
	s.executeMutex.Lock()
	started := time.Now()
	result := s.execute(ctx, command)
	duration := time.Since(started)
	s.executeMutex.Unlock()

	s.config.Logger.Info("command executed",
		"action", string(command.Action),
		"request_id", command.RequestID,
		"peer_uid", peer.UID,
		"peer_pid", peer.PID,
		"ok", result.OK,
		"reason", result.Reason,
		"duration", duration,
	)

	s.writeResult(conn, result)
}

// execute dispatches one validated, authenticated command. The switch
// is exhaustive over the allow-list; anything else was rejected
// before this point.
func (s *Server) execute(ctx context.Context, command gatewayapi.Command) gatewayapi.ExecutionResult {
	var outcome sysop.Outcome
	switch command.Action {
	case gatewayapi.ActionRestartService:
		outcome = s.config.Operations.RestartService(ctx, command.Service)
	case gatewayapi.ActionApplyRouting:
		outcome = s.config.Operations.ApplyRouting(ctx, command.Target, command.Port)
	case gatewayapi.ActionResetRouting:
		outcome = s.config.Operations.ResetRouting(ctx)
	default:
		return gatewayapi.ExecutionResult{OK: false, Reason: reasonNotPermitted}
	}

	if outcome.OK() {
		return gatewayapi.ExecutionResult{OK: true}
	}
	return gatewayapi.ExecutionResult{OK: false, Reason: outcome.String()}
}

// writeResult sends the response. Write failures are logged at debug
// level — the connection is closing regardless.
func (s *Server) writeResult(conn net.Conn, result gatewayapi.ExecutionResult) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := codec.NewEncoder(conn).Encode(result); err != nil {
		s.config.Logger.Debug("failed to write response", "error", err)
	}
}
