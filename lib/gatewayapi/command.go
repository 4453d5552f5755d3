// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package gatewayapi

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// Action is one of the closed set of privileged operations the
// gateway will perform. Anything else is rejected before execution.
type Action string

const (
	// ActionRestartService restarts a systemd unit.
	ActionRestartService Action = "restart-service"

	// ActionApplyRouting installs the routing rule set pointing
	// traffic at an internal target and port. Convergent: repeating
	// the same apply yields the same external state.
	ActionApplyRouting Action = "apply-routing"

	// ActionResetRouting flushes the managed routing rule set back
	// to the pass-through default. Reset followed by apply is the
	// supported repair sequence and is safe to repeat.
	ActionResetRouting Action = "reset-routing"

	// ActionHealth is the reserved, always-unauthenticated liveness
	// check. It never performs privileged work and never waits
	// behind privileged work.
	ActionHealth Action = "health"
)

// Allowed reports whether a is in the privileged allow-list. Health
// is not privileged and is deliberately excluded.
func (a Action) Allowed() bool {
	switch a {
	case ActionRestartService, ActionApplyRouting, ActionResetRouting:
		return true
	}
	return false
}

// unitPattern is the conservative shape of a systemd unit name the
// gateway will restart. Anything outside it never reaches argv.
var unitPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.@-]*\.(service|socket)$`)

// targetPattern is the shape of a routing target: an IPv4 address or
// a plain hostname. No spaces, no shell metacharacters.
var targetPattern = regexp.MustCompile(`^[a-zA-Z0-9.-]+$`)

// Command is one privileged request. Immutable once constructed: use
// the New* constructors, which validate per-action parameters and
// assign the request ID.
type Command struct {
	// Action selects the privileged operation.
	Action Action `cbor:"action"`

	// Service is the systemd unit to restart (restart-service only).
	Service string `cbor:"service,omitempty"`

	// Target is the internal routing destination (apply-routing only).
	Target string `cbor:"target,omitempty"`

	// Port is the internal routing destination port (apply-routing
	// only).
	Port int `cbor:"port,omitempty"`

	// RequestID is unique per call. Used for idempotent retries and
	// audit correlation; never interpreted by the executor.
	RequestID string `cbor:"request_id"`
}

// NewRestartService builds a restart-service command for the given
// systemd unit.
func NewRestartService(unit string) (Command, error) {
	if !unitPattern.MatchString(unit) {
		return Command{}, fmt.Errorf("gatewayapi: invalid unit name %q", unit)
	}
	return Command{
		Action:    ActionRestartService,
		Service:   unit,
		RequestID: uuid.NewString(),
	}, nil
}

// NewApplyRouting builds an apply-routing command pointing the routed
// traffic at target:port.
func NewApplyRouting(target string, port int) (Command, error) {
	if !targetPattern.MatchString(target) {
		return Command{}, fmt.Errorf("gatewayapi: invalid routing target %q", target)
	}
	if port < 1 || port > 65535 {
		return Command{}, fmt.Errorf("gatewayapi: port %d out of range", port)
	}
	return Command{
		Action:    ActionApplyRouting,
		Target:    target,
		Port:      port,
		RequestID: uuid.NewString(),
	}, nil
}

// NewResetRouting builds a reset-routing command.
func NewResetRouting() Command {
	return Command{
		Action:    ActionResetRouting,
		RequestID: uuid.NewString(),
	}
}

// Validate checks the per-action parameter constraints on a received
// command. The gateway calls this after MAC verification, before
// execution.
func (c Command) Validate() error {
	switch c.Action {
	case ActionRestartService:
		if !unitPattern.MatchString(c.Service) {
			return fmt.Errorf("gatewayapi: invalid unit name %q", c.Service)
		}
	case ActionApplyRouting:
		if !targetPattern.MatchString(c.Target) {
			return fmt.Errorf("gatewayapi: invalid routing target %q", c.Target)
		}
		if c.Port < 1 || c.Port > 65535 {
			return fmt.Errorf("gatewayapi: port %d out of range", c.Port)
		}
	case ActionResetRouting:
		// No parameters.
	default:
		return fmt.Errorf("gatewayapi: action %q is not allow-listed", c.Action)
	}
	if c.RequestID == "" {
		return fmt.Errorf("gatewayapi: request_id is required")
	}
	return nil
}

// Request is the wire envelope for the gateway socket: the command
// plus its MAC. Health requests use a bare Request with
// Command.Action set to ActionHealth and no MAC.
type Request struct {
	Command Command `cbor:"command"`

	// MAC is the hex-encoded HMAC-SHA256 over the deterministic CBOR
	// encoding of Command. Absent for health.
	MAC string `cbor:"mac,omitempty"`
}

// ExecutionResult is the gateway's answer to every command.
type ExecutionResult struct {
	// OK reports whether the operation completed successfully.
	OK bool `cbor:"ok"`

	// Reason is populated only on failure. It never contains secret
	// material, and for authentication failures it is the single
	// generic string "unauthorized" regardless of which part of the
	// verification failed.
	Reason string `cbor:"reason,omitempty"`
}
