// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package setup

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/wardenhq/warden/lib/gateway"
	"github.com/wardenhq/warden/lib/gatewayapi"
	"github.com/wardenhq/warden/lib/monitordef"
	"github.com/wardenhq/warden/lib/policy"
	"github.com/wardenhq/warden/lib/probe"
	"github.com/wardenhq/warden/lib/statestore"
)

// BuildProbe maps a probe spec onto its implementation. The spec has
// already been validated; this only translates shapes.
func BuildProbe(id string, spec monitordef.ProbeSpec) (probe.Probe, error) {
	switch spec.Type {
	case monitordef.ProbeHTTP:
		return &probe.HTTPProbe{
			ProbeName: id,
			URL:       spec.Endpoint,
			Timeout:   spec.Timeout(),
		}, nil

	case monitordef.ProbeSocket:
		return &probe.SocketProbe{
			ProbeName: id,
			Path:      spec.Socket,
			Timeout:   spec.Timeout(),
		}, nil

	case monitordef.ProbeRoute:
		endpoint, err := url.Parse(spec.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("setup: parsing route endpoint %q: %w", spec.Endpoint, err)
		}
		if endpoint.Host == "" {
			return nil, fmt.Errorf("setup: route endpoint %q has no host", spec.Endpoint)
		}
		return &probe.RouteProbe{
			ProbeName:    id,
			Address:      endpoint.Host,
			HealthPath:   endpoint.Path,
			ExpectMarker: spec.ExpectMarker,
			Timeout:      spec.Timeout(),
		}, nil

	case monitordef.ProbeGateway:
		return &gateway.HealthProbe{
			ProbeName:  id,
			SocketPath: spec.Socket,
			Timeout:    spec.Timeout(),
		}, nil
	}
	return nil, fmt.Errorf("setup: unsupported probe type %q", spec.Type)
}

// OpenStore opens the state backend the definition selects.
func OpenStore(definition monitordef.Definition, logger *slog.Logger) (statestore.Store, error) {
	if definition.SQLitePath != "" {
		return statestore.OpenSQLite(definition.SQLitePath, logger)
	}
	return statestore.NewFileStore(definition.StateDir, logger)
}

// NewGatewayClient builds the authenticated gateway client, or nil
// when the definition has no gateway configured.
func NewGatewayClient(definition monitordef.Definition) (*gateway.Client, error) {
	if definition.GatewaySocket == "" {
		return nil, nil
	}
	secret, err := gatewayapi.LoadSecret(definition.SecretFile)
	if err != nil {
		return nil, err
	}
	return gateway.NewClient(definition.GatewaySocket, secret), nil
}

// BuildGuard turns a guard spec into the safety decision function, or
// nil when the definition carries no guard.
func BuildGuard(spec *monitordef.GuardSpec, logger *slog.Logger) func(ctx context.Context) policy.Decision {
	if spec == nil {
		return nil
	}
	return func(ctx context.Context) policy.Decision {
		overlay := policy.OverlayInterfaceStatus(spec.OverlayInterface)

		bound, err := policy.ServicePubliclyBound(spec.RemoteAccessPort)
		if err != nil {
			// An unestablishable binding fact is ambiguous, and
			// ambiguity never remediates.
			logger.Warn("safety guard could not determine bind state",
				"port", spec.RemoteAccessPort,
				"error", err,
			)
			bound = false
		}

		decision := policy.Decide(overlay, bound)
		logger.Info("safety guard decision",
			"overlay_interface", spec.OverlayInterface,
			"overlay_status", overlay.String(),
			"publicly_bound", bound,
			"decision", decision.String(),
		)
		return decision
	}
}
