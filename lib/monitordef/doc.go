// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// Package monitordef loads and validates the external configuration
// surface: monitor definitions (JSONC, comment-friendly since they
// are operator-edited) and the gateway's own YAML config.
//
// Nothing in the core logic is hard-coded to a target: monitor
// identity, probe endpoints, thresholds, delays, and the gateway
// channel path all arrive through these definitions. Validation is
// front-loaded here with per-field errors so a bad definition fails
// the invocation immediately instead of misconfiguring a controller.
package monitordef
