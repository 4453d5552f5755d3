// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// Package gatewayapi defines the wire contract of the privileged
// execution gateway: the closed set of privileged actions, the
// command and response types, and the request MAC.
//
// Both the gateway (server) and its clients import this package so
// the wire types are defined once rather than mirrored. The action
// set is a closed enum matched exhaustively by the gateway — adding
// an action is an explicit code change here, never a new string.
//
// Authentication is an HMAC-SHA256 over the deterministic CBOR
// encoding of the command, keyed by a shared secret known only to the
// gateway and trusted local callers. Determinism matters: signer and
// verifier must produce identical bytes for the same command.
package gatewayapi
