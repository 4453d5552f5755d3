// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// Package policy guards remediation that could sever the operator's
// remote access.
//
// The decision core is a pure function over two facts: whether the
// overlay network is up (the operator's back door if the public path
// breaks) and whether the remote-access service is confirmed bound to
// a public address. Remediation is permitted only when both hold.
// Anything unknown or ambiguous yields Skip — the policy fails closed,
// never toward the privileged action.
//
// Helpers for deriving the two facts from the running system (sysfs
// carrier state, listening-socket scan) live beside the core, but the
// core itself takes plain values so it can be tested exhaustively.
package policy
