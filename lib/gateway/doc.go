// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// Package gateway implements the privileged execution gateway: the
// single process on a host permitted to run operations requiring
// elevated rights, reachable only over a filesystem-permission-
// restricted Unix socket, never the network.
//
// The protocol is one CBOR request-response per connection. Health
// requests are answered concurrently and immediately; everything else
// is MAC-verified, checked against the closed action allow-list, and
// executed under a single mutex so privileged operations never
// interleave. A second concurrent request queues on the mutex — it is
// never dropped. Each operation runs under its own timeout,
// independent of the connection deadlines, so a hung systemctl can
// fail its request without wedging the accept loop.
//
// Every request produces one audit log line: action, request_id,
// peer uid/pid from SO_PEERCRED, outcome, duration. MACs and secrets
// never appear in the log.
package gateway
