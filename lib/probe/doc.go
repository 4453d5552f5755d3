// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// Package probe implements bounded-time health checks against named
// targets: a local HTTP health endpoint, a Unix socket, or a TCP
// route to an expected internal endpoint.
//
// A probe never returns a Go error. Timeouts, refused connections,
// and bad responses all fold into an unhealthy Result with a detail
// string, because the watchdog controller treats every failure mode
// the same way: increment the counter, record the reason. A hung
// target must never hang the calling controller — every check runs
// under the timeout configured for its monitor.
package probe
