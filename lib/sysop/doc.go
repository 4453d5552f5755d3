// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// Package sysop runs external privileged operations — restarting a
// systemd unit, rewriting the managed nftables rule set — under
// explicit timeouts, returning a typed Outcome instead of ad hoc
// exit-code checks.
//
// The Runner interface is the single subprocess path for the whole
// repository: the gateway's executor and the watchdog's local
// escalation fallback both go through it, so timeout handling and
// stderr capture behave identically everywhere. Tests substitute a
// FakeRunner that records invocations.
package sysop
