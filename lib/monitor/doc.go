// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// Package monitor implements the failure-threshold watchdog: a probe
// wrapped in a persistent consecutive-failure counter that escalates
// (typically a service restart) only after a configured run of
// failures, never on a single blip.
//
// Each Controller invocation is short-lived: load the counter, probe
// once, update the counter, escalate if the threshold is reached, and
// write one status record. Scheduling is external (a systemd timer or
// cron); the controller holds no state between invocations beyond
// what the state store persists.
//
// Counters are independent per monitor. One target being down must
// neither mask nor trigger escalation of another, so controllers
// never share state-store keys.
package monitor
