// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// Package setup assembles runtime components from monitor
// definitions: probes, state stores, gateway clients, and safety
// guards. It is the one place that maps the configuration surface
// onto concrete types, so the warden-watchdog and warden-reconcile
// binaries stay thin.
package setup
