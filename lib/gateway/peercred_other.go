// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package gateway

import "net"

// peerCredentials is a no-op on platforms without SO_PEERCRED. The
// gateway itself only deploys on Linux; this stub keeps the package
// compiling for development on other systems.
func peerCredentials(net.Conn) Credentials {
	return unknownCredentials
}
