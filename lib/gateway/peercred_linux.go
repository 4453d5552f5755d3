// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"net"

	"golang.org/x/sys/unix"
)

// peerCredentials reads SO_PEERCRED from a Unix socket connection.
// Failures degrade to unknownCredentials rather than erroring: audit
// enrichment must never fail a request.
func peerCredentials(conn net.Conn) Credentials {
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return unknownCredentials
	}

	raw, err := unixConn.SyscallConn()
	if err != nil {
		return unknownCredentials
	}

	credentials := unknownCredentials
	controlErr := raw.Control(func(fd uintptr) {
		ucred, err := unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
		if err != nil {
			return
		}
		credentials = Credentials{UID: int(ucred.Uid), PID: int(ucred.Pid)}
	})
	if controlErr != nil {
		return unknownCredentials
	}
	return credentials
}
