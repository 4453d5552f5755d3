// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

// Credentials identifies the process on the other end of a Unix
// socket connection. Used only for the audit trail — authorization is
// the MAC, not the peer identity (SO_PEERCRED reports the opener of
// the socket, which can differ from the current holder after fd
// passing).
type Credentials struct {
	UID int
	PID int
}

// unknownCredentials is logged when the peer cannot be determined.
var unknownCredentials = Credentials{UID: -1, PID: -1}
