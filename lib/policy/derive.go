// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// sysfsNetRoot is where interface state is published by the kernel.
const sysfsNetRoot = "/sys/class/net"

// procNetRoot holds the socket tables scanned for public bindings.
const procNetRoot = "/proc/net"

// tcpListenState is the LISTEN value of the st column in the kernel
// socket tables.
const tcpListenState = "0A"

// OverlayInterfaceStatus reads the operational state of the overlay
// interface from sysfs. Any failure to read or classify the state
// reports OverlayUnknown, which the decision core treats as Skip.
func OverlayInterfaceStatus(iface string) OverlayStatus {
	return overlayStatusFromSysfs(sysfsNetRoot, iface)
}

func overlayStatusFromSysfs(root, iface string) OverlayStatus {
	if iface == "" || strings.ContainsAny(iface, "/\x00") {
		return OverlayUnknown
	}
	data, err := os.ReadFile(filepath.Join(root, iface, "operstate"))
	if err != nil {
		if os.IsNotExist(err) {
			// No interface at all is a definite down, not ambiguity.
			return OverlayDown
		}
		return OverlayUnknown
	}
	switch strings.TrimSpace(string(data)) {
	case "up":
		return OverlayUp
	case "down", "lowerlayerdown", "dormant":
		return OverlayDown
	default:
		// "unknown" and anything unrecognized.
		return OverlayUnknown
	}
}

// ServicePubliclyBound reports whether any socket is listening on the
// given port on a non-loopback address, per the kernel socket tables.
// An error means the fact could not be established; callers must treat
// that as ambiguous, not as false-and-safe.
func ServicePubliclyBound(port int) (bool, error) {
	return serviceBoundPublicly(procNetRoot, port)
}

func serviceBoundPublicly(root string, port int) (bool, error) {
	if port < 1 || port > 65535 {
		return false, fmt.Errorf("policy: port %d out of range", port)
	}

	readOne := false
	for _, table := range []string{"tcp", "tcp6"} {
		bound, err := scanSocketTable(filepath.Join(root, table), port)
		if err != nil {
			if os.IsNotExist(err) {
				// A single-stack kernel may lack one table.
				continue
			}
			return false, err
		}
		readOne = true
		if bound {
			return true, nil
		}
	}
	if !readOne {
		return false, fmt.Errorf("policy: no socket tables readable under %s", root)
	}
	return false, nil
}

// scanSocketTable reads one /proc/net/tcp{,6} table and reports
// whether port has a listener on a non-loopback local address.
func scanSocketTable(path string, port int) (bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer file.Close()

	portHex := fmt.Sprintf("%04X", port)

	scanner := bufio.NewScanner(file)
	scanner.Scan() // header line
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 || fields[3] != tcpListenState {
			continue
		}
		address, foundPort, ok := strings.Cut(fields[1], ":")
		if !ok || foundPort != portHex {
			continue
		}
		if !loopbackHex(address) {
			return true, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("policy: reading %s: %w", path, err)
	}
	return false, nil
}

// loopbackHex classifies a kernel-table local address (little-endian
// hex) as loopback.
func loopbackHex(address string) bool {
	switch len(address) {
	case 8:
		// IPv4: the first octet is the low-order byte of the
		// little-endian word, i.e. the last two hex digits. 127/8 is
		// loopback.
		octet, err := strconv.ParseUint(address[6:], 16, 8)
		return err == nil && octet == 127
	case 32:
		// IPv6 ::1.
		return address == "00000000000000000000000001000000"
	}
	return false
}
