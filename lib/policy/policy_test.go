// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDecideRemediatesOnlyWhenBothConditionsHold(t *testing.T) {
	tests := []struct {
		name          string
		overlay       OverlayStatus
		publiclyBound bool
		want          Decision
	}{
		{"up and bound", OverlayUp, true, Remediate},
		{"up not bound", OverlayUp, false, Skip},
		{"down and bound", OverlayDown, true, Skip},
		{"down not bound", OverlayDown, false, Skip},
		{"unknown and bound", OverlayUnknown, true, Skip},
		{"unknown not bound", OverlayUnknown, false, Skip},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := Decide(test.overlay, test.publiclyBound); got != test.want {
				t.Errorf("Decide(%v, %v) = %v, want %v",
					test.overlay, test.publiclyBound, got, test.want)
			}
		})
	}
}

func TestZeroValuesFailClosed(t *testing.T) {
	// The zero value of every input must land on Skip.
	var overlay OverlayStatus
	var bound bool
	if Decide(overlay, bound) != Skip {
		t.Error("zero-value inputs did not yield Skip")
	}
}

func writeOperstate(t *testing.T, root, iface, state string) {
	t.Helper()
	directory := filepath.Join(root, iface)
	if err := os.MkdirAll(directory, 0o755); err != nil {
		t.Fatalf("creating %s: %v", directory, err)
	}
	if err := os.WriteFile(filepath.Join(directory, "operstate"), []byte(state+"\n"), 0o644); err != nil {
		t.Fatalf("writing operstate: %v", err)
	}
}

func TestOverlayStatusFromSysfs(t *testing.T) {
	root := t.TempDir()
	writeOperstate(t, root, "wg0", "up")
	writeOperstate(t, root, "wg1", "down")
	writeOperstate(t, root, "wg2", "unknown")

	tests := []struct {
		iface string
		want  OverlayStatus
	}{
		{"wg0", OverlayUp},
		{"wg1", OverlayDown},
		{"wg2", OverlayUnknown},
		{"absent0", OverlayDown},
		{"", OverlayUnknown},
		{"../etc", OverlayUnknown},
	}
	for _, test := range tests {
		if got := overlayStatusFromSysfs(root, test.iface); got != test.want {
			t.Errorf("overlayStatusFromSysfs(%q) = %v, want %v", test.iface, got, test.want)
		}
	}
}

// socketTable builds a /proc/net/tcp-shaped file. Addresses are the
// kernel's little-endian hex form.
func socketTable(t *testing.T, root, name string, rows ...string) {
	t.Helper()
	content := "  sl  local_address rem_address   st\n"
	for _, row := range rows {
		content += "   0: " + row + "\n"
	}
	if err := os.WriteFile(filepath.Join(root, name), []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
}

func TestServiceBoundPublicly(t *testing.T) {
	t.Run("wildcard listener is public", func(t *testing.T) {
		root := t.TempDir()
		socketTable(t, root, "tcp", "00000000:0016 00000000:0000 0A")
		bound, err := serviceBoundPublicly(root, 22)
		if err != nil {
			t.Fatalf("serviceBoundPublicly: %v", err)
		}
		if !bound {
			t.Error("wildcard listener not reported as publicly bound")
		}
	})

	t.Run("loopback-only listener is not public", func(t *testing.T) {
		root := t.TempDir()
		socketTable(t, root, "tcp", "0100007F:0016 00000000:0000 0A")
		socketTable(t, root, "tcp6", "00000000000000000000000001000000:0016 00000000000000000000000000000000:0000 0A")
		bound, err := serviceBoundPublicly(root, 22)
		if err != nil {
			t.Fatalf("serviceBoundPublicly: %v", err)
		}
		if bound {
			t.Error("loopback listener reported as publicly bound")
		}
	})

	t.Run("established connection on the port does not count", func(t *testing.T) {
		root := t.TempDir()
		socketTable(t, root, "tcp", "0A00020F:0016 0A000210:D431 01")
		bound, err := serviceBoundPublicly(root, 22)
		if err != nil {
			t.Fatalf("serviceBoundPublicly: %v", err)
		}
		if bound {
			t.Error("non-LISTEN socket reported as publicly bound")
		}
	})

	t.Run("other ports are ignored", func(t *testing.T) {
		root := t.TempDir()
		socketTable(t, root, "tcp", "00000000:01BB 00000000:0000 0A")
		bound, err := serviceBoundPublicly(root, 22)
		if err != nil {
			t.Fatalf("serviceBoundPublicly: %v", err)
		}
		if bound {
			t.Error("listener on a different port reported as bound")
		}
	})

	t.Run("unreadable tables are an error not a false", func(t *testing.T) {
		root := filepath.Join(t.TempDir(), "missing")
		if _, err := serviceBoundPublicly(root, 22); err == nil {
			t.Error("missing socket tables did not produce an error")
		}
	})
}
