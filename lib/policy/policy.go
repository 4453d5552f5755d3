// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package policy

// Decision is the guard's verdict on a proposed remediation.
type Decision int

const (
	// Skip means the remediation must not run. The default: every
	// zero-value or unclassifiable input combination lands here.
	Skip Decision = iota

	// Remediate means both safety preconditions are confirmed and
	// the remediation may proceed.
	Remediate
)

// String implements fmt.Stringer for log output.
func (d Decision) String() string {
	if d == Remediate {
		return "remediate"
	}
	return "skip"
}

// OverlayStatus is the observed state of the overlay network link.
// Three-valued on purpose: a status that cannot be read is Unknown,
// never assumed Up.
type OverlayStatus int

const (
	// OverlayUnknown means the overlay state could not be determined.
	OverlayUnknown OverlayStatus = iota

	// OverlayUp means the overlay interface exists and has carrier.
	OverlayUp

	// OverlayDown means the overlay interface is absent or has no
	// carrier.
	OverlayDown
)

// String implements fmt.Stringer for log output.
func (s OverlayStatus) String() string {
	switch s {
	case OverlayUp:
		return "up"
	case OverlayDown:
		return "down"
	}
	return "unknown"
}

// Decide is the safety gate for remediation that can cut off remote
// access. It permits the action only when the overlay network is
// confirmed up (so the operator keeps a path in if the public one
// breaks) and the remote-access service is confirmed publicly bound
// (so there is actually something to protect by acting). Every other
// combination, including an unknown overlay state, yields Skip.
//
// Pure function. Callers log the inputs alongside the decision; the
// guard itself never logs.
func Decide(overlay OverlayStatus, publiclyBound bool) Decision {
	if overlay == OverlayUp && publiclyBound {
		return Remediate
	}
	return Skip
}
