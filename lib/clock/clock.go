// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time operations for testability. Production
// code injects Real(); tests inject a Fake with deterministic control
// over Now and instant, recorded sleeps.
//
// Warden's controllers are short-lived processes that sleep at most
// once per invocation (the settle delay after an escalation or repair),
// so the interface is deliberately small: Now and Sleep. Anything that
// needs a timer channel uses the context deadline machinery instead.
package clock

import "time"

// Clock provides the current time and a bounded pause. Every
// production function that would call time.Now or time.Sleep takes a
// Clock (or is a method on a struct holding one) so tests never wait
// on real time.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Sleep pauses the calling goroutine for at least duration d.
	Sleep(d time.Duration)
}

// Real returns a Clock backed by the standard time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }
