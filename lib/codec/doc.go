// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec centralizes Warden's CBOR configuration. All wire
// traffic on the gateway socket goes through this package so encoder
// and decoder settings are defined exactly once.
//
// Encoding uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items.
// The same logical command always produces identical bytes, which is
// what makes it safe to compute the request MAC over the encoded
// command rather than over some ad hoc canonical string.
package codec
