// Copyright 2026 The Warden Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
)

func TestMarshalDeterministic(t *testing.T) {
	// Maps with the same contents must encode to identical bytes
	// regardless of insertion order. The MAC over an encoded command
	// depends on this.
	first, err := Marshal(map[string]any{"action": "apply-routing", "port": 8443, "target": "10.0.0.5"})
	if err != nil {
		t.Fatalf("Marshal first: %v", err)
	}
	second, err := Marshal(map[string]any{"target": "10.0.0.5", "port": 8443, "action": "apply-routing"})
	if err != nil {
		t.Fatalf("Marshal second: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("deterministic encoding violated:\n first=%x\nsecond=%x", first, second)
	}
}

func TestRoundTripStruct(t *testing.T) {
	type envelope struct {
		Action string `cbor:"action"`
		Port   int    `cbor:"port,omitempty"`
	}

	data, err := Marshal(envelope{Action: "restart-service", Port: 0})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var got envelope
	if err := Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Action != "restart-service" {
		t.Errorf("Action = %q, want %q", got.Action, "restart-service")
	}
}

func TestDecoderStopsAtValueBoundary(t *testing.T) {
	// The socket protocol relies on CBOR being self-delimiting: one
	// request per connection, decoded directly off the stream. A
	// decoder must consume exactly one value and leave the rest.
	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	if err := encoder.Encode(map[string]any{"action": "health"}); err != nil {
		t.Fatalf("Encode first: %v", err)
	}
	if err := encoder.Encode(map[string]any{"action": "reset-routing"}); err != nil {
		t.Fatalf("Encode second: %v", err)
	}

	type header struct {
		Action string `cbor:"action"`
	}
	decoder := NewDecoder(&buffer)

	var first header
	if err := decoder.Decode(&first); err != nil {
		t.Fatalf("Decode first: %v", err)
	}
	if first.Action != "health" {
		t.Errorf("first Action = %q, want %q", first.Action, "health")
	}

	var second header
	if err := decoder.Decode(&second); err != nil {
		t.Fatalf("Decode second: %v", err)
	}
	if second.Action != "reset-routing" {
		t.Errorf("second Action = %q, want %q", second.Action, "reset-routing")
	}
}

func TestDefaultMapType(t *testing.T) {
	data, err := Marshal(map[string]any{"outer": map[string]any{"inner": "value"}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	outer, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("decoded type = %T, want map[string]any", decoded)
	}
	if _, ok := outer["outer"].(map[string]any); !ok {
		t.Errorf("nested type = %T, want map[string]any", outer["outer"])
	}
}
