// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package event

import (
	"encoding/json"
	"testing"
)

func TestEventRoundTrip(t *testing.T) {
	cases := []Event{
		PipelineAdded("1", "videotestsrc ! fakesink"),
		PipelineUpdated("1", "audiotestsrc ! fakesink"),
		PipelineRemoved("1"),
		StateChanged("1", "null", "playing"),
		EOS("1"),
		Error("1", "something broke: debug info"),
		Unsupported("1", "no decoder for video/x-h265"),
	}

	for _, want := range cases {
		raw, err := json.Marshal(want)
		if err != nil {
			t.Fatalf("Marshal(%+v) error = %v", want, err)
		}

		var got Event
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Fatalf("Unmarshal(%s) error = %v", raw, err)
		}
		if got != want {
			t.Errorf("round-trip mismatch: got %+v, want %+v (wire: %s)", got, want, raw)
		}
	}
}

func TestEventWireEnvelopeShape(t *testing.T) {
	raw, err := json.Marshal(EOS("42"))
	if err != nil {
		t.Fatalf("Marshal error = %v", err)
	}

	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		t.Fatalf("Unmarshal error = %v", err)
	}
	if generic["event"] != "eos" {
		t.Errorf("event = %v, want eos", generic["event"])
	}
	data, ok := generic["data"].(map[string]any)
	if !ok {
		t.Fatalf("data is not an object: %v", generic["data"])
	}
	if data["id"] != "42" {
		t.Errorf("data.id = %v, want 42", data["id"])
	}
}

func TestEventUnmarshalUnknownKind(t *testing.T) {
	var e Event
	err := json.Unmarshal([]byte(`{"event":"bogus","data":{}}`), &e)
	if err == nil {
		t.Error("expected error for unknown event kind")
	}
}
