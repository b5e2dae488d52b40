// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jsonrpc

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/gpopd/gpopd/internal/gst"
)

func TestResolvePipelineIDDefaultsToZero(t *testing.T) {
	if got := resolvePipelineID(""); got != "0" {
		t.Errorf("resolvePipelineID(\"\") = %q, want \"0\"", got)
	}
	if got := resolvePipelineID("7"); got != "7" {
		t.Errorf("resolvePipelineID(\"7\") = %q, want \"7\"", got)
	}
}

func TestProgressOfClampsToUnitInterval(t *testing.T) {
	cases := []struct {
		name          string
		position, dur gst.Position
		want          *float64
	}{
		{"missing position", gst.Position{}, gst.Position{Nanoseconds: 100, OK: true}, nil},
		{"missing duration", gst.Position{Nanoseconds: 10, OK: true}, gst.Position{}, nil},
		{"zero duration", gst.Position{Nanoseconds: 10, OK: true}, gst.Position{Nanoseconds: 0, OK: true}, nil},
		{"past end clamps to 1", gst.Position{Nanoseconds: 200, OK: true}, gst.Position{Nanoseconds: 100, OK: true}, f(1)},
		{"halfway", gst.Position{Nanoseconds: 50, OK: true}, gst.Position{Nanoseconds: 100, OK: true}, f(0.5)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := progressOf(tc.position, tc.dur)
			if (got == nil) != (tc.want == nil) {
				t.Fatalf("progressOf() = %v, want %v", got, tc.want)
			}
			if got != nil && *got != *tc.want {
				t.Errorf("progressOf() = %v, want %v", *got, *tc.want)
			}
		})
	}
}

func f(v float64) *float64 { return &v }

func TestCodeForErrorMapsGstSentinels(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{gst.ErrPipelineNotFound, CodePipelineNotFound},
		{gst.ErrInvalidPipeline, CodeCreationFailed},
		{gst.ErrMediaNotSupported, CodeMediaNotSupported},
		{gst.ErrStateChangeFailed, CodeStateChangeFailed},
		{gst.ErrFrameworkError, CodeFrameworkError},
		{gst.ErrDescriptionTooLong, CodeDescriptionTooLong},
		{invalidParams(errors.New("bad json")), CodeInvalidParams},
		{errors.New("something else"), CodeInternalError},
	}
	for _, tc := range cases {
		if got := codeForError(tc.err); got != tc.want {
			t.Errorf("codeForError(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestResponseOmitsErrorOnSuccess(t *testing.T) {
	resp := successResponse("1", successResult{Success: true})
	b, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, present := raw["error"]; present {
		t.Error("successResponse should omit the error field")
	}
	if raw["id"] != "1" {
		t.Errorf("id = %v, want \"1\"", raw["id"])
	}
}

func TestErrorResponseOmitsResult(t *testing.T) {
	resp := errorResponse("2", CodePipelineNotFound, "pipeline not found")
	b, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, present := raw["result"]; present {
		t.Error("errorResponse should omit the result field")
	}
}

func TestSnapshotResponseBypassesEnvelope(t *testing.T) {
	resp := snapshotResponse{Type: "SnapshotResponse", Pipelines: []pipelineSnapshot{{ID: "0", Dot: "digraph {}"}}}
	b, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, present := raw["jsonrpc"]; present {
		t.Error("snapshotResponse must not carry a jsonrpc envelope field")
	}
	if _, present := raw["id"]; present {
		t.Error("snapshotResponse must not carry an id envelope field")
	}
	if raw["type"] != "SnapshotResponse" {
		t.Errorf("type = %v, want SnapshotResponse", raw["type"])
	}
}
