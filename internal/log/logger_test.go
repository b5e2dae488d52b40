// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestConfigureSetsServiceAndVersion(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Service: "gpopd-test", Version: "v0.0.0-test"})

	L().Info().Msg("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if entry["service"] != "gpopd-test" {
		t.Errorf("service = %v, want gpopd-test", entry["service"])
	}
	if entry["version"] != "v0.0.0-test" {
		t.Errorf("version = %v, want v0.0.0-test", entry["version"])
	}
}

func TestWithComponentAnnotatesLogger(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Output: &buf})

	l := WithComponent("gst")
	l.Info().Msg("started")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal log line: %v", err)
	}
	if entry["component"] != "gst" {
		t.Errorf("component = %v, want gst", entry["component"])
	}
}

func TestLUsableBeforeConfigure(t *testing.T) {
	mu.Lock()
	initialized = false
	mu.Unlock()

	if L() == nil {
		t.Fatal("L() returned nil before Configure")
	}
}
