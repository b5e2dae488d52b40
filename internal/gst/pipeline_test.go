// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package gst

import (
	"errors"
	"strings"
	"testing"
)

func TestNewRejectsEmptyDescription(t *testing.T) {
	for _, desc := range []string{"", "   ", "\t\n"} {
		_, err := New("0", desc)
		if err == nil {
			t.Fatalf("New(%q) expected error, got nil", desc)
		}
		if !errors.Is(err, ErrInvalidPipeline) {
			t.Errorf("New(%q) error kind = %v, want ErrInvalidPipeline", desc, err)
		}
	}
}

func TestNewRejectsOverlongDescription(t *testing.T) {
	desc := strings.Repeat("a", maxDescriptionLength+1)
	_, err := New("0", desc)
	if err == nil {
		t.Fatal("New() with oversized description expected error, got nil")
	}
	if !errors.Is(err, ErrInvalidPipeline) {
		t.Errorf("error kind = %v, want ErrInvalidPipeline", err)
	}
	if !errors.Is(err, ErrDescriptionTooLong) {
		t.Errorf("error kind = %v, want ErrDescriptionTooLong to also match", err)
	}
}
