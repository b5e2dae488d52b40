// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package gst

import (
	"fmt"
	"strings"

	"github.com/go-gst/go-gst/gst"
)

// State is the daemon's closed view of a pipeline's playback state. Its
// ordering matches the underlying framework: VoidPending < Null < Ready <
// Paused < Playing.
type State int

const (
	StateVoidPending State = iota
	StateNull
	StateReady
	StatePaused
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateVoidPending:
		return "void_pending"
	case StateNull:
		return "null"
	case StateReady:
		return "ready"
	case StatePaused:
		return "paused"
	case StatePlaying:
		return "playing"
	default:
		return "void_pending"
	}
}

// ParseState parses a state name case-insensitively. "voidpending" is
// accepted as an alias for "void_pending".
func ParseState(s string) (State, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "void_pending", "voidpending":
		return StateVoidPending, nil
	case "null":
		return StateNull, nil
	case "ready":
		return StateReady, nil
	case "paused":
		return StatePaused, nil
	case "playing":
		return StatePlaying, nil
	default:
		return StateVoidPending, fmt.Errorf("unrecognized pipeline state %q", s)
	}
}

// gstState maps a daemon State to the framework's native state constant.
func (s State) gstState() gst.State {
	switch s {
	case StateNull:
		return gst.StateNull
	case StateReady:
		return gst.StateReady
	case StatePaused:
		return gst.StatePaused
	case StatePlaying:
		return gst.StatePlaying
	default:
		return gst.StateVoidPending
	}
}

// stateFromGst maps a native framework state back to a daemon State.
func stateFromGst(s gst.State) State {
	switch s {
	case gst.StateNull:
		return StateNull
	case gst.StateReady:
		return StateReady
	case gst.StatePaused:
		return StatePaused
	case gst.StatePlaying:
		return StatePlaying
	default:
		return StateVoidPending
	}
}
