// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package gst wraps the native GStreamer framework (via go-gst) with the
// lifetime discipline this daemon needs: validated construction, a single
// bus-watcher per pipeline, an atomic shutdown flag, and a bounded
// state-change discipline.
package gst

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-gst/go-gst/gst"
)

const (
	// maxDescriptionLength bounds a pipeline description to prevent memory
	// exhaustion from a hostile or malformed client.
	maxDescriptionLength = 64 * 1024

	// busPollTimeout is the deadline for a single bus-pop call, chosen so
	// the shutdown flag is re-checked at least ten times per second.
	busPollTimeout = 100 * time.Millisecond
)

// DotDetail selects the level of detail in a DOT topology dump.
type DotDetail string

const (
	DotMedia      DotDetail = "media"
	DotCaps       DotDetail = "caps"
	DotNonDefault DotDetail = "non-default"
	DotStates     DotDetail = "states"
	DotAll        DotDetail = "all"
)

// Pipeline owns one parsed element graph: its native handle, its
// bus-watcher goroutine, and a shutdown flag shared between owner and
// watcher. Exactly one bus-watcher is live per Pipeline from just after
// construction until Close.
type Pipeline struct {
	id          string
	description string
	native      *gst.Pipeline

	shutdown    atomic.Bool
	watcherStop chan struct{}
	watcherDone chan struct{}
}

// New parses description via the framework and wraps the result. The
// framework must already be initialized process-wide (gst.Init); New does
// not initialize it, so initialization failures surface at startup instead
// of being masked here.
func New(id, description string) (*Pipeline, error) {
	trimmed := strings.TrimSpace(description)
	if trimmed == "" {
		return nil, newInvalidPipeline("pipeline description cannot be empty")
	}
	if len(description) > maxDescriptionLength {
		return nil, newDescriptionTooLong(len(description), maxDescriptionLength)
	}

	// NewPipelineFromString refuses descriptions whose parsed root is a
	// bare element rather than a composite graph, so the composite check
	// rides on the same error path as a parse failure.
	native, err := gst.NewPipelineFromString(description)
	if err != nil {
		if msg, ok := classifyUnsupportedMedia(err.Error()); ok {
			return nil, newMediaNotSupported(msg)
		}
		return nil, newInvalidPipeline("%s", err.Error())
	}

	if native.GetPipelineBus() == nil {
		return nil, newFrameworkError("parsed pipeline has no message bus")
	}

	return &Pipeline{
		id:          id,
		description: description,
		native:      native,
	}, nil
}

// ID returns the pipeline's stable identifier.
func (p *Pipeline) ID() string { return p.id }

// Description returns the gst-launch text that produced this graph.
// Immutable for the life of the Pipeline instance.
func (p *Pipeline) Description() string { return p.description }

// State performs a non-blocking (zero-timeout) read of the graph's current
// state.
func (p *Pipeline) State() State {
	return stateFromGst(p.native.GetCurrentState())
}

// IsStreaming reports whether the pipeline is currently playing.
func (p *Pipeline) IsStreaming() bool {
	return p.State() == StatePlaying
}

// SetState requests a transition. Synchronous success, no-preroll, and
// accepted-async-in-progress are all treated as success; only an explicit
// refusal surfaces StateChangeFailed. A transition the framework completes
// (or fails) asynchronously is observed on the bus by the watcher.
func (p *Pipeline) SetState(target State) error {
	if err := p.native.SetState(target.gstState()); err != nil {
		return newStateChangeFailed(p.id, target.String())
	}
	return nil
}

// Play is sugar for SetState(StatePlaying).
func (p *Pipeline) Play() error { return p.SetState(StatePlaying) }

// Pause is sugar for SetState(StatePaused).
func (p *Pipeline) Pause() error { return p.SetState(StatePaused) }

// Stop is sugar for SetState(StateNull).
func (p *Pipeline) Stop() error { return p.SetState(StateNull) }

// GetDot returns a textual topology dump at the requested detail level.
// An unrecognized or empty detail string is treated the same as "all".
func (p *Pipeline) GetDot(detail string) string {
	var flags gst.DebugGraphDetails
	switch DotDetail(detail) {
	case DotMedia:
		flags = gst.DebugGraphShowMediaType
	case DotCaps:
		flags = gst.DebugGraphShowCapsDetails
	case DotNonDefault:
		flags = gst.DebugGraphShowNonDefaultParams
	case DotStates:
		flags = gst.DebugGraphShowStates
	default:
		flags = gst.DebugGraphShowAll
	}
	return p.native.DebugBinToDotData(flags)
}

// Position is a (value, ok) pair in nanoseconds; ok is false when the
// framework cannot report the value.
type Position struct {
	Nanoseconds int64
	OK          bool
}

// GetPosition returns the current playback position and the stream
// duration, either of which may be unavailable.
func (p *Pipeline) GetPosition() (position, duration Position) {
	if ok, ns := p.native.QueryPosition(gst.FormatTime); ok {
		position = Position{Nanoseconds: ns, OK: true}
	}
	if ok, ns := p.native.QueryDuration(gst.FormatTime); ok {
		duration = Position{Nanoseconds: ns, OK: true}
	}
	return position, duration
}

// SignalShutdown sets the shutdown flag with release semantics. Idempotent;
// the flag transitions false to true at most once in practice, though
// calling this more than once is harmless.
func (p *Pipeline) SignalShutdown() {
	p.shutdown.Store(true)
}

// ShuttingDown reports the current value of the shutdown flag, read with
// acquire semantics.
func (p *Pipeline) ShuttingDown() bool {
	return p.shutdown.Load()
}

// Close signals shutdown, drives the graph to Null best-effort, and waits
// for the bus-watcher goroutine to exit. It never blocks indefinitely: the
// watcher observes the shutdown flag within one busPollTimeout.
func (p *Pipeline) Close() {
	p.SignalShutdown()
	_ = p.native.SetState(gst.StateNull)
	if p.watcherStop != nil {
		close(p.watcherStop)
	}
	if p.watcherDone != nil {
		<-p.watcherDone
	}
}
