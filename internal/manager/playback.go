// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package manager

import (
	"context"

	"github.com/gpopd/gpopd/internal/event"
	"github.com/gpopd/gpopd/internal/log"
)

// Process exit codes for playback mode, per the daemon's process
// interface. ExitUnsupported mirrors the BSD EX_UNAVAILABLE convention.
const (
	ExitOK          = 0
	ExitError       = 1
	ExitUnsupported = 69
)

// playbackTracker holds the pending-id bookkeeping for one playback-mode
// run, separated from I/O so the reconciliation logic can be tested
// without a live event subscription.
type playbackTracker struct {
	pending        map[string]struct{}
	hadError       bool
	hadUnsupported bool
}

func newPlaybackTracker(ids []string) *playbackTracker {
	pending := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		pending[id] = struct{}{}
	}
	return &playbackTracker{pending: pending}
}

func (t *playbackTracker) fail(id string) {
	delete(t.pending, id)
	t.hadError = true
}

// reconcile drops any pending id for which present returns false, marking
// each as an error. Triggered by a broadcast-lag signal.
func (t *playbackTracker) reconcile(present func(id string) bool) {
	for id := range t.pending {
		if !present(id) {
			t.fail(id)
		}
	}
}

// apply folds one delivery into the tracker's state. Events for ids not in
// the pending set (already resolved, or never tracked) are ignored.
func (t *playbackTracker) apply(ev event.Event) {
	if _, tracked := t.pending[ev.ID]; !tracked {
		return
	}
	switch ev.Kind {
	case event.KindEOS:
		delete(t.pending, ev.ID)
	case event.KindError:
		t.fail(ev.ID)
	case event.KindUnsupported:
		delete(t.pending, ev.ID)
		t.hadUnsupported = true
	case event.KindPipelineRemoved:
		t.fail(ev.ID)
	}
}

func (t *playbackTracker) done() bool { return len(t.pending) == 0 }

func (t *playbackTracker) exitCode() int {
	switch {
	case t.hadError:
		return ExitError
	case t.hadUnsupported:
		return ExitUnsupported
	default:
		return ExitOK
	}
}

// RunPlayback subscribes to the event fan-out before starting any of ids
// (so no event is missed), plays each, and tracks the pending set to
// completion. It returns a process exit code: ExitOK if every pipeline
// reached end-of-stream cleanly, ExitUnsupported if the only failures were
// classified as unsupported media, ExitError otherwise.
func RunPlayback(ctx context.Context, m *Manager, ids []string) int {
	logger := log.WithComponent("playback")

	sub := m.Subscribe()
	defer sub.Close()

	tracker := newPlaybackTracker(ids)

	for _, id := range ids {
		if err := m.Play(id); err != nil {
			log.FromContext(log.ContextWithPipelineID(ctx, id)).Error().Err(err).Msg("failed to start playback")
			tracker.fail(id)
		}
	}

	for !tracker.done() {
		delivery, err := sub.Recv(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("playback subscription ended before all pipelines completed")
			tracker.hadError = true
			break
		}

		if delivery.Lagged > 0 {
			logger.Warn().Uint64("lagged", delivery.Lagged).Msg("playback subscriber lagged, reconciling against manager")
			tracker.reconcile(func(id string) bool {
				_, err := m.GetPipelineInfo(id)
				return err == nil
			})
		}

		tracker.apply(delivery.Event)
	}

	return tracker.exitCode()
}
