// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package gst

import (
	"fmt"

	"github.com/go-gst/go-gst/gst"
	"github.com/gpopd/gpopd/internal/event"
	"github.com/gpopd/gpopd/internal/log"
	"github.com/gpopd/gpopd/internal/metrics"
	"github.com/rs/zerolog"
)

// StartWatcher starts p's bus-watcher goroutine. It must be called exactly
// once per Pipeline, after construction, with publish wired to the
// manager's event fan-out. The native bus-pop call blocks for up to
// busPollTimeout, so the shutdown flag is re-checked at least ten times a
// second; publish must never block (the fan-out's Publish does not).
func StartWatcher(p *Pipeline, publish func(event.Event)) {
	p.watcherStop = make(chan struct{})
	p.watcherDone = make(chan struct{})
	bus := p.native.GetPipelineBus()
	go watch(p, bus, publish)
}

func watch(p *Pipeline, bus *gst.Bus, publish func(event.Event)) {
	defer close(p.watcherDone)

	logger := log.WithComponent("gst").With().Str(log.FieldPipelineID, p.id).Logger()
	logger.Debug().Msg("bus watcher started")

	for {
		select {
		case <-p.watcherStop:
			logger.Debug().Msg("bus watcher received shutdown signal")
			return
		default:
		}
		if p.ShuttingDown() {
			logger.Debug().Msg("bus watcher observed shutdown flag")
			return
		}

		msg := bus.TimedPop(gst.ClockTime(busPollTimeout))
		if msg == nil {
			continue
		}

		dispatch(p, msg, logger, publish)
	}
}

func dispatch(p *Pipeline, msg *gst.Message, logger zerolog.Logger, publish func(event.Event)) {
	switch msg.Type() {
	case gst.MessageError:
		gerr := msg.ParseError()
		errMsg := fmt.Sprintf("%s: %s", gerr.Error(), gerr.DebugString())
		if out, ok := classifyUnsupportedMedia(errMsg); ok {
			metrics.RecordBusEvent("unsupported")
			logger.Warn().Str("message", out).Msg("pipeline unsupported media")
			publish(event.Unsupported(p.id, out))
		} else {
			metrics.RecordBusEvent("error")
			logger.Error().Str("message", errMsg).Msg("pipeline error")
			publish(event.Error(p.id, errMsg))
		}

	case gst.MessageWarning:
		warn := msg.ParseWarning()
		logger.Warn().Str("message", fmt.Sprintf("%s: %s", warn.Error(), warn.DebugString())).Msg("pipeline warning")

	case gst.MessageEOS:
		metrics.RecordBusEvent("eos")
		logger.Info().Msg("pipeline reached end of stream")
		publish(event.EOS(p.id))

	case gst.MessageStateChanged:
		if msg.Source() != p.native.GetName() {
			return
		}
		old, next := msg.ParseStateChanged()
		oldStr, newStr := stateFromGst(old).String(), stateFromGst(next).String()
		metrics.RecordBusEvent("state_changed")
		logger.Debug().Str(log.FieldOldState, oldStr).Str(log.FieldNewState, newStr).Msg("pipeline state changed")
		publish(event.StateChanged(p.id, oldStr, newStr))
	}
}
