// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package manager implements the concurrent pipeline registry: creation,
// removal, atomic update, bulk shutdown, and the lifecycle events that
// accompany each of those operations.
package manager

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gpopd/gpopd/internal/event"
	"github.com/gpopd/gpopd/internal/gst"
	"github.com/gpopd/gpopd/internal/log"
	"github.com/gpopd/gpopd/internal/metrics"
)

// shutdownGracePeriod is how long Shutdown waits after signalling a
// pipeline's watcher before driving its graph to Null, so the watcher's
// next bus-pop iteration observes the flag.
const shutdownGracePeriod = 150 * time.Millisecond

// defaultLimit is used when New is called with limit <= 0.
const defaultLimit = 100

// Info is a read-only snapshot of one pipeline, returned by info and
// listing operations.
type Info struct {
	ID          string
	Description string
	State       string
	Streaming   bool
}

// entry pairs a pipeline with the mutex that guards operations on it. The
// mutex is held only for short critical sections, never across a blocking
// bus-pop (that happens in the pipeline's own watcher goroutine).
type entry struct {
	mu       sync.Mutex
	pipeline *gst.Pipeline
}

// Manager is the concurrent registry mapping opaque pipeline ids to
// pipelines. The registry uses a reader/writer lock: readers (lookups,
// listing) may overlap; writers (add/remove/update/shutdown) are
// exclusive.
type Manager struct {
	mu       sync.RWMutex
	registry map[string]*entry

	nextID atomic.Uint64
	limit  int

	bus *event.Broadcast
}

// New constructs an empty Manager bounded to limit concurrently registered
// pipelines, publishing lifecycle events onto bus.
func New(limit int, bus *event.Broadcast) *Manager {
	if limit <= 0 {
		limit = defaultLimit
	}
	return &Manager{
		registry: make(map[string]*entry),
		limit:    limit,
		bus:      bus,
	}
}

// Subscribe registers a new subscriber on the manager's event fan-out.
func (m *Manager) Subscribe() *event.Subscription {
	return m.bus.Subscribe()
}

func (m *Manager) publish(ev event.Event) {
	m.bus.Publish(ev)
}

// AddPipeline parses description, registers the resulting pipeline under a
// freshly allocated id, starts its bus-watcher, and publishes
// pipeline_added. Creation past the configured limit fails without
// mutating the registry.
func (m *Manager) AddPipeline(description string) (string, error) {
	logger := log.WithComponent("manager")

	m.mu.RLock()
	size := len(m.registry)
	m.mu.RUnlock()
	if size >= m.limit {
		metrics.RecordPipelineAdd(false)
		return "", fmt.Errorf("maximum number of pipelines (%d) reached: %w", m.limit, gst.ErrInvalidPipeline)
	}

	id := fmt.Sprintf("%d", m.nextID.Add(1)-1)

	pipeline, err := gst.New(id, description)
	if err != nil {
		metrics.RecordPipelineAdd(false)
		return "", err
	}

	gst.StartWatcher(pipeline, m.publish)

	m.mu.Lock()
	m.registry[id] = &entry{pipeline: pipeline}
	m.mu.Unlock()

	logger.Info().Str(log.FieldPipelineID, id).Str("description", description).Msg("pipeline added")
	metrics.RecordPipelineAdd(true)
	m.publish(event.PipelineAdded(id, description))
	return id, nil
}

// RemovePipeline stops and unregisters id, stopping its bus-watcher.
func (m *Manager) RemovePipeline(id string) error {
	m.mu.Lock()
	e, ok := m.registry[id]
	if ok {
		delete(m.registry, id)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("pipeline %q not found: %w", id, gst.ErrPipelineNotFound)
	}

	e.mu.Lock()
	_ = e.pipeline.Stop() // removal is authoritative; state-change failure is ignored
	e.mu.Unlock()
	e.pipeline.Close()

	log.WithComponent("manager").Info().Str(log.FieldPipelineID, id).Msg("pipeline removed")
	metrics.RecordPipelineRemove()
	m.publish(event.PipelineRemoved(id))
	return nil
}

// UpdatePipeline atomically replaces the pipeline registered under id with
// one parsed from newDescription. The replacement is constructed and
// validated before the registry is touched, so a failing update leaves the
// existing pipeline observationally unchanged.
func (m *Manager) UpdatePipeline(id, newDescription string) error {
	replacement, err := gst.New(id, newDescription)
	if err != nil {
		metrics.RecordPipelineUpdate(false)
		return err
	}

	m.mu.Lock()
	old, ok := m.registry[id]
	if !ok {
		m.mu.Unlock()
		replacement.Close()
		metrics.RecordPipelineUpdate(false)
		return fmt.Errorf("pipeline %q not found: %w", id, gst.ErrPipelineNotFound)
	}

	gst.StartWatcher(replacement, m.publish)

	old.mu.Lock()
	_ = old.pipeline.Stop()
	old.mu.Unlock()

	m.registry[id] = &entry{pipeline: replacement}
	m.mu.Unlock()

	// Waiting out the old watcher happens outside the write lock; the
	// registry already points at the replacement.
	old.pipeline.Close()

	log.WithComponent("manager").Info().Str(log.FieldPipelineID, id).Str("description", newDescription).Msg("pipeline updated")
	metrics.RecordPipelineUpdate(true)
	m.publish(event.PipelineUpdated(id, newDescription))
	return nil
}

func (m *Manager) lookup(id string) (*entry, error) {
	m.mu.RLock()
	e, ok := m.registry[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("pipeline %q not found: %w", id, gst.ErrPipelineNotFound)
	}
	return e, nil
}

func infoOf(p *gst.Pipeline) Info {
	return Info{
		ID:          p.ID(),
		Description: p.Description(),
		State:       p.State().String(),
		Streaming:   p.IsStreaming(),
	}
}

// GetPipelineInfo returns a snapshot of id's identity, description, state,
// and streaming flag.
func (m *Manager) GetPipelineInfo(id string) (Info, error) {
	e, err := m.lookup(id)
	if err != nil {
		return Info{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return infoOf(e.pipeline), nil
}

// GetPipelineDescription returns id's gst-launch description.
func (m *Manager) GetPipelineDescription(id string) (string, error) {
	e, err := m.lookup(id)
	if err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pipeline.Description(), nil
}

// GetPosition returns id's current position and duration.
func (m *Manager) GetPosition(id string) (position, duration gst.Position, err error) {
	e, err := m.lookup(id)
	if err != nil {
		return gst.Position{}, gst.Position{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	position, duration = e.pipeline.GetPosition()
	return position, duration, nil
}

// GetDot returns a DOT topology dump of id at the requested detail level.
func (m *Manager) GetDot(id, detail string) (string, error) {
	e, err := m.lookup(id)
	if err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pipeline.GetDot(detail), nil
}

// SetState requests a state transition for id.
func (m *Manager) SetState(id string, target gst.State) error {
	e, err := m.lookup(id)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pipeline.SetState(target)
}

// Play, Pause, and Stop are sugar over SetState.
func (m *Manager) Play(id string) error  { return m.SetState(id, gst.StatePlaying) }
func (m *Manager) Pause(id string) error { return m.SetState(id, gst.StatePaused) }
func (m *Manager) Stop(id string) error  { return m.SetState(id, gst.StateNull) }

// ListPipelines snapshots the registry under a brief read lock, releases
// it, then reads each pipeline's info in turn. This intentionally admits a
// stale view: a pipeline may be removed between the snapshot and its
// per-entry read, but the whole registry is never locked for the duration
// of a listing.
func (m *Manager) ListPipelines() []Info {
	m.mu.RLock()
	entries := make([]*entry, 0, len(m.registry))
	for _, e := range m.registry {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	infos := make([]Info, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		infos = append(infos, infoOf(e.pipeline))
		e.mu.Unlock()
	}
	return infos
}

// PipelineCount returns the number of currently registered pipelines.
func (m *Manager) PipelineCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.registry)
}

// Shutdown drains the registry and, for each pipeline, signals its
// watcher, waits shutdownGracePeriod, then drives it to Null and closes
// it. Sleeps are sequential by design: total latency is bounded by
// shutdownGracePeriod * pipeline count.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	entries := make([]*entry, 0, len(m.registry))
	for id := range m.registry {
		entries = append(entries, m.registry[id])
	}
	m.registry = make(map[string]*entry)
	m.mu.Unlock()

	logger := log.WithComponent("manager")
	for _, e := range entries {
		e.mu.Lock()
		e.pipeline.SignalShutdown()
		e.mu.Unlock()

		time.Sleep(shutdownGracePeriod)

		e.mu.Lock()
		_ = e.pipeline.Stop()
		id := e.pipeline.ID()
		e.mu.Unlock()
		e.pipeline.Close()

		logger.Info().Str(log.FieldPipelineID, id).Msg("pipeline stopped during shutdown")
		metrics.RecordPipelineRemove()
	}
}
