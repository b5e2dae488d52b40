// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package event

import (
	"context"
	"errors"
	"sync"

	"github.com/gpopd/gpopd/internal/log"
	"github.com/gpopd/gpopd/internal/metrics"
)

// broadcastCapacity bounds each subscriber's unread backlog. A laggy
// subscriber never blocks others: once its backlog is full, the oldest
// entry is dropped and the count is carried onto the next delivery.
const broadcastCapacity = 256

// ErrClosed is returned by Recv once a subscription has been closed and its
// backlog fully drained.
var ErrClosed = errors.New("event: subscription closed")

// Delivery is one item received by a subscriber. Lagged is nonzero when
// this subscriber's backlog was full as Event was published: it counts the
// oldest queued event dropped to make room, plus any lag that event carried.
// The count rides on Event itself, so it is received only after every event
// still queued ahead of Event; Event is still valid in that case.
type Delivery struct {
	Event  Event
	Lagged uint64
}

// Broadcast is a multi-producer, multi-consumer fan-out of Events with
// bounded per-subscriber buffering. A single bounded broadcast is used
// instead of per-subscriber queues managed elsewhere because laggy
// subscribers must never block the producer or other subscribers.
type Broadcast struct {
	mu   sync.Mutex
	subs map[uint64]*Subscription
	next uint64
}

// NewBroadcast constructs an empty fan-out with no subscribers.
func NewBroadcast() *Broadcast {
	return &Broadcast{subs: make(map[uint64]*Subscription)}
}

// Subscribe registers a new subscriber. Subscribers may appear at any time;
// events published before Subscribe returns are never observed by it.
func (b *Broadcast) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	sub := &Subscription{
		id:   id,
		b:    b,
		ch:   make(chan Delivery, broadcastCapacity),
		open: true,
	}
	b.subs[id] = sub
	return sub
}

// Unsubscribe removes sub from the fan-out. Side-effect-free if sub was
// already removed.
func (b *Broadcast) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	delete(b.subs, sub.id)
	b.mu.Unlock()
	sub.closeChannel()
}

// Publish delivers ev, in send order, to every current subscriber. A
// publish with zero subscribers is not an error; it is logged at warn
// level. Publish never blocks: a full subscriber backlog drops its oldest
// entry rather than stall the sender.
func (b *Broadcast) Publish(ev Event) {
	b.mu.Lock()
	subs := make([]*Subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	if len(subs) == 0 {
		logger := log.WithComponent("event")
		logger.Warn().
			Str(log.FieldEvent, string(ev.Kind)).
			Str(log.FieldPipelineID, ev.ID).
			Msg("published event has no subscribers")
		return
	}

	for _, sub := range subs {
		sub.deliver(ev)
	}
}

// Subscription is one consumer's bounded view of the fan-out.
type Subscription struct {
	id uint64
	b  *Broadcast

	mu   sync.Mutex
	ch   chan Delivery
	open bool
}

// deliver enqueues ev for this subscriber, evicting the oldest entry (and
// carrying its lag count forward) if the backlog is full.
func (s *Subscription) deliver(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return
	}

	select {
	case s.ch <- Delivery{Event: ev}:
		return
	default:
	}

	lag := uint64(1)
	select {
	case evicted := <-s.ch:
		lag += evicted.Lagged
	default:
	}
	metrics.RecordBusLag()
	logger := log.WithComponent("event")
	logger.Warn().
		Uint64("subscription_id", s.id).
		Uint64("lagged", lag).
		Msg("subscriber backlog full, dropping oldest event")

	select {
	case s.ch <- Delivery{Event: ev, Lagged: lag}:
	default:
		// Not reached while s.mu serializes every send to s.ch; kept so
		// the publisher can never block. The event would be dropped.
	}
}

// Recv blocks until a delivery is available, ctx is done, or the
// subscription is closed and its backlog drained.
func (s *Subscription) Recv(ctx context.Context) (Delivery, error) {
	select {
	case d, ok := <-s.ch:
		if !ok {
			return Delivery{}, ErrClosed
		}
		return d, nil
	case <-ctx.Done():
		return Delivery{}, ctx.Err()
	}
}

// Close unsubscribes and closes the underlying channel. Safe to call more
// than once.
func (s *Subscription) Close() {
	s.b.Unsubscribe(s)
}

func (s *Subscription) closeChannel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		s.open = false
		close(s.ch)
	}
}
