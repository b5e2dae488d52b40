// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package event

import (
	"context"
	"testing"
	"time"
)

func TestBroadcastDeliversToAllSubscribers(t *testing.T) {
	b := NewBroadcast()
	s1 := b.Subscribe()
	s2 := b.Subscribe()
	defer s1.Close()
	defer s2.Close()

	b.Publish(PipelineAdded("1", "videotestsrc ! fakesink"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for _, s := range []*Subscription{s1, s2} {
		d, err := s.Recv(ctx)
		if err != nil {
			t.Fatalf("Recv() error = %v", err)
		}
		if d.Event.Kind != KindPipelineAdded || d.Event.ID != "1" {
			t.Errorf("got %+v, want pipeline_added for id 1", d.Event)
		}
	}
}

func TestBroadcastOrderingPerSubscriber(t *testing.T) {
	b := NewBroadcast()
	s := b.Subscribe()
	defer s.Close()

	b.Publish(StateChanged("1", "null", "ready"))
	b.Publish(StateChanged("1", "ready", "paused"))
	b.Publish(StateChanged("1", "paused", "playing"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	wantNew := []string{"ready", "paused", "playing"}
	for _, want := range wantNew {
		d, err := s.Recv(ctx)
		if err != nil {
			t.Fatalf("Recv() error = %v", err)
		}
		if d.Event.NewState != want {
			t.Errorf("NewState = %v, want %v", d.Event.NewState, want)
		}
	}
}

func TestBroadcastOverflowingSubscriberObservesLag(t *testing.T) {
	b := NewBroadcast()
	fast := b.Subscribe()
	slow := b.Subscribe()
	defer fast.Close()
	defer slow.Close()

	for i := 0; i < broadcastCapacity+5; i++ {
		b.Publish(EOS("1"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	drained := 0
	var lastLag uint64
	for {
		d, err := fast.Recv(ctx)
		if err != nil {
			break
		}
		drained++
		lastLag = d.Lagged
		if drained >= broadcastCapacity {
			break
		}
	}
	if lastLag == 0 {
		t.Error("expected the overflowing subscriber to observe a nonzero lag count")
	}

	// slow subscriber is independent: draining it separately must not
	// affect what fast observed above.
	if _, err := slow.Recv(context.Background()); err != nil {
		t.Fatalf("slow.Recv() error = %v", err)
	}
}

func TestBroadcastCloseDrainsThenErrClosed(t *testing.T) {
	b := NewBroadcast()
	s := b.Subscribe()

	b.Publish(EOS("1"))
	s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	d, err := s.Recv(ctx)
	if err != nil {
		t.Fatalf("expected buffered event before close signal, got error %v", err)
	}
	if d.Event.Kind != KindEOS {
		t.Errorf("got %+v, want buffered eos event", d.Event)
	}

	if _, err := s.Recv(ctx); err != ErrClosed {
		t.Errorf("Recv() after drain = %v, want ErrClosed", err)
	}
}

func TestBroadcastPublishWithNoSubscribersDoesNotPanic(t *testing.T) {
	b := NewBroadcast()
	b.Publish(EOS("orphan"))
}
