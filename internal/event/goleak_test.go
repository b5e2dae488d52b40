// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// TestBroadcastSubscribeCloseNoGoroutineLeak exercises many subscribers
// receiving concurrently, then closing, to confirm Subscribe/Close never
// leaves a goroutine parked on a subscription's channel.
func TestBroadcastSubscribeCloseNoGoroutineLeak(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	b := NewBroadcast()
	const n = 8

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		sub := b.Subscribe()
		wg.Add(1)
		go func(s *Subscription) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
			defer cancel()
			for {
				if _, err := s.Recv(ctx); err != nil {
					return
				}
			}
		}(sub)
	}

	for i := 0; i < 10; i++ {
		b.Publish(EOS("leak-check"))
	}

	wg.Wait()

	b.mu.Lock()
	remaining := len(b.subs)
	b.mu.Unlock()
	assert.Equal(t, n, remaining, "subscriptions should remain registered until explicitly closed")

	for id, sub := range snapshotSubs(b) {
		_ = id
		sub.Close()
	}
	require.Empty(t, snapshotSubs(b))
}

func snapshotSubs(b *Broadcast) map[uint64]*Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[uint64]*Subscription, len(b.subs))
	for id, sub := range b.subs {
		out[id] = sub
	}
	return out
}
