// ABOUTME: Tests for ChangeBroadcaster delivery modes.
// ABOUTME: Lossy subscribers count drops; lossless subscribers receive every change.
package core

import (
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
)

func dropCount(t *testing.T, action string) float64 {
	t.Helper()
	m := &dto.Metric{}
	if err := broadcastDrops.WithLabelValues(action).Write(m); err != nil {
		t.Fatalf("read counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestBroadcastCountsDropsForFullSubscriber(t *testing.T) {
	b := &ChangeBroadcaster{}
	ch := b.Subscribe()
	before := dropCount(t, "CLEAR_ERROR")

	for i := 0; i < subscriberBuffer+3; i++ {
		b.Broadcast(Change{Action: ClearError{}})
	}
	if got := len(ch); got != subscriberBuffer {
		t.Errorf("buffered = %d, want %d", got, subscriberBuffer)
	}
	if got := dropCount(t, "CLEAR_ERROR") - before; got != 3 {
		t.Errorf("drops = %v, want 3", got)
	}
}

func TestBroadcastLosslessDeliversEverything(t *testing.T) {
	b := &ChangeBroadcaster{}
	ch := b.SubscribeLossless()
	total := subscriberBuffer + 50

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < total; i++ {
			b.Broadcast(Change{Action: ResetMinting{}})
		}
	}()

	received := 0
	for received < total {
		select {
		case <-ch:
			received++
		case <-time.After(2 * time.Second):
			t.Fatalf("received %d of %d", received, total)
		}
	}
	<-done
}

func TestUnsubscribeReleasesBlockedBroadcast(t *testing.T) {
	b := &ChangeBroadcaster{}
	ch := b.SubscribeLossless()
	for i := 0; i < subscriberBuffer; i++ {
		b.Broadcast(Change{Action: ClearError{}})
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.Broadcast(Change{Action: ClearError{}})
	}()

	b.Unsubscribe(ch)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast still blocked after Unsubscribe")
	}
}
