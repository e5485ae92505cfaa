package realtime

import (
	"context"
	"testing"
)

func TestBroadcasterNoSubscribersIsNoop(t *testing.T) {
	log := mustTestLogger(t)
	b := NewBroadcaster(NewRegistry(log, nil), log, nil)
	if n := b.Deliver(context.Background(), newKey(), ChunkEvent("m", "x")); n != 0 {
		t.Fatalf("expected 0 deliveries, got %d", n)
	}
}

func TestBroadcasterFailingConnectionDoesNotBlockOthers(t *testing.T) {
	log := mustTestLogger(t)
	reg := NewRegistry(log, nil)
	b := NewBroadcaster(reg, log, nil)
	key := newKey()

	first, broken, last := newFakeConn(), newFakeConn(), newFakeConn()
	broken.sendErr = errBroken
	reg.Register(key, first)
	reg.Register(key, broken)
	reg.Register(key, last)

	if n := b.Deliver(context.Background(), key, ChunkEvent("m1", "Hi")); n != 2 {
		t.Fatalf("expected 2 deliveries, got %d", n)
	}
	for _, c := range []*fakeConn{first, last} {
		evs := c.events()
		if len(evs) != 1 || evs[0].Type != EventChunk || *evs[0].Content != "Hi" {
			t.Fatalf("unexpected events on %s: %+v", c.ID(), evs)
		}
	}
}

func TestBroadcasterOnlyReachesItsKey(t *testing.T) {
	log := mustTestLogger(t)
	reg := NewRegistry(log, nil)
	b := NewBroadcaster(reg, log, nil)
	mine, other := newKey(), newKey()
	a, z := newFakeConn(), newFakeConn()
	reg.Register(mine, a)
	reg.Register(other, z)

	b.Publish(context.Background(), mine, CompleteEvent("m1", nil, nil))
	if len(a.events()) != 1 || len(z.events()) != 0 {
		t.Fatalf("delivery crossed keys: a=%d z=%d", len(a.events()), len(z.events()))
	}
}
