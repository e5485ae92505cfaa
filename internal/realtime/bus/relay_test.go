package bus

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/chatrelay-backend/internal/platform/logger"
	"github.com/yungbote/chatrelay-backend/internal/realtime"
)

type recordingConn struct {
	id string
	mu sync.Mutex
	ev []realtime.Event
}

func (c *recordingConn) ID() string { return c.id }
func (c *recordingConn) Send(_ context.Context, ev realtime.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ev = append(c.ev, ev)
	return nil
}
func (c *recordingConn) Close(int, string) error { return nil }
func (c *recordingConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.ev)
}

// loopBus delivers published envelopes straight to the forwarder.
type loopBus struct {
	mu      sync.Mutex
	onMsg   func(Envelope)
	failing bool
}

func (b *loopBus) Publish(_ context.Context, env Envelope) error {
	b.mu.Lock()
	fn, failing := b.onMsg, b.failing
	b.mu.Unlock()
	if failing {
		return errors.New("bus down")
	}
	if fn != nil {
		fn(env)
	}
	return nil
}

func (b *loopBus) StartForwarder(_ context.Context, onMsg func(Envelope)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onMsg = onMsg
	return nil
}

func (b *loopBus) Close() error { return nil }

func setup(t *testing.T) (*realtime.Registry, *realtime.Broadcaster, realtime.Key, *recordingConn) {
	t.Helper()
	log := logger.Nop()
	reg := realtime.NewRegistry(log, nil)
	key := realtime.Key{ConversationID: uuid.New(), ViewerID: uuid.New()}
	conn := &recordingConn{id: uuid.NewString()}
	reg.Register(key, conn)
	return reg, realtime.NewBroadcaster(reg, log, nil), key, conn
}

func TestRelayDeliversThroughBus(t *testing.T) {
	_, local, key, conn := setup(t)
	b := &loopBus{}
	relay := NewRelay(b, local, logger.Nop())
	if err := relay.Forward(context.Background()); err != nil {
		t.Fatalf("Forward: %v", err)
	}
	relay.Publish(context.Background(), key, realtime.ChunkEvent("m1", "Hi"))
	if conn.count() != 1 {
		t.Fatalf("expected delivery through bus, got %d", conn.count())
	}
}

func TestRelayFallsBackToLocalWhenBusFails(t *testing.T) {
	_, local, key, conn := setup(t)
	relay := NewRelay(&loopBus{failing: true}, local, logger.Nop())
	relay.Publish(context.Background(), key, realtime.ChunkEvent("m1", "Hi"))
	if conn.count() != 1 {
		t.Fatalf("expected local fallback delivery, got %d", conn.count())
	}
}

func TestRedisBusRoundTrip(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis bus tests")
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })

	b, err := NewRedisBus(rdb, "chatrelay:test:"+uuid.NewString(), logger.Nop())
	if err != nil {
		t.Fatalf("NewRedisBus: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Envelope, 1)
	if err := b.StartForwarder(ctx, func(env Envelope) { got <- env }); err != nil {
		t.Fatalf("StartForwarder: %v", err)
	}
	want := Envelope{ConversationID: uuid.New(), ViewerID: uuid.New(), Event: realtime.ChunkEvent("m1", "Hi")}
	if err := b.Publish(ctx, want); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	select {
	case env := <-got:
		if env.Key() != want.Key() || env.Event.Type != realtime.EventChunk || *env.Event.Content != "Hi" {
			t.Fatalf("unexpected envelope %+v", env)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for bus message")
	}
}
