package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/chatrelay-backend/internal/platform/logger"
)

func mustTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	t.Cleanup(log.Sync)
	return log
}

type fakeConn struct {
	id      string
	mu      sync.Mutex
	sent    []Event
	sendErr error
	closes  int
	closeFn func() error
}

func newFakeConn() *fakeConn { return &fakeConn{id: uuid.NewString()} }

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Send(_ context.Context, ev Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, ev)
	return nil
}

func (f *fakeConn) Close(int, string) error {
	f.mu.Lock()
	f.closes++
	fn := f.closeFn
	f.mu.Unlock()
	if fn != nil {
		return fn()
	}
	return nil
}

func (f *fakeConn) events() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Event, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *fakeConn) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

var errBroken = errors.New("broken pipe")

func newKey() Key { return Key{ConversationID: uuid.New(), ViewerID: uuid.New()} }
