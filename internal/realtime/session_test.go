package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/yungbote/chatrelay-backend/internal/realtime/chunkstore"
)

type sessionHarness struct {
	reg    *Registry
	chunks *chunkstore.Memory
	key    Key
	client *websocket.Conn
	done   chan struct{}
}

func startSession(t *testing.T, newChat bool, cfg SessionConfig) *sessionHarness {
	t.Helper()
	log := mustTestLogger(t)
	h := &sessionHarness{
		reg:    NewRegistry(log, nil),
		chunks: chunkstore.NewMemory(time.Hour),
		key:    newKey(),
		done:   make(chan struct{}),
	}
	deps := SessionDeps{
		Chunks:      h.chunks,
		Suggestions: func(context.Context) ([]string, error) { return []string{"Tell me more"}, nil },
	}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer close(h.done)
		NewSession(h.key, NewWSConn(ws, time.Second), h.reg, deps, cfg, newChat, log, nil).Run(context.Background())
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	h.client = client
	return h
}

func (h *sessionHarness) read(t *testing.T) map[string]any {
	t.Helper()
	_ = h.client.SetReadDeadline(time.Now().Add(2 * time.Second))
	var out map[string]any
	if err := h.client.ReadJSON(&out); err != nil {
		t.Fatalf("read: %v", err)
	}
	return out
}

// readType skips keep-alive pings.
func (h *sessionHarness) readType(t *testing.T, typ string) map[string]any {
	t.Helper()
	for i := 0; i < 10; i++ {
		msg := h.read(t)
		if msg["type"] == typ {
			return msg
		}
		if msg["type"] != EventPing {
			t.Fatalf("expected %s, got %v", typ, msg)
		}
	}
	t.Fatalf("no %s frame", typ)
	return nil
}

func TestSessionWelcomeAndPingPong(t *testing.T) {
	h := startSession(t, true, SessionConfig{})

	welcome := h.readType(t, EventConnectionEstablished)
	if welcome["conversation_id"] != h.key.ConversationID.String() {
		t.Fatalf("welcome conversation_id: %v", welcome["conversation_id"])
	}
	sugg, _ := welcome["suggestions"].([]any)
	if len(sugg) != 1 || sugg[0] != "Tell me more" {
		t.Fatalf("new chat welcome should carry suggestions: %v", welcome)
	}
	if len(h.reg.Snapshot(h.key)) != 1 {
		t.Fatalf("session should be registered")
	}

	if err := h.client.WriteJSON(map[string]any{"type": "ping", "timestamp": 1234.5}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	pong := h.readType(t, EventPong)
	if pong["timestamp"] != 1234.5 {
		t.Fatalf("pong should echo timestamp, got %v", pong["timestamp"])
	}
}

func TestSessionStreamRequestCatchUp(t *testing.T) {
	h := startSession(t, false, SessionConfig{})
	welcome := h.readType(t, EventConnectionEstablished)
	if _, ok := welcome["suggestions"]; ok {
		t.Fatalf("existing chat welcome should not carry suggestions")
	}

	empty := uuid.New()
	_ = h.client.WriteJSON(map[string]any{"type": "stream_request", "message_id": empty.String()})
	got := h.readType(t, EventStreamContent)
	if got["message_id"] != empty.String() || got["content"] != "" {
		t.Fatalf("expected empty stream_content, got %v", got)
	}

	buffered := uuid.New()
	_, _ = h.chunks.Append(context.Background(), buffered, "1", "Hi")
	_, _ = h.chunks.Append(context.Background(), buffered, "2", " there")
	_ = h.client.WriteJSON(map[string]any{"type": "stream_request", "message_id": buffered.String()})
	got = h.readType(t, EventStreamContent)
	if got["content"] != "Hi there" {
		t.Fatalf("expected accumulated content, got %v", got)
	}
}

func TestSessionBadFramesKeepConnectionOpen(t *testing.T) {
	h := startSession(t, false, SessionConfig{})
	h.readType(t, EventConnectionEstablished)

	_ = h.client.WriteMessage(websocket.TextMessage, []byte("{not json"))
	if e := h.readType(t, EventError); e["code"] != "invalid_json" {
		t.Fatalf("expected invalid_json, got %v", e)
	}
	_ = h.client.WriteJSON(map[string]any{"type": "dance"})
	if e := h.readType(t, EventError); e["code"] != "unknown_type" {
		t.Fatalf("expected unknown_type, got %v", e)
	}
	_ = h.client.WriteJSON(map[string]any{"type": "stream_request"})
	if e := h.readType(t, EventError); e["code"] != "invalid_request" {
		t.Fatalf("expected invalid_request, got %v", e)
	}

	_ = h.client.WriteJSON(map[string]any{"type": "get_suggestions"})
	s := h.readType(t, EventSuggestions)
	if list, _ := s["suggestions"].([]any); len(list) != 1 {
		t.Fatalf("unexpected suggestions %v", s)
	}
}

func TestSessionInboundRateLimit(t *testing.T) {
	h := startSession(t, false, SessionConfig{InboundRate: 0.001, InboundBurst: 1})
	h.readType(t, EventConnectionEstablished)

	_ = h.client.WriteJSON(map[string]any{"type": "ping"})
	h.readType(t, EventPong)
	_ = h.client.WriteJSON(map[string]any{"type": "ping"})
	if e := h.readType(t, EventError); e["code"] != "rate_limited" {
		t.Fatalf("expected rate_limited, got %v", e)
	}
}

func TestSessionKeepAlivePings(t *testing.T) {
	h := startSession(t, false, SessionConfig{PingInterval: 20 * time.Millisecond})
	h.readType(t, EventConnectionEstablished)
	ping := h.read(t)
	if ping["type"] != EventPing {
		t.Fatalf("expected keep-alive ping, got %v", ping)
	}
	if _, ok := ping["timestamp"].(float64); !ok {
		t.Fatalf("ping timestamp should be numeric: %v", ping)
	}
}

func TestSessionUnregistersOnDisconnect(t *testing.T) {
	h := startSession(t, false, SessionConfig{ReceiveTimeout: 20 * time.Millisecond})
	h.readType(t, EventConnectionEstablished)

	// Several receive timeouts pass without ending the session.
	time.Sleep(80 * time.Millisecond)
	if len(h.reg.Snapshot(h.key)) != 1 {
		t.Fatalf("receive timeout must not end the session")
	}

	_ = h.client.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	_ = h.client.Close()
	select {
	case <-h.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("session did not end after disconnect")
	}
	if h.reg.Len() != 0 {
		t.Fatalf("session should unregister on exit")
	}
}

func TestSessionClosesOnOversizedFrame(t *testing.T) {
	h := startSession(t, false, SessionConfig{})
	h.readType(t, EventConnectionEstablished)

	big := `{"type":"ping","pad":"` + strings.Repeat("x", MaxInboundFrame) + `"}`
	if err := h.client.WriteMessage(websocket.TextMessage, []byte(big)); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case <-h.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("session kept reading an oversized frame")
	}
	if h.reg.Len() != 0 {
		t.Fatalf("session should unregister after an oversized frame")
	}
}

func TestWSConnDoubleCloseIsBenign(t *testing.T) {
	upgrader := websocket.Upgrader{}
	closed := make(chan error, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := NewWSConn(ws, time.Second)
		closed <- c.Close(CloseNormal, "")
		closed <- c.Close(CloseNormal, "")
		if c.State() != StateClosed {
			t.Errorf("state after close: %s", c.State())
		}
		if err := c.Send(context.Background(), Event{Type: EventPing}); err != ErrConnClosed {
			t.Errorf("send after close: %v", err)
		}
	}))
	defer srv.Close()
	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()
	for i := 0; i < 2; i++ {
		if err := <-closed; err != nil {
			t.Fatalf("close %d: %v", i, err)
		}
	}
}
