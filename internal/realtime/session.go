package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/yungbote/chatrelay-backend/internal/observability"
	"github.com/yungbote/chatrelay-backend/internal/platform/logger"
)

type SessionConfig struct {
	ReceiveTimeout time.Duration
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	InboundRate    rate.Limit
	InboundBurst   int
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.ReceiveTimeout <= 0 {
		c.ReceiveTimeout = 120 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 45 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.InboundRate <= 0 {
		c.InboundRate = rate.Limit(20)
	}
	if c.InboundBurst <= 0 {
		c.InboundBurst = 40
	}
	return c
}

// ContentReader is the read side of the chunk store.
type ContentReader interface {
	Read(ctx context.Context, messageID uuid.UUID) (string, error)
}

// SessionDeps are the per-conversation lookups a session needs.
type SessionDeps struct {
	Chunks ContentReader
	// Suggestions returns the conversation's current follow-up list.
	Suggestions func(ctx context.Context) ([]string, error)
	// MessageVisible reports whether messageID belongs to the session's conversation.
	// Nil allows every message.
	MessageVisible func(ctx context.Context, messageID uuid.UUID) bool
}

// Session runs one registered live connection until it disconnects.
type Session struct {
	key     Key
	conn    *WSConn
	reg     *Registry
	deps    SessionDeps
	cfg     SessionConfig
	limiter *rate.Limiter
	newChat bool
	log     *logger.Logger
	metrics *observability.Metrics
}

func NewSession(key Key, conn *WSConn, reg *Registry, deps SessionDeps, cfg SessionConfig, newChat bool, log *logger.Logger, metrics *observability.Metrics) *Session {
	cfg = cfg.withDefaults()
	return &Session{
		key:     key,
		conn:    conn,
		reg:     reg,
		deps:    deps,
		cfg:     cfg,
		limiter: rate.NewLimiter(cfg.InboundRate, cfg.InboundBurst),
		newChat: newChat,
		log:     log.With("component", "LiveSession", "conversation_id", key.ConversationID.String(), "viewer_id", key.ViewerID.String(), "conn_id", conn.ID()),
		metrics: metrics,
	}
}

// Run registers the connection, greets the viewer and serves frames. It always
// unregisters and closes the connection before returning.
func (s *Session) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.reg.Register(s.key, s.conn)
	s.conn.setState(StateRegistered)
	s.metrics.LiveConnectionOpened()
	s.log.Info("live session registered")
	defer func() {
		s.reg.Unregister(s.key, s.conn)
		_ = s.conn.Close(CloseNormal, "")
		s.metrics.LiveConnectionClosed()
		s.log.Info("live session closed")
	}()

	if err := s.conn.Send(ctx, s.welcome(ctx)); err != nil {
		s.log.Warn("welcome send failed", "error", err)
	}

	go s.keepAlive(ctx)

	frames := make(chan []byte)
	readErr := make(chan error, 1)
	go s.readLoop(ctx, frames, readErr)

	timer := time.NewTimer(s.cfg.ReceiveTimeout)
	defer timer.Stop()
	for {
		s.conn.setState(StateIdleWait)
		select {
		case <-ctx.Done():
			return
		case <-s.conn.Done():
			return
		case err := <-readErr:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				s.log.Warn("live session read failed", "error", err)
			} else {
				s.log.Debug("live session disconnected", "error", err)
			}
			return
		case <-timer.C:
			// A quiet viewer is not an error; the reaper handles truly dead ones.
			timer.Reset(s.cfg.ReceiveTimeout)
		case raw := <-frames:
			s.conn.setState(StateActive)
			timer.Reset(s.cfg.ReceiveTimeout)
			s.reg.Touch(s.key)
			if err := s.handleFrame(ctx, raw); err != nil {
				s.log.Warn("live session send failed", "error", err)
				return
			}
		}
	}
}

func (s *Session) welcome(ctx context.Context) Event {
	ev := Event{
		Type:           EventConnectionEstablished,
		ConversationID: s.key.ConversationID.String(),
		Timestamp:      unixTimestamp(time.Now()),
	}
	if s.newChat && s.deps.Suggestions != nil {
		if sugg, err := s.deps.Suggestions(ctx); err == nil && len(sugg) > 0 {
			ev.Suggestions = sugg
		}
	}
	return ev
}

func (s *Session) readLoop(ctx context.Context, frames chan<- []byte, readErr chan<- error) {
	for {
		raw, err := s.conn.ReadFrame()
		if err != nil {
			readErr <- err
			return
		}
		select {
		case frames <- raw:
		case <-ctx.Done():
			return
		}
	}
}

// keepAlive pings until the session ends. A failed ping only ends this loop.
func (s *Session) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.conn.Done():
			return
		case now := <-ticker.C:
			if err := s.conn.Send(ctx, Event{Type: EventPing, Timestamp: unixTimestamp(now)}); err != nil {
				s.log.Debug("keep-alive ping failed", "error", err)
				return
			}
			s.reg.Touch(s.key)
		}
	}
}

// handleFrame answers one inbound frame. Only a failed send is returned; bad
// input is answered with an error event.
func (s *Session) handleFrame(ctx context.Context, raw []byte) error {
	if !s.limiter.Allow() {
		return s.conn.Send(ctx, ErrorEvent("rate_limited", "Too many messages"))
	}
	var frame InboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		s.log.Debug("invalid inbound frame", "error", err)
		return s.conn.Send(ctx, ErrorEvent("invalid_json", "Invalid JSON format"))
	}

	switch frame.Type {
	case FramePing:
		return s.conn.Send(ctx, Event{Type: EventPong, Timestamp: frame.Timestamp})
	case FrameStreamRequest:
		return s.streamSnapshot(ctx, frame.MessageID)
	case FrameGetSuggestions:
		var sugg []string
		if s.deps.Suggestions != nil {
			var err error
			if sugg, err = s.deps.Suggestions(ctx); err != nil {
				s.log.Warn("suggestions lookup failed", "error", err)
				sugg = nil
			}
		}
		return s.conn.Send(ctx, SuggestionsEvent(s.key.ConversationID.String(), sugg))
	case "":
		return s.conn.Send(ctx, ErrorEvent("invalid_request", "Missing type"))
	default:
		return s.conn.Send(ctx, ErrorEvent("unknown_type", "Unknown message type: "+frame.Type))
	}
}

func (s *Session) streamSnapshot(ctx context.Context, rawID string) error {
	if rawID == "" {
		return s.conn.Send(ctx, ErrorEvent("invalid_request", "Missing message_id"))
	}
	messageID, err := uuid.Parse(rawID)
	if err != nil {
		return s.conn.Send(ctx, ErrorEvent("invalid_request", "Invalid message_id"))
	}
	content := ""
	if s.deps.MessageVisible == nil || s.deps.MessageVisible(ctx, messageID) {
		content, err = s.deps.Chunks.Read(ctx, messageID)
		if err != nil {
			s.log.Warn("chunk store read failed", "message_id", messageID.String(), "error", err)
			s.metrics.IncChunkStoreError("read")
			content = ""
		}
	} else {
		s.log.Debug("stream_request for message outside conversation", "message_id", messageID.String())
	}
	return s.conn.Send(ctx, StreamContentEvent(messageID.String(), content))
}

