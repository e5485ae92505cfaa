package realtime

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	CloseNormal          = websocket.CloseNormalClosure
	CloseGoingAway       = websocket.CloseGoingAway
	ClosePolicyViolation = websocket.ClosePolicyViolation
	CloseInternalError   = websocket.CloseInternalServerErr
)

var ErrConnClosed = errors.New("realtime: connection closed")

// Connection is one push-capable channel to a viewer.
type Connection interface {
	ID() string
	Send(ctx context.Context, ev Event) error
	// Close is idempotent; closing an already closed connection returns nil.
	Close(code int, reason string) error
}

type ConnState int32

const (
	StateConnecting ConnState = iota
	StateAuthenticating
	StateRegistered
	StateActive
	StateIdleWait
	StateClosing
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateRegistered:
		return "registered"
	case StateActive:
		return "active"
	case StateIdleWait:
		return "idle-wait"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// WSConn adapts a gorilla websocket to Connection. Writes are serialized;
// reads belong to a single goroutine (the session's reader).
type WSConn struct {
	id           string
	ws           *websocket.Conn
	writeTimeout time.Duration

	writeMu   sync.Mutex
	state     atomic.Int32
	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

// MaxInboundFrame caps a single viewer frame; larger frames close the
// connection with 1009 (message too big).
const MaxInboundFrame = 64 << 10

func NewWSConn(ws *websocket.Conn, writeTimeout time.Duration) *WSConn {
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}
	ws.SetReadLimit(MaxInboundFrame)
	c := &WSConn{
		id:           uuid.NewString(),
		ws:           ws,
		writeTimeout: writeTimeout,
		done:         make(chan struct{}),
	}
	c.state.Store(int32(StateAuthenticating))
	return c
}

func (c *WSConn) ID() string { return c.id }

func (c *WSConn) State() ConnState { return ConnState(c.state.Load()) }

// Done is closed once Close has run.
func (c *WSConn) Done() <-chan struct{} { return c.done }

// setState moves between live states; it never leaves closing or closed.
func (c *WSConn) setState(s ConnState) {
	for {
		cur := c.state.Load()
		if ConnState(cur) >= StateClosing {
			return
		}
		if c.state.CompareAndSwap(cur, int32(s)) {
			return
		}
	}
}

func (c *WSConn) Send(ctx context.Context, ev Event) error {
	if c.State() >= StateClosing {
		return ErrConnClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	deadline := time.Now().Add(c.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = c.ws.SetWriteDeadline(deadline)
	if err := c.ws.WriteJSON(ev); err != nil {
		if isClosedErr(err) {
			return ErrConnClosed
		}
		return err
	}
	return nil
}

// ReadFrame blocks for the next text or binary frame.
func (c *WSConn) ReadFrame() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (c *WSConn) Close(code int, reason string) error {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosing))
		// WriteControl may run concurrently with WriteJSON.
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(time.Second))
		if err := c.ws.Close(); err != nil && !isClosedErr(err) {
			c.closeErr = err
		}
		c.state.Store(int32(StateClosed))
		close(c.done)
	})
	return nil
}

// CloseErr reports a transport error from the first Close, if any.
func (c *WSConn) CloseErr() error {
	select {
	case <-c.done:
		return c.closeErr
	default:
		return nil
	}
}

func isClosedErr(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, websocket.ErrCloseSent)
}
