package transport

import (
	"context"
	"crypto/rc4"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/1ureka/soegate/internal/util"
)

// Conn is one transport peer. Outbound calls are safe from any goroutine;
// inbound frames are delivered from a single read goroutine in order.
type Conn struct {
	id      uint32
	address string
	port    int

	ws      *websocket.Conn
	sender  *sender
	recv    *rc4.Cipher // read goroutine only
	limiter *rate.Limiter

	encrypted atomic.Bool

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

type connOptions struct {
	key          []byte
	writeTimeout time.Duration
	readLimit    int64
	limit        rate.Limit
	burst        int
}

func newConn(parent context.Context, ws *websocket.Conn, o connOptions) (*Conn, error) {
	recv, err := rc4.NewCipher(o.key)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(parent)
	host, port := util.SplitHostPort(ws.RemoteAddr())
	c := &Conn{
		id:      util.ConnectionID(ws.LocalAddr(), ws.RemoteAddr()),
		address: host,
		port:    port,
		ws:      ws,
		recv:    recv,
		ctx:     ctx,
		cancel:  cancel,
	}
	if o.limit > 0 {
		c.limiter = rate.NewLimiter(o.limit, o.burst)
	}
	if o.readLimit > 0 {
		ws.SetReadLimit(o.readLimit)
	}

	c.sender, err = newSender(ctx, ws, o.key, o.writeTimeout, func(error) { c.Close() })
	if err != nil {
		cancel()
		return nil, err
	}
	return c, nil
}

func (c *Conn) ID() uint32      { return c.id }
func (c *Conn) Address() string { return c.address }
func (c *Conn) Port() int       { return c.port }

// Encrypted reports whether outbound encryption has been requested.
func (c *Conn) Encrypted() bool { return c.encrypted.Load() }

// Done is closed when the connection shuts down.
func (c *Conn) Done() <-chan struct{} { return c.ctx.Done() }

// SendAppData queues one frame. The reliable hint is carried in the frame
// flags; WebSocket delivery is reliable either way.
func (c *Conn) SendAppData(data []byte, reliable bool) error {
	return c.sender.send(c.ctx, op{data: data, reliable: reliable})
}

// SetEncryption queues an outbound encryption toggle behind every frame
// already queued.
func (c *Conn) SetEncryption(on bool) {
	c.encrypted.Store(on)
	if err := c.sender.send(c.ctx, op{toggle: true, encrypt: on}); err != nil {
		util.LogDebug("[%08x] encryption toggle dropped: %v", c.id, err)
	}
}

// Close sends a close message and releases the socket. Safe to call more
// than once.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		err = c.ws.Close()
	})
	return err
}

// readLoop delivers inbound payloads to onData until the socket fails.
// A normal close returns nil.
func (c *Conn) readLoop(onData func([]byte)) error {
	for {
		mt, frame, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
				errors.Is(c.ctx.Err(), context.Canceled) {
				return nil
			}
			return err
		}
		if mt != websocket.BinaryMessage {
			continue
		}

		payload, err := openFrame(c.recv, frame)
		if err != nil {
			util.Stats.AddDropped()
			util.LogDebug("[%08x] dropping frame: %v", c.id, err)
			continue
		}
		if c.limiter != nil && !c.limiter.Allow() {
			util.Stats.AddDropped()
			util.LogWarning("[%08x] inbound rate limit exceeded, dropping frame", c.id)
			continue
		}

		util.Stats.AddFrameIn()
		onData(payload)
	}
}
