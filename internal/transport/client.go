package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Link is the client-side transport contract consumed by the login and
// gateway clients. Events are delivered from one goroutine per connection:
// connect first, then app data in arrival order, then disconnect.
type Link interface {
	Connect(ctx context.Context) error
	Disconnect() error
	SendAppData(data []byte, reliable bool) error
	SetEncryption(on bool)
	OnConnect(fn func())
	OnDisconnect(fn func(err error))
	OnAppData(fn func(data []byte))
}

// ClientConfig tunes the client side of the transport.
type ClientConfig struct {
	URL              string // ws:// or wss:// endpoint
	Key              string // base64 RC4 key shared with the server
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

// Client dials a single WebSocket peer. It may reconnect after a
// disconnect; each connection is a fresh session.
type Client struct {
	url    string
	opts   connOptions
	dialer websocket.Dialer

	onConnect    func()
	onDisconnect func(error)
	onAppData    func([]byte)

	mu   sync.Mutex
	conn *Conn
}

var _ Link = (*Client)(nil)

func NewClient(cfg ClientConfig) (*Client, error) {
	key, err := ParseKey(cfg.Key)
	if err != nil {
		return nil, err
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("transport: empty server URL")
	}
	dialer := *websocket.DefaultDialer
	if cfg.HandshakeTimeout > 0 {
		dialer.HandshakeTimeout = cfg.HandshakeTimeout
	}
	return &Client{
		url:          cfg.URL,
		opts:         connOptions{key: key, writeTimeout: cfg.WriteTimeout},
		dialer:       dialer,
		onConnect:    func() {},
		onDisconnect: func(error) {},
		onAppData:    func([]byte) {},
	}, nil
}

func (c *Client) OnConnect(fn func())             { c.onConnect = fn }
func (c *Client) OnDisconnect(fn func(err error)) { c.onDisconnect = fn }
func (c *Client) OnAppData(fn func(data []byte))  { c.onAppData = fn }

// Connect dials the server. ctx bounds the dial only; the connection lives
// until Disconnect or a transport failure. The connect event fires on the
// connection's read goroutine before any app data.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return fmt.Errorf("transport: already connected to %s", c.url)
	}
	c.mu.Unlock()

	ws, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.url, err)
	}

	conn, err := newConn(context.Background(), ws, c.opts)
	if err != nil {
		ws.Close()
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	go func() {
		c.onConnect()
		readErr := conn.readLoop(c.onAppData)
		conn.Close()

		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()

		c.onDisconnect(readErr)
	}()
	return nil
}

// Disconnect closes the current connection. The disconnect event follows
// from the read goroutine.
func (c *Client) Disconnect() error {
	conn := c.current()
	if conn == nil {
		return ErrNotConnected
	}
	return conn.Close()
}

func (c *Client) SendAppData(data []byte, reliable bool) error {
	conn := c.current()
	if conn == nil {
		return ErrNotConnected
	}
	return conn.SendAppData(data, reliable)
}

func (c *Client) SetEncryption(on bool) {
	if conn := c.current(); conn != nil {
		conn.SetEncryption(on)
	}
}

func (c *Client) current() *Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}
