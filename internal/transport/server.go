package transport

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/1ureka/soegate/internal/util"
)

// ServerConfig tunes the server side of the transport.
type ServerConfig struct {
	Key             string        // base64 RC4 key shared with clients
	ReadLimit       int64         // max inbound frame size in bytes, 0 = unlimited
	FramesPerSecond float64       // per-connection inbound rate, 0 = unlimited
	Burst           int           // limiter burst
	WriteTimeout    time.Duration // per-frame write deadline
}

// Server accepts WebSocket peers and reports their lifecycle through the
// OnConnect / OnAppData / OnDisconnect callbacks. Callbacks must be set
// before the server handles its first request.
type Server struct {
	opts     connOptions
	upgrader websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc

	onConnect    func(*Conn)
	onDisconnect func(*Conn, error)
	onAppData    func(*Conn, []byte)

	mu    sync.Mutex
	conns map[uint32]*Conn
}

// NewServer creates a server whose connections live until ctx is cancelled
// or Close is called.
func NewServer(ctx context.Context, cfg ServerConfig) (*Server, error) {
	key, err := ParseKey(cfg.Key)
	if err != nil {
		return nil, err
	}
	sCtx, cancel := context.WithCancel(ctx)
	return &Server{
		opts: connOptions{
			key:          key,
			writeTimeout: cfg.WriteTimeout,
			readLimit:    cfg.ReadLimit,
			limit:        rate.Limit(cfg.FramesPerSecond),
			burst:        max(cfg.Burst, 1),
		},
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		ctx:          sCtx,
		cancel:       cancel,
		onConnect:    func(*Conn) {},
		onDisconnect: func(*Conn, error) {},
		onAppData:    func(*Conn, []byte) {},
		conns:        make(map[uint32]*Conn),
	}, nil
}

func (s *Server) OnConnect(fn func(*Conn))           { s.onConnect = fn }
func (s *Server) OnDisconnect(fn func(*Conn, error)) { s.onDisconnect = fn }
func (s *Server) OnAppData(fn func(*Conn, []byte))   { s.onAppData = fn }

// ServeHTTP upgrades the request and runs the connection until it closes.
// Connect, every app-data frame, and disconnect for one peer are delivered
// on this goroutine, in that order.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		util.LogDebug("websocket upgrade failed: %v", err)
		return
	}

	c, err := newConn(s.ctx, ws, s.opts)
	if err != nil {
		util.LogError("failed to set up connection from %s: %v", ws.RemoteAddr(), err)
		ws.Close()
		return
	}

	s.mu.Lock()
	c.id = s.freeID(c.id)
	s.conns[c.id] = c
	s.mu.Unlock()
	util.Stats.AddConn()

	// Close the socket when the server shuts down so ReadMessage returns.
	go func() {
		<-c.ctx.Done()
		c.Close()
	}()

	s.onConnect(c)
	readErr := c.readLoop(func(data []byte) { s.onAppData(c, data) })
	c.Close()

	s.mu.Lock()
	delete(s.conns, c.id)
	s.mu.Unlock()
	util.Stats.RemoveConn()

	s.onDisconnect(c, readErr)
}

// freeID returns id, or the next value after it that no open connection
// holds. Caller holds s.mu.
func (s *Server) freeID(id uint32) uint32 {
	for {
		if _, taken := s.conns[id]; !taken {
			return id
		}
		id++
	}
}

// Len returns the number of open connections.
func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Close shuts down every open connection.
func (s *Server) Close() error {
	s.cancel()
	return nil
}
