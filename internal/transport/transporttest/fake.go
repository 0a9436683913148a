// Package transporttest provides in-memory transport fakes that record
// every outbound frame and encryption toggle in order.
package transporttest

import (
	"context"
	"sync"

	"github.com/1ureka/soegate/internal/transport"
)

// OpKind distinguishes recorded operations.
type OpKind int

const (
	OpSend OpKind = iota
	OpEncrypt
)

// Op is one recorded outbound operation.
type Op struct {
	Kind      OpKind
	Data      []byte // OpSend
	Reliable  bool   // OpSend
	Encrypted bool   // OpSend: encryption state when sent; OpEncrypt: new state
}

type recorder struct {
	mu        sync.Mutex
	ops       []Op
	encrypted bool
}

func (r *recorder) send(data []byte, reliable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	r.ops = append(r.ops, Op{Kind: OpSend, Data: cp, Reliable: reliable, Encrypted: r.encrypted})
}

func (r *recorder) setEncryption(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.encrypted = on
	r.ops = append(r.ops, Op{Kind: OpEncrypt, Encrypted: on})
}

// Ops returns a copy of every recorded operation.
func (r *recorder) Ops() []Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Op(nil), r.ops...)
}

// Sent returns only the frames, in order.
func (r *recorder) Sent() []Op {
	var sent []Op
	for _, o := range r.Ops() {
		if o.Kind == OpSend {
			sent = append(sent, o)
		}
	}
	return sent
}

func (r *recorder) Encrypted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.encrypted
}

// Reset forgets recorded operations but keeps the encryption state.
func (r *recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = nil
}

// Peer is a fake server-side connection.
type Peer struct {
	recorder
	id      uint32
	address string
	port    int
}

func NewPeer(id uint32, address string, port int) *Peer {
	return &Peer{id: id, address: address, port: port}
}

func (p *Peer) ID() uint32      { return p.id }
func (p *Peer) Address() string { return p.address }
func (p *Peer) Port() int       { return p.port }

func (p *Peer) SendAppData(data []byte, reliable bool) error {
	p.send(data, reliable)
	return nil
}

func (p *Peer) SetEncryption(on bool) { p.setEncryption(on) }

// Link is a fake client transport. Connect fires the connect event
// synchronously; Deliver and Drop simulate inbound traffic and disconnects.
type Link struct {
	recorder

	ConnectErr error

	mu           sync.Mutex
	connected    bool
	onConnect    func()
	onDisconnect func(error)
	onAppData    func([]byte)
}

var _ transport.Link = (*Link)(nil)

func NewLink() *Link {
	return &Link{
		onConnect:    func() {},
		onDisconnect: func(error) {},
		onAppData:    func([]byte) {},
	}
}

func (l *Link) OnConnect(fn func())             { l.onConnect = fn }
func (l *Link) OnDisconnect(fn func(err error)) { l.onDisconnect = fn }
func (l *Link) OnAppData(fn func(data []byte))  { l.onAppData = fn }

func (l *Link) Connect(ctx context.Context) error {
	if l.ConnectErr != nil {
		return l.ConnectErr
	}
	l.mu.Lock()
	l.connected = true
	l.mu.Unlock()
	l.onConnect()
	return nil
}

func (l *Link) Disconnect() error {
	l.Drop(nil)
	return nil
}

func (l *Link) SendAppData(data []byte, reliable bool) error {
	l.mu.Lock()
	connected := l.connected
	l.mu.Unlock()
	if !connected {
		return transport.ErrNotConnected
	}
	l.send(data, reliable)
	return nil
}

func (l *Link) SetEncryption(on bool) { l.setEncryption(on) }

// Deliver hands data to the app-data callback as if it arrived on the wire.
func (l *Link) Deliver(data []byte) { l.onAppData(data) }

// Drop simulates a transport disconnect.
func (l *Link) Drop(err error) {
	l.mu.Lock()
	was := l.connected
	l.connected = false
	l.mu.Unlock()
	if was {
		l.onDisconnect(err)
	}
}
