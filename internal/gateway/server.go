// Package gateway implements both ends of the gateway tunnel: the relay
// that authenticates game clients and carries their zone traffic, and the
// client that opens such a tunnel.
package gateway

import (
	"errors"
	"fmt"
	"sync"

	"github.com/1ureka/soegate/internal/dispatch"
	"github.com/1ureka/soegate/internal/dump"
	"github.com/1ureka/soegate/internal/event"
	"github.com/1ureka/soegate/internal/protocol"
	gwproto "github.com/1ureka/soegate/internal/protocol/gateway"
	"github.com/1ureka/soegate/internal/transport"
	"github.com/1ureka/soegate/internal/util"
)

var (
	ErrNotConnected    = errors.New("gateway: not connected")
	ErrUnknownPeer     = errors.New("gateway: unknown connection")
	ErrForceDisconnect = errors.New("gateway: disconnected by server")
)

// Channels announced as routable once a connection logs in.
var routableChannels = []uint8{0, 1}

// Peer is one client connection as seen by the relay.
type Peer interface {
	ID() uint32
	Address() string
	Port() int
	SendAppData(data []byte, reliable bool) error
	SetEncryption(on bool)
}

var _ Peer = (*transport.Conn)(nil)

// TicketValidator decides whether a gateway login may proceed.
type TicketValidator func(peer Peer, req gwproto.LoginRequest) bool

// Server event kinds.
const (
	EventConnect    event.Kind = "connect"
	EventDisconnect event.Kind = "disconnect"
	EventLogin      event.Kind = "login"
	EventLogout     event.Kind = "logout"
	EventTunnelData event.Kind = "tunneldata"
)

// ServerEvent is delivered to relay subscribers. Login carries the
// character and ticket; TunnelData carries Data and Flags as received.
type ServerEvent struct {
	Kind        event.Kind
	Err         error
	Peer        Peer
	CharacterID uint64
	Ticket      string
	Data        []byte
	Flags       uint8
}

// Sessions are keyed by the Peer value; IDs only label log lines.
type session struct {
	peer          Peer
	authenticated bool
	characterID   uint64
	ticket        string
}

// Server is the gateway relay. Each connection's frames must be fed from
// a single goroutine; different connections may be handled concurrently.
type Server struct {
	codec    gwproto.Codec
	table    *dispatch.Table[*session]
	validate TicketValidator
	observer dump.Observer
	log      util.Logger
	events   event.Bus[ServerEvent]

	mu       sync.Mutex
	sessions map[Peer]*session
}

type ServerOption func(*Server)

// WithTicketValidator rejects logins for which v returns false.
func WithTicketValidator(v TicketValidator) ServerOption {
	return func(s *Server) { s.validate = v }
}

func WithServerObserver(o dump.Observer) ServerOption {
	return func(s *Server) { s.observer = dump.OrNop(o) }
}

func NewServer(opts ...ServerOption) *Server {
	s := &Server{
		codec:    gwproto.NewCodec(),
		table:    dispatch.New[*session](),
		validate: func(Peer, gwproto.LoginRequest) bool { return true },
		observer: dump.Nop{},
		log:      util.NewLogger("GatewayServer"),
		sessions: make(map[Peer]*session),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.table.Register("LoginRequest", s.handleLoginRequest)
	s.table.Register("Logout", s.handleLogout)
	s.table.Register("TunnelPacketFromExternalConnection", s.handleTunnelPacket)
	s.log.Debugf("Routing %v", s.table.Names())
	return s
}

// Attach routes a transport server's connection events into the relay.
func (s *Server) Attach(ts *transport.Server) {
	ts.OnConnect(func(c *transport.Conn) { s.HandleConnect(c) })
	ts.OnDisconnect(func(c *transport.Conn, err error) { s.HandleDisconnect(c, err) })
	ts.OnAppData(func(c *transport.Conn, data []byte) { s.HandleAppData(c, data) })
}

func (s *Server) On(kind event.Kind, fn func(ServerEvent)) { s.events.On(kind, fn) }

// Len returns the number of tracked connections.
func (s *Server) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// ---------------------------------------------------------------------------
// Connection lifecycle
// ---------------------------------------------------------------------------

func (s *Server) HandleConnect(peer Peer) {
	s.mu.Lock()
	s.sessions[peer] = &session{peer: peer}
	s.mu.Unlock()

	s.log.Infof("[%08x] Client connected from %s:%d", peer.ID(), peer.Address(), peer.Port())
	s.events.Emit(EventConnect, ServerEvent{Kind: EventConnect, Peer: peer})
}

// HandleDisconnect discards the connection's session.
func (s *Server) HandleDisconnect(peer Peer, err error) {
	s.mu.Lock()
	delete(s.sessions, peer)
	s.mu.Unlock()

	if err != nil {
		s.log.Infof("[%08x] Client disconnected: %v", peer.ID(), err)
	} else {
		s.log.Infof("[%08x] Client disconnected", peer.ID())
	}
	s.events.Emit(EventDisconnect, ServerEvent{Kind: EventDisconnect, Err: err, Peer: peer})
}

// HandleAppData decodes one frame and runs its handler. Malformed frames
// are logged and dropped; the connection stays open.
func (s *Server) HandleAppData(peer Peer, data []byte) {
	sess := s.lookup(peer)
	if sess == nil {
		s.log.Warnf("[%08x] App data from unknown connection, dropped", peer.ID())
		return
	}
	s.observer.Frame("GatewayServer", dump.In, data)
	msg, err := s.table.Handle(sess, s.codec, data)
	if err != nil {
		util.Stats.AddDropped()
		s.log.Debugf("[%08x] Failed parsing app data (%d bytes): %v", peer.ID(), len(data), err)
		return
	}
	s.observer.Packet("GatewayServer", dump.In, msg)
}

func (s *Server) lookup(peer Peer) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[peer]
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (s *Server) handleLoginRequest(sess *session, msg protocol.Message) {
	req := msg.(gwproto.LoginRequest)
	id := sess.peer.ID()

	if sess.authenticated {
		s.log.Debugf("[%08x] Duplicate LoginRequest ignored", id)
		return
	}
	if !s.validate(sess.peer, req) {
		s.log.Warnf("[%08x] Rejected login for character %d", id, req.CharacterID)
		if err := s.send(sess.peer, gwproto.LoginReply{LoggedIn: false}); err != nil {
			s.log.Debugf("[%08x] Send LoginReply: %v", id, err)
		}
		return
	}

	// The reply must be the first encrypted frame the client sees.
	sess.peer.SetEncryption(true)

	replies := []protocol.Message{gwproto.LoginReply{LoggedIn: true}}
	for _, ch := range routableChannels {
		replies = append(replies, gwproto.ChannelIsRoutable{Channel: ch, IsRoutable: true})
	}
	for _, reply := range replies {
		if err := s.send(sess.peer, reply); err != nil {
			s.log.Warnf("[%08x] Send %s: %v", id, reply.Name(), err)
			return
		}
	}

	sess.authenticated = true
	sess.characterID = req.CharacterID
	sess.ticket = req.Ticket
	util.Stats.AddLogin()

	s.log.Infof("[%08x] Character %d logged in (%s, %s)", id, req.CharacterID, req.ClientProtocol, req.ClientBuild)
	s.events.Emit(EventLogin, ServerEvent{
		Kind:        EventLogin,
		Peer:        sess.peer,
		CharacterID: req.CharacterID,
		Ticket:      req.Ticket,
	})
}

func (s *Server) handleLogout(sess *session, _ protocol.Message) {
	s.log.Infof("[%08x] Logout", sess.peer.ID())
	s.events.Emit(EventLogout, ServerEvent{Kind: EventLogout, Peer: sess.peer, CharacterID: sess.characterID})
}

func (s *Server) handleTunnelPacket(sess *session, msg protocol.Message) {
	pkt := msg.(gwproto.TunnelPacketFromExternalConnection)
	util.Stats.AddTunnelIn(len(pkt.TunnelData))
	s.events.Emit(EventTunnelData, ServerEvent{
		Kind:        EventTunnelData,
		Peer:        sess.peer,
		CharacterID: sess.characterID,
		Data:        pkt.TunnelData,
		Flags:       pkt.Flags,
	})
}

// ---------------------------------------------------------------------------
// Outbound
// ---------------------------------------------------------------------------

// SendTunnelData relays payload to peer on channel 0.
func (s *Server) SendTunnelData(peer Peer, payload []byte) error {
	if err := s.send(peer, gwproto.TunnelPacketToExternalConnection{Channel: 0, TunnelData: payload}); err != nil {
		return err
	}
	util.Stats.AddTunnelOut(len(payload))
	return nil
}

// SendTunnelDataTo relays payload to the connection with the given id.
func (s *Server) SendTunnelDataTo(id uint32, payload []byte) error {
	var peer Peer
	s.mu.Lock()
	for p := range s.sessions {
		if p.ID() == id {
			peer = p
			break
		}
	}
	s.mu.Unlock()
	if peer == nil {
		return fmt.Errorf("%w: %08x", ErrUnknownPeer, id)
	}
	return s.SendTunnelData(peer, payload)
}

// Kick tells the client to disconnect. The transport stays up until the
// client or the transport closes it.
func (s *Server) Kick(peer Peer) error {
	return s.send(peer, gwproto.ForceDisconnect{})
}

func (s *Server) send(peer Peer, msg protocol.Message) error {
	data, err := s.codec.Pack(msg)
	if err != nil {
		s.log.Errorf("[%08x] Could not pack %s data: %v", peer.ID(), msg.Name(), err)
		return err
	}
	s.observer.Packet("GatewayServer", dump.Out, msg)
	s.observer.Frame("GatewayServer", dump.Out, data)
	return peer.SendAppData(data, true)
}
