package gateway

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/soegate/internal/event"
	"github.com/1ureka/soegate/internal/protocol"
	gwproto "github.com/1ureka/soegate/internal/protocol/gateway"
	"github.com/1ureka/soegate/internal/transport/transporttest"
	"github.com/1ureka/soegate/internal/util"
)

func init() {
	util.SetLogOutput(io.Discard)
}

var codec = gwproto.NewCodec()

func pack(t *testing.T, msg protocol.Message) []byte {
	t.Helper()
	data, err := codec.Pack(msg)
	require.NoError(t, err)
	return data
}

func decode(t *testing.T, ops []transporttest.Op) []protocol.Message {
	t.Helper()
	var out []protocol.Message
	for _, op := range ops {
		msg, err := codec.Parse(op.Data)
		require.NoError(t, err)
		out = append(out, msg)
	}
	return out
}

func loginRequest(t *testing.T) []byte {
	return pack(t, gwproto.LoginRequest{CharacterID: 42, Ticket: "T", ClientProtocol: "ClientProtocol_1080", ClientBuild: "0.1"})
}

func collect(s *Server, kinds ...string) *[]ServerEvent {
	var events []ServerEvent
	for _, k := range kinds {
		s.On(event.Kind(k), func(ev ServerEvent) { events = append(events, ev) })
	}
	return &events
}

func connectedPeer(s *Server) *transporttest.Peer {
	peer := transporttest.NewPeer(0xdeadbeef, "127.0.0.1", 50000)
	s.HandleConnect(peer)
	return peer
}

func TestLoginEnablesEncryptionBeforeReply(t *testing.T) {
	s := NewServer()
	peer := connectedPeer(s)

	s.HandleAppData(peer, loginRequest(t))

	ops := peer.Ops()
	require.Len(t, ops, 4)
	assert.Equal(t, transporttest.OpEncrypt, ops[0].Kind)
	assert.True(t, ops[0].Encrypted)
	for _, op := range ops[1:] {
		assert.Equal(t, transporttest.OpSend, op.Kind)
		assert.True(t, op.Encrypted, "every reply frame is encrypted")
		assert.True(t, op.Reliable)
	}
}

func TestLoginReplySequence(t *testing.T) {
	s := NewServer()
	events := collect(s, "login")
	peer := connectedPeer(s)

	s.HandleAppData(peer, loginRequest(t))

	assert.Equal(t, []protocol.Message{
		gwproto.LoginReply{LoggedIn: true},
		gwproto.ChannelIsRoutable{Channel: 0, IsRoutable: true},
		gwproto.ChannelIsRoutable{Channel: 1, IsRoutable: true},
	}, decode(t, peer.Sent()))

	require.Len(t, *events, 1)
	ev := (*events)[0]
	assert.Equal(t, EventLogin, ev.Kind)
	assert.Equal(t, uint64(42), ev.CharacterID)
	assert.Equal(t, "T", ev.Ticket)
	assert.Same(t, peer, ev.Peer)
}

func TestDuplicateLoginIgnored(t *testing.T) {
	s := NewServer()
	events := collect(s, "login")
	peer := connectedPeer(s)

	s.HandleAppData(peer, loginRequest(t))
	peer.Reset()
	s.HandleAppData(peer, loginRequest(t))

	assert.Empty(t, peer.Ops())
	assert.Len(t, *events, 1)
}

func TestRejectedTicket(t *testing.T) {
	s := NewServer(WithTicketValidator(func(_ Peer, req gwproto.LoginRequest) bool {
		return req.Ticket == "good"
	}))
	events := collect(s, "login")
	peer := connectedPeer(s)

	s.HandleAppData(peer, loginRequest(t))

	ops := peer.Ops()
	require.Len(t, ops, 1)
	assert.False(t, ops[0].Encrypted)
	assert.Equal(t, []protocol.Message{gwproto.LoginReply{LoggedIn: false}}, decode(t, ops))
	assert.Empty(t, *events)
	assert.False(t, peer.Encrypted())
}

func TestLogoutEmitsWithoutClosing(t *testing.T) {
	s := NewServer()
	events := collect(s, "logout", "disconnect")
	peer := connectedPeer(s)

	s.HandleAppData(peer, pack(t, gwproto.Logout{}))

	require.Len(t, *events, 1)
	assert.Equal(t, EventLogout, (*events)[0].Kind)
	assert.Empty(t, peer.Ops())
	assert.Equal(t, 1, s.Len())
}

func TestInboundTunnelDataPassesFlagsThrough(t *testing.T) {
	s := NewServer()
	events := collect(s, "tunneldata")
	peer := connectedPeer(s)

	for _, flags := range []uint8{0, 1, 5, 7} {
		s.HandleAppData(peer, pack(t, gwproto.TunnelPacketFromExternalConnection{Flags: flags, TunnelData: []byte{0xca, 0xfe, flags}}))
	}

	require.Len(t, *events, 4)
	for i, flags := range []uint8{0, 1, 5, 7} {
		ev := (*events)[i]
		assert.Equal(t, flags, ev.Flags)
		assert.Equal(t, []byte{0xca, 0xfe, flags}, ev.Data)
	}
}

func TestSendTunnelDataUsesChannelZero(t *testing.T) {
	s := NewServer()
	peer := connectedPeer(s)
	payload := []byte{1, 2, 3, 4}

	require.NoError(t, s.SendTunnelData(peer, payload))
	require.NoError(t, s.SendTunnelDataTo(peer.ID(), payload))

	sent := peer.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, byte(0x05), sent[0].Data[0])
	for _, msg := range decode(t, sent) {
		assert.Equal(t, gwproto.TunnelPacketToExternalConnection{Channel: 0, TunnelData: payload}, msg)
	}

	assert.ErrorIs(t, s.SendTunnelDataTo(1, payload), ErrUnknownPeer)
}

func TestMalformedFramesProduceNoEvents(t *testing.T) {
	s := NewServer()
	events := collect(s, "login", "logout", "tunneldata", "disconnect")
	peer := connectedPeer(s)

	s.HandleAppData(peer, nil)
	s.HandleAppData(peer, []byte{0x1f})
	s.HandleAppData(peer, []byte{0x01, 0x2a})

	assert.Empty(t, *events)
	assert.Empty(t, peer.Ops())
	assert.False(t, peer.Encrypted())
	assert.Equal(t, 1, s.Len())
}

func TestUnhandledPacketIsNoOp(t *testing.T) {
	s := NewServer()
	events := collect(s, "login", "logout", "tunneldata")
	peer := connectedPeer(s)

	s.HandleAppData(peer, pack(t, gwproto.ConnectionIsNotRoutable{}))

	assert.Empty(t, *events)
	assert.Empty(t, peer.Ops())
}

func TestDisconnectDiscardsSession(t *testing.T) {
	s := NewServer()
	events := collect(s, "connect", "disconnect", "login")
	peer := connectedPeer(s)
	s.HandleAppData(peer, loginRequest(t))
	require.Equal(t, 1, s.Len())

	s.HandleDisconnect(peer, nil)
	assert.Zero(t, s.Len())

	// A reconnect with the same id is a fresh, unauthenticated session.
	s.HandleConnect(peer)
	peer.Reset()
	s.HandleAppData(peer, loginRequest(t))
	assert.Len(t, peer.Sent(), 3)

	var kinds []string
	for _, ev := range *events {
		kinds = append(kinds, string(ev.Kind))
	}
	assert.Equal(t, []string{"connect", "login", "disconnect", "connect", "login"}, kinds)
}

func TestConnectionsAreIndependent(t *testing.T) {
	s := NewServer()
	a := transporttest.NewPeer(1, "10.0.0.1", 1000)
	b := transporttest.NewPeer(2, "10.0.0.2", 2000)
	s.HandleConnect(a)
	s.HandleConnect(b)

	s.HandleAppData(a, loginRequest(t))

	assert.True(t, a.Encrypted())
	assert.False(t, b.Encrypted())
	assert.Empty(t, b.Ops())
}

func TestPeersSharingAnIDKeepSeparateSessions(t *testing.T) {
	s := NewServer()
	a := transporttest.NewPeer(0x1234, "10.0.0.1", 1000)
	b := transporttest.NewPeer(0x1234, "10.0.0.2", 2000)
	s.HandleConnect(a)
	s.HandleConnect(b)
	require.Equal(t, 2, s.Len())

	s.HandleAppData(a, loginRequest(t))
	assert.True(t, a.Encrypted())
	assert.Len(t, a.Ops(), 4)
	assert.False(t, b.Encrypted())
	assert.Empty(t, b.Ops())

	s.HandleDisconnect(a, nil)
	assert.Equal(t, 1, s.Len())

	s.HandleAppData(b, loginRequest(t))
	assert.True(t, b.Encrypted())
	assert.Len(t, b.Ops(), 4)
}

func TestKickSendsForceDisconnect(t *testing.T) {
	s := NewServer()
	peer := connectedPeer(s)
	require.NoError(t, s.Kick(peer))
	assert.Equal(t, []protocol.Message{gwproto.ForceDisconnect{}}, decode(t, peer.Sent()))
}

func TestServerRoutes(t *testing.T) {
	s := NewServer()
	assert.Equal(t, []string{"LoginRequest", "Logout", "TunnelPacketFromExternalConnection"}, s.table.Names())
}
