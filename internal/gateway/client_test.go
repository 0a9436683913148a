package gateway

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/soegate/internal/event"
	"github.com/1ureka/soegate/internal/protocol"
	gwproto "github.com/1ureka/soegate/internal/protocol/gateway"
	"github.com/1ureka/soegate/internal/transport/transporttest"
)

func connectedClient(t *testing.T) (*Client, *transporttest.Link, *[]ClientEvent) {
	t.Helper()
	link := transporttest.NewLink()
	c := NewClient(link)
	var events []ClientEvent
	for _, k := range []string{"connect", "disconnect", "login", "tunneldata"} {
		c.On(event.Kind(k), func(ev ClientEvent) { events = append(events, ev) })
	}
	require.NoError(t, c.Connect(context.Background()))
	return c, link, &events
}

func TestClientLoginSendsRequest(t *testing.T) {
	c, link, events := connectedClient(t)
	require.Len(t, *events, 1)
	assert.Equal(t, EventConnect, (*events)[0].Kind)

	require.NoError(t, c.Login(42, "T", "ClientProtocol_1080", "0.1"))
	assert.Equal(t, []protocol.Message{
		gwproto.LoginRequest{CharacterID: 42, Ticket: "T", ClientProtocol: "ClientProtocol_1080", ClientBuild: "0.1"},
	}, decode(t, link.Sent()))
}

func TestClientRequiresConnection(t *testing.T) {
	c := NewClient(transporttest.NewLink())
	assert.ErrorIs(t, c.Login(1, "T", "p", "b"), ErrNotConnected)
	assert.ErrorIs(t, c.SendTunnelData([]byte{1}, 0), ErrNotConnected)
}

func TestClientLoginReplyEnablesEncryption(t *testing.T) {
	c, link, events := connectedClient(t)

	link.Deliver(pack(t, gwproto.LoginReply{LoggedIn: true}))
	link.Deliver(pack(t, gwproto.ChannelIsRoutable{Channel: 0, IsRoutable: true}))
	link.Deliver(pack(t, gwproto.ChannelIsRoutable{Channel: 1, IsRoutable: true}))

	assert.True(t, link.Encrypted())
	assert.True(t, c.LoggedIn())
	assert.True(t, c.IsRoutable(0))
	assert.True(t, c.IsRoutable(1))
	assert.False(t, c.IsRoutable(2))
	assert.False(t, c.IsRoutable(200))

	require.Len(t, *events, 2)
	assert.Equal(t, EventLogin, (*events)[1].Kind)
	assert.True(t, (*events)[1].LoggedIn)

	link.Deliver(pack(t, gwproto.ConnectionIsNotRoutable{}))
	assert.False(t, c.IsRoutable(0))
}

func TestClientRejectedLoginStaysPlain(t *testing.T) {
	c, link, events := connectedClient(t)

	link.Deliver(pack(t, gwproto.LoginReply{LoggedIn: false}))

	assert.False(t, link.Encrypted())
	assert.False(t, c.LoggedIn())
	require.Len(t, *events, 2)
	assert.False(t, (*events)[1].LoggedIn)
}

func TestClientTunnelDataChannels(t *testing.T) {
	c, link, events := connectedClient(t)

	require.NoError(t, c.SendTunnelData([]byte{1}, 1))
	require.NoError(t, c.SendTunnelData([]byte{2}, 0))
	assert.Error(t, c.SendTunnelData([]byte{3}, 8))

	sent := link.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, byte(0x26), sent[0].Data[0])
	assert.Equal(t, byte(0x06), sent[1].Data[0])

	link.Deliver(pack(t, gwproto.TunnelPacketToExternalConnection{Channel: 3, TunnelData: []byte{9}}))
	require.Len(t, *events, 2)
	ev := (*events)[1]
	assert.Equal(t, EventTunnelData, ev.Kind)
	assert.Equal(t, []byte{9}, ev.Data)
	assert.Equal(t, uint8(3), ev.Channel)
}

func TestClientForceDisconnect(t *testing.T) {
	c, link, events := connectedClient(t)
	link.Deliver(pack(t, gwproto.LoginReply{LoggedIn: true}))

	link.Deliver(pack(t, gwproto.ForceDisconnect{}))

	require.Len(t, *events, 3)
	last := (*events)[2]
	assert.Equal(t, EventDisconnect, last.Kind)
	assert.ErrorIs(t, last.Err, ErrForceDisconnect)
	assert.False(t, c.LoggedIn())
}

func TestClientDropsMalformedFrames(t *testing.T) {
	_, link, events := connectedClient(t)

	link.Deliver([]byte{0x02})
	link.Deliver([]byte{0x1e, 0x00})

	assert.Len(t, *events, 1)
	assert.False(t, link.Encrypted())
}
