package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/soegate/internal/protocol"
)

func TestRoundTrip(t *testing.T) {
	c := NewCodec()
	msgs := []protocol.Message{
		LoginRequest{CharacterID: 42, Ticket: "T", ClientProtocol: "ClientProtocol_1080", ClientBuild: "0.0.0"},
		LoginReply{LoggedIn: true},
		Logout{},
		ForceDisconnect{},
		TunnelPacketToExternalConnection{Channel: 1, TunnelData: []byte{1, 2, 3}},
		TunnelPacketFromExternalConnection{Flags: 5, TunnelData: []byte{4, 5}},
		ChannelIsRoutable{Channel: 1, IsRoutable: true},
		ConnectionIsNotRoutable{},
	}
	for _, msg := range msgs {
		t.Run(msg.Name(), func(t *testing.T) {
			data, err := c.Pack(msg)
			require.NoError(t, err)
			got, err := c.Parse(data)
			require.NoError(t, err)
			assert.Equal(t, msg, got)
		})
	}
}

func TestChannelInHighBits(t *testing.T) {
	c := NewCodec()

	data, err := c.Pack(TunnelPacketToExternalConnection{Channel: 0, TunnelData: []byte{0xaa}})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x05, 0xaa}, data)

	data, err = c.Pack(ChannelIsRoutable{Channel: 1, IsRoutable: true})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x27, 0x01}, data)

	got, err := c.Parse([]byte{0xe6, 0x10})
	require.NoError(t, err)
	assert.Equal(t, TunnelPacketFromExternalConnection{Flags: 7, TunnelData: []byte{0x10}}, got)
}

func TestPackRejectsWideChannel(t *testing.T) {
	_, err := NewCodec().Pack(TunnelPacketToExternalConnection{Channel: 8, TunnelData: []byte{1}})
	assert.ErrorIs(t, err, protocol.ErrInvalidField)
}

func TestParseErrors(t *testing.T) {
	c := NewCodec()

	_, err := c.Parse(nil)
	assert.ErrorIs(t, err, protocol.ErrShortBuffer)

	_, err = c.Parse([]byte{0x1f})
	assert.ErrorIs(t, err, protocol.ErrUnknownPacket)

	_, err = c.Parse([]byte{0x01, 0x00})
	assert.ErrorIs(t, err, protocol.ErrShortBuffer)
}
