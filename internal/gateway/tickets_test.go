package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gwproto "github.com/1ureka/soegate/internal/protocol/gateway"
	"github.com/1ureka/soegate/internal/transport/transporttest"
)

func TestOneTimeTickets(t *testing.T) {
	tickets, err := NewOneTimeTickets(2)
	require.NoError(t, err)
	peer := transporttest.NewPeer(1, "127.0.0.1", 1)

	assert.True(t, tickets.Validate(peer, gwproto.LoginRequest{Ticket: "a"}))
	assert.False(t, tickets.Validate(peer, gwproto.LoginRequest{Ticket: "a"}))
	assert.False(t, tickets.Validate(peer, gwproto.LoginRequest{Ticket: ""}))
	assert.True(t, tickets.Validate(peer, gwproto.LoginRequest{Ticket: "b"}))
	assert.True(t, tickets.Validate(peer, gwproto.LoginRequest{Ticket: "c"}))
	assert.Equal(t, 2, tickets.Len())

	// "a" fell out of the window.
	assert.True(t, tickets.Validate(peer, gwproto.LoginRequest{Ticket: "a"}))
}

func TestReusedTicketRejectedByRelay(t *testing.T) {
	tickets, err := NewOneTimeTickets(16)
	require.NoError(t, err)
	s := NewServer(WithTicketValidator(tickets.Validate))

	first := connectedPeer(s)
	s.HandleAppData(first, loginRequest(t))
	assert.True(t, first.Encrypted())

	second := transporttest.NewPeer(2, "127.0.0.1", 2)
	s.HandleConnect(second)
	s.HandleAppData(second, loginRequest(t))
	assert.False(t, second.Encrypted())
	require.Len(t, second.Sent(), 1)
}

func TestNewOneTimeTicketsRejectsZeroSize(t *testing.T) {
	_, err := NewOneTimeTickets(0)
	assert.Error(t, err)
}
