// Package gateway implements the gateway tunnel protocol codec.
//
// Every frame starts with one opcode byte. The low five bits select the
// packet; for channel-scoped packets the high three bits carry the channel.
package gateway

import "github.com/1ureka/soegate/internal/protocol"

const (
	opLoginRequest                       uint8 = 0x01
	opLoginReply                         uint8 = 0x02
	opLogout                             uint8 = 0x03
	opForceDisconnect                    uint8 = 0x04
	opTunnelPacketToExternalConnection   uint8 = 0x05
	opTunnelPacketFromExternalConnection uint8 = 0x06
	opChannelIsRoutable                  uint8 = 0x07
	opConnectionIsNotRoutable            uint8 = 0x08
)

const (
	opcodeMask   = 0x1f
	channelShift = 5

	// MaxChannel is the highest channel id the opcode byte can carry.
	MaxChannel = 7
)

type packet interface {
	protocol.Message
	opcode() uint8
	channel() uint8
	encode(w *protocol.Writer)
}

// LoginRequest opens a zone session through the gateway.
type LoginRequest struct {
	CharacterID    uint64
	Ticket         string
	ClientProtocol string
	ClientBuild    string
}

func (LoginRequest) Name() string   { return "LoginRequest" }
func (LoginRequest) opcode() uint8  { return opLoginRequest }
func (LoginRequest) channel() uint8 { return 0 }
func (p LoginRequest) encode(w *protocol.Writer) {
	w.Uint64(p.CharacterID)
	w.String(p.Ticket)
	w.String(p.ClientProtocol)
	w.String(p.ClientBuild)
}

type LoginReply struct {
	LoggedIn bool
}

func (LoginReply) Name() string                { return "LoginReply" }
func (LoginReply) opcode() uint8               { return opLoginReply }
func (LoginReply) channel() uint8              { return 0 }
func (p LoginReply) encode(w *protocol.Writer) { w.Bool(p.LoggedIn) }

type Logout struct{}

func (Logout) Name() string              { return "Logout" }
func (Logout) opcode() uint8             { return opLogout }
func (Logout) channel() uint8            { return 0 }
func (Logout) encode(w *protocol.Writer) {}

type ForceDisconnect struct{}

func (ForceDisconnect) Name() string              { return "ForceDisconnect" }
func (ForceDisconnect) opcode() uint8             { return opForceDisconnect }
func (ForceDisconnect) channel() uint8            { return 0 }
func (ForceDisconnect) encode(w *protocol.Writer) {}

// TunnelPacketToExternalConnection carries zone bytes from the gateway to
// the client.
type TunnelPacketToExternalConnection struct {
	Channel    uint8
	TunnelData []byte
}

func (TunnelPacketToExternalConnection) Name() string { return "TunnelPacketToExternalConnection" }
func (TunnelPacketToExternalConnection) opcode() uint8 {
	return opTunnelPacketToExternalConnection
}
func (p TunnelPacketToExternalConnection) channel() uint8            { return p.Channel }
func (p TunnelPacketToExternalConnection) encode(w *protocol.Writer) { w.Raw(p.TunnelData) }

// TunnelPacketFromExternalConnection carries zone bytes from the client to
// the gateway. Flags holds the opcode's high bits exactly as sent.
type TunnelPacketFromExternalConnection struct {
	Flags      uint8
	TunnelData []byte
}

func (TunnelPacketFromExternalConnection) Name() string { return "TunnelPacketFromExternalConnection" }
func (TunnelPacketFromExternalConnection) opcode() uint8 {
	return opTunnelPacketFromExternalConnection
}
func (p TunnelPacketFromExternalConnection) channel() uint8            { return p.Flags }
func (p TunnelPacketFromExternalConnection) encode(w *protocol.Writer) { w.Raw(p.TunnelData) }

type ChannelIsRoutable struct {
	Channel    uint8
	IsRoutable bool
}

func (ChannelIsRoutable) Name() string                { return "ChannelIsRoutable" }
func (ChannelIsRoutable) opcode() uint8               { return opChannelIsRoutable }
func (p ChannelIsRoutable) channel() uint8            { return p.Channel }
func (p ChannelIsRoutable) encode(w *protocol.Writer) { w.Bool(p.IsRoutable) }

type ConnectionIsNotRoutable struct{}

func (ConnectionIsNotRoutable) Name() string              { return "ConnectionIsNotRoutable" }
func (ConnectionIsNotRoutable) opcode() uint8             { return opConnectionIsNotRoutable }
func (ConnectionIsNotRoutable) channel() uint8            { return 0 }
func (ConnectionIsNotRoutable) encode(w *protocol.Writer) {}
