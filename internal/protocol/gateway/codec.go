package gateway

import (
	"fmt"

	"github.com/1ureka/soegate/internal/protocol"
)

type decoder func(ch uint8, r *protocol.Reader) protocol.Message

var decoders = map[uint8]decoder{
	opLoginRequest: func(_ uint8, r *protocol.Reader) protocol.Message {
		return LoginRequest{
			CharacterID:    r.Uint64(),
			Ticket:         r.String(),
			ClientProtocol: r.String(),
			ClientBuild:    r.String(),
		}
	},
	opLoginReply: func(_ uint8, r *protocol.Reader) protocol.Message {
		return LoginReply{LoggedIn: r.Bool()}
	},
	opLogout: func(uint8, *protocol.Reader) protocol.Message {
		return Logout{}
	},
	opForceDisconnect: func(uint8, *protocol.Reader) protocol.Message {
		return ForceDisconnect{}
	},
	opTunnelPacketToExternalConnection: func(ch uint8, r *protocol.Reader) protocol.Message {
		return TunnelPacketToExternalConnection{Channel: ch, TunnelData: r.Rest()}
	},
	opTunnelPacketFromExternalConnection: func(ch uint8, r *protocol.Reader) protocol.Message {
		return TunnelPacketFromExternalConnection{Flags: ch, TunnelData: r.Rest()}
	},
	opChannelIsRoutable: func(ch uint8, r *protocol.Reader) protocol.Message {
		return ChannelIsRoutable{Channel: ch, IsRoutable: r.Bool()}
	},
	opConnectionIsNotRoutable: func(uint8, *protocol.Reader) protocol.Message {
		return ConnectionIsNotRoutable{}
	},
}

// Codec packs and parses gateway frames. It is stateless and safe for
// concurrent use.
type Codec struct{}

var _ protocol.Codec = Codec{}

func NewCodec() Codec { return Codec{} }

// Pack encodes msg. Channels above MaxChannel are rejected.
func (Codec) Pack(msg protocol.Message) ([]byte, error) {
	p, ok := msg.(packet)
	if !ok {
		return nil, fmt.Errorf("gateway: pack %T: %w", msg, protocol.ErrUnknownPacket)
	}
	ch := p.channel()
	if ch > MaxChannel {
		return nil, fmt.Errorf("gateway: pack %s: channel %d: %w", p.Name(), ch, protocol.ErrInvalidField)
	}

	w := protocol.NewWriter(16)
	w.Uint8(ch<<channelShift | p.opcode())
	p.encode(w)
	data, err := w.Bytes()
	if err != nil {
		return nil, fmt.Errorf("gateway: pack %s: %w", p.Name(), err)
	}
	return data, nil
}

// Parse decodes one gateway frame.
func (Codec) Parse(data []byte) (protocol.Message, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("gateway: parse: %w", protocol.ErrShortBuffer)
	}
	op := data[0] & opcodeMask
	ch := data[0] >> channelShift

	dec, ok := decoders[op]
	if !ok {
		return nil, fmt.Errorf("gateway: parse opcode 0x%02x: %w", op, protocol.ErrUnknownPacket)
	}

	r := protocol.NewReader(data[1:])
	msg := dec(ch, r)
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("gateway: parse %s: %w", msg.Name(), err)
	}
	return msg, nil
}
