package login

import (
	"fmt"

	"github.com/1ureka/soegate/internal/protocol"
)

var decoders = map[uint8]func(r *protocol.Reader) protocol.Message{
	opLoginRequest: func(r *protocol.Reader) protocol.Message {
		return LoginRequest{SessionID: r.String(), SystemFingerPrint: r.String()}
	},
	opLoginReply: func(r *protocol.Reader) protocol.Message {
		return LoginReply{
			LoggedIn:   r.Bool(),
			Status:     r.Uint32(),
			IsMember:   r.Bool(),
			IsInternal: r.Bool(),
			Namespace:  r.String(),
		}
	},
	opLogout: func(*protocol.Reader) protocol.Message { return Logout{} },
	opForceDisconnect: func(r *protocol.Reader) protocol.Message {
		return ForceDisconnect{Reason: r.Uint32()}
	},
	opCharacterCreateRequest: func(r *protocol.Reader) protocol.Message {
		return CharacterCreateRequest{
			ServerID:      r.Uint32(),
			CharacterName: r.String(),
			Locale:        r.String(),
			Faction:       r.Uint8(),
			Gender:        r.Uint8(),
		}
	},
	opCharacterCreateReply: func(r *protocol.Reader) protocol.Message {
		return CharacterCreateReply{Status: r.Uint32()}
	},
	opCharacterLoginRequest: func(r *protocol.Reader) protocol.Message {
		return CharacterLoginRequest{CharacterID: r.Uint64(), ServerID: r.Uint32(), Locale: r.String()}
	},
	opCharacterLoginReply: func(r *protocol.Reader) protocol.Message {
		return CharacterLoginReply{
			CharacterID:   r.Uint64(),
			ServerID:      r.Uint32(),
			Status:        r.Uint32(),
			ServerAddress: r.String(),
			ServerTicket:  r.String(),
			EncryptionKey: r.Blob(),
			GUID:          r.Uint64(),
		}
	},
	opCharacterDeleteRequest: func(r *protocol.Reader) protocol.Message {
		return CharacterDeleteRequest{CharacterID: r.Uint64()}
	},
	opCharacterDeleteReply: func(r *protocol.Reader) protocol.Message {
		return CharacterDeleteReply{Status: r.Uint32()}
	},
	opCharacterSelectInfoRequest: func(*protocol.Reader) protocol.Message {
		return CharacterSelectInfoRequest{}
	},
	opCharacterSelectInfoReply: func(r *protocol.Reader) protocol.Message {
		p := CharacterSelectInfoReply{Status: r.Uint32(), CanBypassServerLock: r.Bool()}
		n := readCount(r)
		for i := 0; i < n; i++ {
			p.Characters = append(p.Characters, Character{
				ID:        r.Uint64(),
				ServerID:  r.Uint32(),
				Name:      r.String(),
				LastLogin: r.Uint64(),
			})
		}
		return p
	},
	opServerListRequest: func(*protocol.Reader) protocol.Message { return ServerListRequest{} },
	opServerListReply: func(r *protocol.Reader) protocol.Message {
		var p ServerListReply
		n := readCount(r)
		for i := 0; i < n; i++ {
			p.Servers = append(p.Servers, readServer(r))
		}
		return p
	},
	opServerUpdate: func(r *protocol.Reader) protocol.Message {
		return ServerUpdate{Status: r.Uint32(), Server: readServer(r)}
	},
	opTunnelAppPacketClientToServer: func(r *protocol.Reader) protocol.Message {
		return TunnelAppPacketClientToServer{Data: r.Rest()}
	},
	opTunnelAppPacketServerToClient: func(r *protocol.Reader) protocol.Message {
		return TunnelAppPacketServerToClient{Data: r.Rest()}
	},
}

// readCount reads a list length and caps it at the bytes left, so a corrupt
// count fails on the first short read instead of allocating.
func readCount(r *protocol.Reader) int {
	n := int(r.Uint32())
	if n > r.Remaining() {
		n = r.Remaining() + 1
	}
	return n
}

// Codec packs and parses login frames.
type Codec struct{}

var _ protocol.Codec = Codec{}

func NewCodec() Codec { return Codec{} }

func (Codec) Pack(msg protocol.Message) ([]byte, error) {
	p, ok := msg.(packet)
	if !ok {
		return nil, fmt.Errorf("login: pack %T: %w", msg, protocol.ErrUnknownPacket)
	}
	w := protocol.NewWriter(32)
	w.Uint8(p.opcode())
	p.encode(w)
	data, err := w.Bytes()
	if err != nil {
		return nil, fmt.Errorf("login: pack %s: %w", p.Name(), err)
	}
	return data, nil
}

func (Codec) Parse(data []byte) (protocol.Message, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("login: parse: %w", protocol.ErrShortBuffer)
	}
	dec, ok := decoders[data[0]]
	if !ok {
		return nil, fmt.Errorf("login: parse opcode 0x%02x: %w", data[0], protocol.ErrUnknownPacket)
	}
	r := protocol.NewReader(data[1:])
	msg := dec(r)
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("login: parse %s: %w", msg.Name(), err)
	}
	return msg, nil
}
