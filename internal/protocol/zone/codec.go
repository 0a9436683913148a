package zone

import (
	"fmt"

	"github.com/1ureka/soegate/internal/protocol"
)

var decoders = map[uint16]func(r *protocol.Reader) protocol.Message{
	opInitializationParameters: func(r *protocol.Reader) protocol.Message {
		return InitializationParameters{Environment: r.String()}
	},
	opReferenceDataWeaponDefinitions: func(r *protocol.Reader) protocol.Message {
		return ReferenceDataWeaponDefinitions{Data: r.Rest()}
	},
	opSendZoneDetails: func(r *protocol.Reader) protocol.Message {
		return SendZoneDetails{ZoneName: r.String(), ZoneType: r.Uint32(), Data: r.Rest()}
	},
	opSendSelfToClient: func(r *protocol.Reader) protocol.Message {
		return SendSelfToClient{Self: r.Rest()}
	},
	opClientUpdateBaseZonePopulation: func(r *protocol.Reader) protocol.Message {
		return ClientUpdateBaseZonePopulation{Populations: r.Blob()}
	},
	opClientUpdateBaseRespawnLocations: func(r *protocol.Reader) protocol.Message {
		var p ClientUpdateBaseRespawnLocations
		n := int(r.Uint32())
		for i := 0; i < n && r.Err() == nil; i++ {
			l := RespawnLocation{GUID: r.Uint64(), Name: r.String()}
			for j := range l.Position {
				l.Position[j] = r.Float32()
			}
			p.Locations = append(p.Locations, l)
		}
		return p
	},
	opClientGameSettings: func(r *protocol.Reader) protocol.Message {
		return ClientGameSettings{Data: r.Rest()}
	},
	opVehicleBaseLoadVehicleDefinitionManager: func(r *protocol.Reader) protocol.Message {
		return VehicleBaseLoadVehicleDefinitionManager{VehicleDefinitions: r.Rest()}
	},
	opCommandBaseItemDefinitions: func(r *protocol.Reader) protocol.Message {
		return CommandBaseItemDefinitions{Data: r.Rest()}
	},
	opClientInitializationDetails: func(r *protocol.Reader) protocol.Message {
		return ClientInitializationDetails{Unknown: r.Uint32()}
	},
	opSetLocale: func(r *protocol.Reader) protocol.Message {
		return SetLocale{Locale: r.String()}
	},
	opGetContinentBattleInfo: func(*protocol.Reader) protocol.Message { return GetContinentBattleInfo{} },
	opGetRewardBuffInfo:      func(*protocol.Reader) protocol.Message { return GetRewardBuffInfo{} },
	opClientIsReady:          func(*protocol.Reader) protocol.Message { return ClientIsReady{} },
}

// Codec packs and parses zone packets carried inside tunnel frames.
type Codec struct{}

var _ protocol.Codec = Codec{}

func NewCodec() Codec { return Codec{} }

func (Codec) Pack(msg protocol.Message) ([]byte, error) {
	p, ok := msg.(packet)
	if !ok {
		return nil, fmt.Errorf("zone: pack %T: %w", msg, protocol.ErrUnknownPacket)
	}
	w := protocol.NewWriter(16)
	w.Uint16(p.opcode())
	p.encode(w)
	data, err := w.Bytes()
	if err != nil {
		return nil, fmt.Errorf("zone: pack %s: %w", p.Name(), err)
	}
	return data, nil
}

func (Codec) Parse(data []byte) (protocol.Message, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("zone: parse: %w", protocol.ErrShortBuffer)
	}
	r := protocol.NewReader(data)
	op := r.Uint16()
	dec, ok := decoders[op]
	if !ok {
		return nil, fmt.Errorf("zone: parse opcode 0x%04x: %w", op, protocol.ErrUnknownPacket)
	}
	msg := dec(r)
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("zone: parse %s: %w", msg.Name(), err)
	}
	return msg, nil
}
