// Package zone implements the subset of the zone protocol the client needs
// to bootstrap: a two-byte little-endian opcode followed by the body.
// Bodies the client never inspects are kept as opaque bytes.
package zone

import "github.com/1ureka/soegate/internal/protocol"

const (
	opInitializationParameters                uint16 = 0x0001
	opReferenceDataWeaponDefinitions          uint16 = 0x0002
	opSendZoneDetails                         uint16 = 0x0003
	opSendSelfToClient                        uint16 = 0x0004
	opClientUpdateBaseZonePopulation          uint16 = 0x0005
	opClientUpdateBaseRespawnLocations        uint16 = 0x0006
	opClientGameSettings                      uint16 = 0x0007
	opVehicleBaseLoadVehicleDefinitionManager uint16 = 0x0008
	opCommandBaseItemDefinitions              uint16 = 0x0009
	opClientInitializationDetails             uint16 = 0x000a
	opSetLocale                               uint16 = 0x000b
	opGetContinentBattleInfo                  uint16 = 0x000c
	opGetRewardBuffInfo                       uint16 = 0x000d
	opClientIsReady                           uint16 = 0x000e
)

type packet interface {
	protocol.Message
	opcode() uint16
	encode(w *protocol.Writer)
}

type InitializationParameters struct {
	Environment string
}

func (InitializationParameters) Name() string                { return "InitializationParameters" }
func (InitializationParameters) opcode() uint16              { return opInitializationParameters }
func (p InitializationParameters) encode(w *protocol.Writer) { w.String(p.Environment) }

type ReferenceDataWeaponDefinitions struct {
	Data []byte
}

func (ReferenceDataWeaponDefinitions) Name() string                { return "ReferenceDataWeaponDefinitions" }
func (ReferenceDataWeaponDefinitions) opcode() uint16              { return opReferenceDataWeaponDefinitions }
func (p ReferenceDataWeaponDefinitions) encode(w *protocol.Writer) { w.Raw(p.Data) }

type SendZoneDetails struct {
	ZoneName string
	ZoneType uint32
	Data     []byte
}

func (SendZoneDetails) Name() string   { return "SendZoneDetails" }
func (SendZoneDetails) opcode() uint16 { return opSendZoneDetails }
func (p SendZoneDetails) encode(w *protocol.Writer) {
	w.String(p.ZoneName)
	w.Uint32(p.ZoneType)
	w.Raw(p.Data)
}

// SendSelfToClient hands the player entity to the client. Self is the
// entity blob, never inspected here.
type SendSelfToClient struct {
	Self []byte
}

func (SendSelfToClient) Name() string                { return "SendSelfToClient" }
func (SendSelfToClient) opcode() uint16              { return opSendSelfToClient }
func (p SendSelfToClient) encode(w *protocol.Writer) { w.Raw(p.Self) }

type ClientUpdateBaseZonePopulation struct {
	Populations []uint8
}

func (ClientUpdateBaseZonePopulation) Name() string   { return "ClientUpdateBaseZonePopulation" }
func (ClientUpdateBaseZonePopulation) opcode() uint16 { return opClientUpdateBaseZonePopulation }
func (p ClientUpdateBaseZonePopulation) encode(w *protocol.Writer) {
	w.Blob(p.Populations)
}

type RespawnLocation struct {
	GUID     uint64
	Name     string
	Position [3]float32
}

type ClientUpdateBaseRespawnLocations struct {
	Locations []RespawnLocation
}

func (ClientUpdateBaseRespawnLocations) Name() string   { return "ClientUpdateBaseRespawnLocations" }
func (ClientUpdateBaseRespawnLocations) opcode() uint16 { return opClientUpdateBaseRespawnLocations }
func (p ClientUpdateBaseRespawnLocations) encode(w *protocol.Writer) {
	w.Uint32(uint32(len(p.Locations)))
	for _, l := range p.Locations {
		w.Uint64(l.GUID)
		w.String(l.Name)
		for _, c := range l.Position {
			w.Float32(c)
		}
	}
}

type ClientGameSettings struct {
	Data []byte
}

func (ClientGameSettings) Name() string                { return "ClientGameSettings" }
func (ClientGameSettings) opcode() uint16              { return opClientGameSettings }
func (p ClientGameSettings) encode(w *protocol.Writer) { w.Raw(p.Data) }

type VehicleBaseLoadVehicleDefinitionManager struct {
	VehicleDefinitions []byte
}

func (VehicleBaseLoadVehicleDefinitionManager) Name() string {
	return "VehicleBaseLoadVehicleDefinitionManager"
}
func (VehicleBaseLoadVehicleDefinitionManager) opcode() uint16 {
	return opVehicleBaseLoadVehicleDefinitionManager
}
func (p VehicleBaseLoadVehicleDefinitionManager) encode(w *protocol.Writer) {
	w.Raw(p.VehicleDefinitions)
}

type CommandBaseItemDefinitions struct {
	Data []byte
}

func (CommandBaseItemDefinitions) Name() string                { return "CommandBaseItemDefinitions" }
func (CommandBaseItemDefinitions) opcode() uint16              { return opCommandBaseItemDefinitions }
func (p CommandBaseItemDefinitions) encode(w *protocol.Writer) { w.Raw(p.Data) }

// ClientInitializationDetails has a single field whose meaning is unknown.
// Clients send the observed constant 7200 verbatim.
type ClientInitializationDetails struct {
	Unknown uint32
}

func (ClientInitializationDetails) Name() string                { return "ClientInitializationDetails" }
func (ClientInitializationDetails) opcode() uint16              { return opClientInitializationDetails }
func (p ClientInitializationDetails) encode(w *protocol.Writer) { w.Uint32(p.Unknown) }

type SetLocale struct {
	Locale string
}

func (SetLocale) Name() string                { return "SetLocale" }
func (SetLocale) opcode() uint16              { return opSetLocale }
func (p SetLocale) encode(w *protocol.Writer) { w.String(p.Locale) }

type GetContinentBattleInfo struct{}

func (GetContinentBattleInfo) Name() string            { return "GetContinentBattleInfo" }
func (GetContinentBattleInfo) opcode() uint16          { return opGetContinentBattleInfo }
func (GetContinentBattleInfo) encode(*protocol.Writer) {}

type GetRewardBuffInfo struct{}

func (GetRewardBuffInfo) Name() string            { return "GetRewardBuffInfo" }
func (GetRewardBuffInfo) opcode() uint16          { return opGetRewardBuffInfo }
func (GetRewardBuffInfo) encode(*protocol.Writer) {}

type ClientIsReady struct{}

func (ClientIsReady) Name() string            { return "ClientIsReady" }
func (ClientIsReady) opcode() uint16          { return opClientIsReady }
func (ClientIsReady) encode(*protocol.Writer) {}
