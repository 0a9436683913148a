package zone

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1ureka/soegate/internal/event"
	"github.com/1ureka/soegate/internal/gateway"
	"github.com/1ureka/soegate/internal/protocol"
	gwproto "github.com/1ureka/soegate/internal/protocol/gateway"
	zoneproto "github.com/1ureka/soegate/internal/protocol/zone"
	"github.com/1ureka/soegate/internal/transport/transporttest"
	"github.com/1ureka/soegate/internal/util"
)

func init() {
	util.SetLogOutput(io.Discard)
}

var (
	gwCodec   = gwproto.NewCodec()
	zoneCodec = zoneproto.NewCodec()
)

var creds = Credentials{CharacterID: 42, Ticket: "T", ClientProtocol: "ClientProtocol_1080", ClientBuild: "0.1"}

type sentFrame struct {
	msg     protocol.Message
	channel uint8
}

// tunneled decodes frames sent by the gateway client back into zone
// packets and their channel.
func tunneled(t *testing.T, link *transporttest.Link) []sentFrame {
	t.Helper()
	var out []sentFrame
	for _, op := range link.Sent() {
		gw, err := gwCodec.Parse(op.Data)
		require.NoError(t, err)
		pkt, ok := gw.(gwproto.TunnelPacketFromExternalConnection)
		require.True(t, ok, "unexpected %s", gw.Name())
		msg, err := zoneCodec.Parse(pkt.TunnelData)
		require.NoError(t, err)
		out = append(out, sentFrame{msg: msg, channel: pkt.Flags})
	}
	return out
}

func deliverZone(t *testing.T, link *transporttest.Link, msg protocol.Message) {
	t.Helper()
	inner, err := zoneCodec.Pack(msg)
	require.NoError(t, err)
	outer, err := gwCodec.Pack(gwproto.TunnelPacketToExternalConnection{Channel: 0, TunnelData: inner})
	require.NoError(t, err)
	link.Deliver(outer)
}

func setup(t *testing.T, kinds ...event.Kind) (*Client, *transporttest.Link, *[]Event) {
	t.Helper()
	link := transporttest.NewLink()
	c := New(gateway.NewClient(link), creds)
	var events []Event
	for _, k := range kinds {
		c.On(k, func(ev Event) { events = append(events, ev) })
	}
	return c, link, &events
}

func TestConnectSendsZoneLogin(t *testing.T) {
	c, link, events := setup(t, EventConnect)

	require.NoError(t, c.Connect(context.Background()))

	require.Len(t, *events, 1)
	sent := link.Sent()
	require.Len(t, sent, 1)
	msg, err := gwCodec.Parse(sent[0].Data)
	require.NoError(t, err)
	assert.Equal(t, gwproto.LoginRequest{
		CharacterID:    42,
		Ticket:         "T",
		ClientProtocol: "ClientProtocol_1080",
		ClientBuild:    "0.1",
	}, msg)
}

func TestSendSelfTriggersReadySequence(t *testing.T) {
	c, link, events := setup(t, EventSelf)
	require.NoError(t, c.Connect(context.Background()))
	link.Reset()

	deliverZone(t, link, zoneproto.SendSelfToClient{Self: []byte{1, 2, 3}})

	require.Len(t, *events, 1)
	assert.Equal(t, zoneproto.SendSelfToClient{Self: []byte{1, 2, 3}}, (*events)[0].Payload)

	assert.Equal(t, []sentFrame{
		{zoneproto.ClientInitializationDetails{Unknown: 7200}, 1},
		{zoneproto.SetLocale{Locale: "en_US"}, 1},
		{zoneproto.GetContinentBattleInfo{}, 1},
		{zoneproto.GetRewardBuffInfo{}, 0},
		{zoneproto.ClientIsReady{}, 0},
	}, tunneled(t, link))
}

func TestSelfEventPrecedesBurst(t *testing.T) {
	c, link, _ := setup(t)
	var sentAtSelf int
	c.On(EventSelf, func(Event) { sentAtSelf = len(link.Sent()) })
	require.NoError(t, c.Connect(context.Background()))
	link.Reset()

	deliverZone(t, link, zoneproto.SendSelfToClient{Self: []byte{1}})

	assert.Zero(t, sentAtSelf)
	assert.Len(t, link.Sent(), 5)
}

func TestPassThroughEvents(t *testing.T) {
	kinds := []event.Kind{
		EventInitializationParameters,
		EventReferenceDataWeaponDefinitions,
		EventSendZoneDetails,
		EventClientUpdateBaseZonePopulation,
		EventClientUpdateBaseRespawnLocations,
		EventClientGameSettings,
		EventVehicleBaseLoadVehicleDefinitionManager,
		EventCommandBaseItemDefinitions,
	}
	c, link, events := setup(t, kinds...)
	require.NoError(t, c.Connect(context.Background()))
	link.Reset()

	locations := []zoneproto.RespawnLocation{{GUID: 7, Name: "Warpgate", Position: [3]float32{1, 2, 3}}}
	deliverZone(t, link, zoneproto.InitializationParameters{Environment: "LIVE"})
	deliverZone(t, link, zoneproto.ReferenceDataWeaponDefinitions{Data: []byte{1}})
	deliverZone(t, link, zoneproto.SendZoneDetails{ZoneName: "Indar", ZoneType: 2, Data: []byte{2}})
	deliverZone(t, link, zoneproto.ClientUpdateBaseZonePopulation{Populations: []uint8{10, 20}})
	deliverZone(t, link, zoneproto.ClientUpdateBaseRespawnLocations{Locations: locations})
	deliverZone(t, link, zoneproto.ClientGameSettings{Data: []byte{3}})
	deliverZone(t, link, zoneproto.VehicleBaseLoadVehicleDefinitionManager{VehicleDefinitions: []byte{4}})
	deliverZone(t, link, zoneproto.CommandBaseItemDefinitions{Data: []byte{5}})

	require.Len(t, *events, len(kinds))
	for i, k := range kinds {
		assert.Equal(t, k, (*events)[i].Kind)
	}
	assert.Equal(t, zoneproto.InitializationParameters{Environment: "LIVE"}, (*events)[0].Payload)
	assert.Equal(t, []uint8{10, 20}, (*events)[3].Payload)
	assert.Equal(t, locations, (*events)[4].Payload)
	assert.Empty(t, link.Sent(), "pass-through packets trigger no sends")
}

func TestMalformedTunnelDataDropped(t *testing.T) {
	c, link, events := setup(t, EventSelf, EventInitializationParameters)
	require.NoError(t, c.Connect(context.Background()))
	link.Reset()

	outer, err := gwCodec.Pack(gwproto.TunnelPacketToExternalConnection{TunnelData: []byte{0x04}})
	require.NoError(t, err)
	link.Deliver(outer)
	outer, err = gwCodec.Pack(gwproto.TunnelPacketToExternalConnection{TunnelData: []byte{0xff, 0x7f, 1}})
	require.NoError(t, err)
	link.Deliver(outer)

	assert.Empty(t, *events)
	assert.Empty(t, link.Sent())
}

func TestGatewayLoginOutcome(t *testing.T) {
	c, link, events := setup(t, EventLogin)
	require.NoError(t, c.Connect(context.Background()))

	reply, err := gwCodec.Pack(gwproto.LoginReply{LoggedIn: false})
	require.NoError(t, err)
	link.Deliver(reply)
	reply, err = gwCodec.Pack(gwproto.LoginReply{LoggedIn: true})
	require.NoError(t, err)
	link.Deliver(reply)

	require.Len(t, *events, 2)
	assert.Error(t, (*events)[0].Err)
	assert.NoError(t, (*events)[1].Err)
	assert.True(t, link.Encrypted())
}

func TestDisconnectForwarded(t *testing.T) {
	c, link, events := setup(t, EventDisconnect)
	require.NoError(t, c.Connect(context.Background()))

	link.Drop(nil)
	require.Len(t, *events, 1)
	assert.NoError(t, (*events)[0].Err)
}
