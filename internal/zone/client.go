// Package zone drives the client side of the zone bootstrap: the zone
// login through the gateway tunnel and the fixed burst of requests sent
// once the world hands the player entity to the client.
package zone

import (
	"context"
	"fmt"

	"github.com/1ureka/soegate/internal/dispatch"
	"github.com/1ureka/soegate/internal/dump"
	"github.com/1ureka/soegate/internal/event"
	"github.com/1ureka/soegate/internal/gateway"
	"github.com/1ureka/soegate/internal/protocol"
	zoneproto "github.com/1ureka/soegate/internal/protocol/zone"
	"github.com/1ureka/soegate/internal/util"
)

const (
	// initializationDetails is sent verbatim; its meaning is unknown.
	initializationDetails uint32 = 7200
	bootstrapLocale              = "en_US"

	channelDefault uint8 = 0
	channelPrimary uint8 = 1
)

// Tunnel is the gateway tunnel the sequencer rides on.
type Tunnel interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Login(characterID uint64, ticket, clientProtocol, clientBuild string) error
	SendTunnelData(data []byte, channel uint8) error
	On(kind event.Kind, fn func(gateway.ClientEvent))
}

var _ Tunnel = (*gateway.Client)(nil)

// Event kinds. Pass-through kinds are named after the packet.
const (
	EventConnect    event.Kind = "connect"
	EventDisconnect event.Kind = "disconnect"
	EventLogin      event.Kind = "login"
	EventSelf       event.Kind = "self"

	EventInitializationParameters                event.Kind = "InitializationParameters"
	EventReferenceDataWeaponDefinitions          event.Kind = "ReferenceDataWeaponDefinitions"
	EventSendZoneDetails                         event.Kind = "SendZoneDetails"
	EventClientUpdateBaseZonePopulation          event.Kind = "ClientUpdateBaseZonePopulation"
	EventClientUpdateBaseRespawnLocations        event.Kind = "ClientUpdateBaseRespawnLocations"
	EventClientGameSettings                      event.Kind = "ClientGameSettings"
	EventVehicleBaseLoadVehicleDefinitionManager event.Kind = "VehicleBaseLoadVehicleDefinitionManager"
	EventCommandBaseItemDefinitions              event.Kind = "CommandBaseItemDefinitions"
)

// Event is delivered to subscribers. Payload is the decoded packet for
// pass-through kinds and for EventSelf; for ClientUpdateBaseZonePopulation
// it is the populations slice and for ClientUpdateBaseRespawnLocations the
// locations slice.
type Event struct {
	Kind    event.Kind
	Err     error
	Payload any
}

// Credentials identify the character for the zone login.
type Credentials struct {
	CharacterID    uint64
	Ticket         string
	ClientProtocol string
	ClientBuild    string
}

// Client is the zone bootstrap sequencer.
type Client struct {
	tunnel   Tunnel
	creds    Credentials
	codec    zoneproto.Codec
	table    *dispatch.Table[*Client]
	observer dump.Observer
	log      util.Logger
	events   event.Bus[Event]
}

type Option func(*Client)

func WithObserver(o dump.Observer) Option {
	return func(c *Client) { c.observer = dump.OrNop(o) }
}

func New(tunnel Tunnel, creds Credentials, opts ...Option) *Client {
	c := &Client{
		tunnel:   tunnel,
		creds:    creds,
		codec:    zoneproto.NewCodec(),
		table:    dispatch.New[*Client](),
		observer: dump.Nop{},
		log:      util.NewLogger("ZoneClient"),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.table.Register("SendSelfToClient", (*Client).handleSendSelfToClient)
	c.table.Register("ClientUpdateBaseZonePopulation", func(c *Client, msg protocol.Message) {
		c.emit(EventClientUpdateBaseZonePopulation, msg.(zoneproto.ClientUpdateBaseZonePopulation).Populations)
	})
	c.table.Register("ClientUpdateBaseRespawnLocations", func(c *Client, msg protocol.Message) {
		c.emit(EventClientUpdateBaseRespawnLocations, msg.(zoneproto.ClientUpdateBaseRespawnLocations).Locations)
	})
	for _, kind := range []event.Kind{
		EventInitializationParameters,
		EventReferenceDataWeaponDefinitions,
		EventSendZoneDetails,
		EventClientGameSettings,
		EventVehicleBaseLoadVehicleDefinitionManager,
		EventCommandBaseItemDefinitions,
	} {
		c.table.Register(string(kind), (*Client).passThrough)
	}
	c.log.Debugf("Routing %v", c.table.Names())

	tunnel.On(gateway.EventConnect, c.onConnect)
	tunnel.On(gateway.EventDisconnect, c.onDisconnect)
	tunnel.On(gateway.EventLogin, c.onLogin)
	tunnel.On(gateway.EventTunnelData, c.onTunnelData)
	return c
}

func (c *Client) On(kind event.Kind, fn func(Event)) { c.events.On(kind, fn) }

func (c *Client) Connect(ctx context.Context) error { return c.tunnel.Connect(ctx) }

func (c *Client) Disconnect() error { return c.tunnel.Disconnect() }

// Send packs msg and sends it on channel.
func (c *Client) Send(msg protocol.Message, channel uint8) error {
	data, err := c.codec.Pack(msg)
	if err != nil {
		c.log.Errorf("Could not pack %s data: %v", msg.Name(), err)
		return fmt.Errorf("zone: %w", err)
	}
	c.observer.Packet("ZoneClient", dump.Out, msg)
	c.observer.Frame("ZoneClient", dump.Out, data)
	return c.tunnel.SendTunnelData(data, channel)
}

// ---------------------------------------------------------------------------
// Tunnel events
// ---------------------------------------------------------------------------

func (c *Client) onConnect(ev gateway.ClientEvent) {
	if ev.Err != nil {
		c.events.Emit(EventConnect, Event{Kind: EventConnect, Err: ev.Err})
		return
	}
	c.events.Emit(EventConnect, Event{Kind: EventConnect})

	c.log.Infof("Sending zone login for character %d", c.creds.CharacterID)
	err := c.tunnel.Login(c.creds.CharacterID, c.creds.Ticket, c.creds.ClientProtocol, c.creds.ClientBuild)
	if err != nil {
		c.log.Errorf("Zone login failed: %v", err)
		c.events.Emit(EventLogin, Event{Kind: EventLogin, Err: err})
	}
}

func (c *Client) onDisconnect(ev gateway.ClientEvent) {
	c.events.Emit(EventDisconnect, Event{Kind: EventDisconnect, Err: ev.Err})
}

func (c *Client) onLogin(ev gateway.ClientEvent) {
	if !ev.LoggedIn {
		c.events.Emit(EventLogin, Event{Kind: EventLogin, Err: fmt.Errorf("zone: gateway rejected login for character %d", c.creds.CharacterID)})
		return
	}
	c.events.Emit(EventLogin, Event{Kind: EventLogin, Payload: true})
}

func (c *Client) onTunnelData(ev gateway.ClientEvent) {
	c.observer.Frame("ZoneClient", dump.In, ev.Data)
	msg, err := c.table.Handle(c, c.codec, ev.Data)
	if err != nil {
		util.Stats.AddDropped()
		c.log.Debugf("Failed parsing tunnel data (%d bytes, channel %d): %v", len(ev.Data), ev.Channel, err)
		return
	}
	c.observer.Packet("ZoneClient", dump.In, msg)
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (c *Client) handleSendSelfToClient(msg protocol.Message) {
	c.log.Infof("Received self, sending client ready sequence")
	c.emit(EventSelf, msg)

	burst := []struct {
		msg     protocol.Message
		channel uint8
	}{
		{zoneproto.ClientInitializationDetails{Unknown: initializationDetails}, channelPrimary},
		{zoneproto.SetLocale{Locale: bootstrapLocale}, channelPrimary},
		{zoneproto.GetContinentBattleInfo{}, channelPrimary},
		{zoneproto.GetRewardBuffInfo{}, channelDefault},
		{zoneproto.ClientIsReady{}, channelDefault},
	}
	for _, b := range burst {
		if err := c.Send(b.msg, b.channel); err != nil {
			c.log.Warnf("Send %s: %v", b.msg.Name(), err)
			return
		}
	}
}

func (c *Client) passThrough(msg protocol.Message) {
	c.emit(event.Kind(msg.Name()), msg)
}

func (c *Client) emit(kind event.Kind, payload any) {
	c.events.Emit(kind, Event{Kind: kind, Payload: payload})
}
