package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/1ureka/soegate/internal/dispatch"
	"github.com/1ureka/soegate/internal/dump"
	"github.com/1ureka/soegate/internal/event"
	"github.com/1ureka/soegate/internal/protocol"
	gwproto "github.com/1ureka/soegate/internal/protocol/gateway"
	"github.com/1ureka/soegate/internal/transport"
	"github.com/1ureka/soegate/internal/util"
)

// ClientEvent is delivered to tunnel client subscribers. Login sets
// LoggedIn; TunnelData sets Data and Channel.
type ClientEvent struct {
	Kind     event.Kind
	Err      error
	LoggedIn bool
	Data     []byte
	Channel  uint8
}

// Client opens a gateway tunnel over a transport link.
type Client struct {
	link     transport.Link
	codec    gwproto.Codec
	table    *dispatch.Table[*Client]
	observer dump.Observer
	log      util.Logger
	events   event.Bus[ClientEvent]

	mu        sync.Mutex
	connected bool
	loggedIn  bool
	forced    bool
	routable  [gwproto.MaxChannel + 1]bool
}

type ClientOption func(*Client)

func WithClientObserver(o dump.Observer) ClientOption {
	return func(c *Client) { c.observer = dump.OrNop(o) }
}

func NewClient(link transport.Link, opts ...ClientOption) *Client {
	c := &Client{
		link:     link,
		codec:    gwproto.NewCodec(),
		table:    dispatch.New[*Client](),
		observer: dump.Nop{},
		log:      util.NewLogger("GatewayClient"),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.table.Register("LoginReply", (*Client).handleLoginReply)
	c.table.Register("ChannelIsRoutable", (*Client).handleChannelIsRoutable)
	c.table.Register("ConnectionIsNotRoutable", (*Client).handleConnectionIsNotRoutable)
	c.table.Register("TunnelPacketToExternalConnection", (*Client).handleTunnelPacket)
	c.table.Register("ForceDisconnect", (*Client).handleForceDisconnect)
	c.log.Debugf("Routing %v", c.table.Names())

	link.OnConnect(c.onConnect)
	link.OnDisconnect(c.onDisconnect)
	link.OnAppData(c.onAppData)
	return c
}

func (c *Client) On(kind event.Kind, fn func(ClientEvent)) { c.events.On(kind, fn) }

func (c *Client) Connect(ctx context.Context) error {
	c.log.Infof("Connecting to gateway")
	if err := c.link.Connect(ctx); err != nil {
		c.events.Emit(EventConnect, ClientEvent{Kind: EventConnect, Err: err})
		return err
	}
	return nil
}

func (c *Client) Disconnect() error { return c.link.Disconnect() }

// Login sends the gateway login for a character. The outcome arrives as
// EventLogin.
func (c *Client) Login(characterID uint64, ticket, clientProtocol, clientBuild string) error {
	c.mu.Lock()
	connected := c.connected
	c.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}
	c.log.Infof("Logging in character %d", characterID)
	return c.send(gwproto.LoginRequest{
		CharacterID:    characterID,
		Ticket:         ticket,
		ClientProtocol: clientProtocol,
		ClientBuild:    clientBuild,
	})
}

// SendTunnelData wraps data for the gateway with channel in the opcode's
// high bits. Channels need not be announced routable first.
func (c *Client) SendTunnelData(data []byte, channel uint8) error {
	c.mu.Lock()
	connected := c.connected
	c.mu.Unlock()
	if !connected {
		return ErrNotConnected
	}
	if err := c.send(gwproto.TunnelPacketFromExternalConnection{Flags: channel, TunnelData: data}); err != nil {
		return err
	}
	util.Stats.AddTunnelOut(len(data))
	return nil
}

// IsRoutable reports whether the gateway announced channel as routable.
func (c *Client) IsRoutable(channel uint8) bool {
	if channel > gwproto.MaxChannel {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.routable[channel]
}

func (c *Client) LoggedIn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loggedIn
}

func (c *Client) send(msg protocol.Message) error {
	data, err := c.codec.Pack(msg)
	if err != nil {
		c.log.Errorf("Could not pack %s data: %v", msg.Name(), err)
		return fmt.Errorf("gateway: %w", err)
	}
	c.observer.Packet("GatewayClient", dump.Out, msg)
	c.observer.Frame("GatewayClient", dump.Out, data)
	return c.link.SendAppData(data, true)
}

// ---------------------------------------------------------------------------
// Transport events
// ---------------------------------------------------------------------------

func (c *Client) onConnect() {
	c.mu.Lock()
	c.connected = true
	c.forced = false
	c.mu.Unlock()

	c.log.Infof("Connected to gateway")
	c.events.Emit(EventConnect, ClientEvent{Kind: EventConnect})
}

func (c *Client) onDisconnect(err error) {
	c.mu.Lock()
	c.connected = false
	c.loggedIn = false
	c.routable = [gwproto.MaxChannel + 1]bool{}
	if c.forced && err == nil {
		err = ErrForceDisconnect
	}
	c.forced = false
	c.mu.Unlock()

	c.log.Infof("Disconnected from gateway")
	c.events.Emit(EventDisconnect, ClientEvent{Kind: EventDisconnect, Err: err})
}

func (c *Client) onAppData(data []byte) {
	c.observer.Frame("GatewayClient", dump.In, data)
	msg, err := c.table.Handle(c, c.codec, data)
	if err != nil {
		util.Stats.AddDropped()
		c.log.Debugf("Failed parsing app data (%d bytes): %v", len(data), err)
		return
	}
	c.observer.Packet("GatewayClient", dump.In, msg)
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (c *Client) handleLoginReply(msg protocol.Message) {
	reply := msg.(gwproto.LoginReply)
	if reply.LoggedIn {
		c.link.SetEncryption(true)
	}
	c.mu.Lock()
	c.loggedIn = reply.LoggedIn
	c.mu.Unlock()

	if reply.LoggedIn {
		c.log.Infof("Gateway login accepted")
	} else {
		c.log.Warnf("Gateway login rejected")
	}
	c.events.Emit(EventLogin, ClientEvent{Kind: EventLogin, LoggedIn: reply.LoggedIn})
}

func (c *Client) handleChannelIsRoutable(msg protocol.Message) {
	p := msg.(gwproto.ChannelIsRoutable)
	c.mu.Lock()
	c.routable[p.Channel] = p.IsRoutable
	c.mu.Unlock()
	c.log.Debugf("Channel %d routable: %v", p.Channel, p.IsRoutable)
}

func (c *Client) handleConnectionIsNotRoutable(protocol.Message) {
	c.mu.Lock()
	c.routable = [gwproto.MaxChannel + 1]bool{}
	c.mu.Unlock()
	c.log.Warnf("Connection is not routable")
}

func (c *Client) handleTunnelPacket(msg protocol.Message) {
	p := msg.(gwproto.TunnelPacketToExternalConnection)
	util.Stats.AddTunnelIn(len(p.TunnelData))
	c.events.Emit(EventTunnelData, ClientEvent{Kind: EventTunnelData, Data: p.TunnelData, Channel: p.Channel})
}

func (c *Client) handleForceDisconnect(protocol.Message) {
	c.log.Warnf("Gateway forced disconnect")
	c.mu.Lock()
	c.forced = true
	c.mu.Unlock()
	if err := c.link.Disconnect(); err != nil {
		c.log.Debugf("Disconnect after ForceDisconnect: %v", err)
	}
}
