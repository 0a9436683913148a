// Package loginclient drives the client side of the login tier: session
// ticket exchange, the login handshake, and server/character operations.
package loginclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/1ureka/soegate/internal/dispatch"
	"github.com/1ureka/soegate/internal/dump"
	"github.com/1ureka/soegate/internal/event"
	"github.com/1ureka/soegate/internal/protocol"
	"github.com/1ureka/soegate/internal/protocol/login"
	"github.com/1ureka/soegate/internal/transport"
	"github.com/1ureka/soegate/internal/util"
)

const component = "LoginClient"

// TicketFetcher obtains a session ticket for a launcher token.
type TicketFetcher interface {
	Fetch(ctx context.Context, token string) (string, error)
}

// Client owns one login connection. Inbound frames are handled on the
// transport's event goroutine; request methods may be called from any
// goroutine.
type Client struct {
	link     transport.Link
	codec    login.Codec
	table    *dispatch.Table[*Client]
	fetcher  TicketFetcher
	observer dump.Observer
	log      util.Logger
	events   event.Bus[Event]

	mu      sync.Mutex
	state   State
	session *Session
	forced  bool

	// loggingIn holds the Connected state while a ticket is fetched.
	loggingIn bool

	// epoch counts disconnects so a login can tell its link went away.
	epoch uint64
}

type Option func(*Client)

// WithObserver dumps every frame and decoded packet.
func WithObserver(o dump.Observer) Option {
	return func(c *Client) { c.observer = dump.OrNop(o) }
}

// New wires a client to link. fetcher is used when Login is called without
// a ticket.
func New(link transport.Link, fetcher TicketFetcher, opts ...Option) *Client {
	c := &Client{
		link:     link,
		codec:    login.NewCodec(),
		table:    dispatch.New[*Client](),
		fetcher:  fetcher,
		observer: dump.Nop{},
		log:      util.NewLogger(component),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.table.Register("LoginReply", (*Client).handleLoginReply)
	c.table.Register("ForceDisconnect", (*Client).handleForceDisconnect)
	c.table.Register("CharacterLoginReply", (*Client).handleCharacterLoginReply)
	c.table.Register("CharacterCreateReply", (*Client).handleCharacterCreateReply)
	c.table.Register("CharacterDeleteReply", (*Client).handleCharacterDeleteReply)
	c.table.Register("CharacterSelectInfoReply", (*Client).handleCharacterSelectInfoReply)
	c.table.Register("ServerListReply", (*Client).handleServerListReply)
	c.table.Register("ServerUpdate", (*Client).handleServerUpdate)
	c.table.Register("TunnelAppPacketServerToClient", (*Client).handleTunnelApp)
	c.log.Debugf("Routing %v", c.table.Names())

	link.OnConnect(c.onConnect)
	link.OnDisconnect(c.onDisconnect)
	link.OnAppData(c.onAppData)
	return c
}

// On subscribes fn to events of kind.
func (c *Client) On(kind event.Kind, fn func(Event)) { c.events.On(kind, fn) }

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns a copy of the current session, if any.
func (c *Client) Session() (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return Session{}, false
	}
	return *c.session, true
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// Connect opens the transport. Completion is also reported as EventConnect.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return fmt.Errorf("loginclient: connect in state %s", c.state)
	}
	c.state = StateConnecting
	c.forced = false
	c.mu.Unlock()

	c.log.Infof("Connecting to login server")
	if err := c.link.Connect(ctx); err != nil {
		c.setState(StateDisconnected)
		c.emit(EventConnect, err, nil)
		return err
	}
	return nil
}

// Disconnect closes the transport; EventDisconnect follows.
func (c *Client) Disconnect() error {
	return c.link.Disconnect()
}

func (c *Client) onConnect() {
	c.log.Infof("Connected to login server")
	c.setState(StateConnected)
	c.emit(EventConnect, nil, nil)
}

func (c *Client) onDisconnect(err error) {
	c.mu.Lock()
	c.state = StateDisconnected
	c.session = nil
	c.epoch++
	c.loggingIn = false
	if c.forced && err == nil {
		err = ErrForceDisconnect
	}
	c.forced = false
	c.mu.Unlock()

	c.log.Infof("Disconnected")
	c.emit(EventDisconnect, err, nil)
}

func (c *Client) onAppData(data []byte) {
	c.observer.Frame(component, dump.In, data)
	msg, err := c.table.Handle(c, c.codec, data)
	if err != nil {
		util.Stats.AddDropped()
		c.log.Debugf("Failed parsing app data (%d bytes): %v", len(data), err)
		return
	}
	c.observer.Packet(component, dump.In, msg)
}

// ---------------------------------------------------------------------------
// Login
// ---------------------------------------------------------------------------

// Login authenticates the connection. With an empty ticket it first
// exchanges token for one; that call is bounded by ctx and the fetcher's
// timeout. On return the LoginRequest has been queued and the client waits
// for the reply, which arrives as EventLogin. Failures before the request is
// sent are returned and emitted as EventLogin.
func (c *Client) Login(ctx context.Context, token, fingerprint, ticket string) error {
	c.mu.Lock()
	switch {
	case c.loggingIn || c.state == StateAwaitingLoginReply:
		c.mu.Unlock()
		return ErrBusy
	case c.state != StateConnected:
		c.mu.Unlock()
		return ErrNotConnected
	}
	c.loggingIn = true
	epoch := c.epoch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		if c.epoch == epoch {
			c.loggingIn = false
		}
		c.mu.Unlock()
	}()

	if ticket == "" {
		if c.fetcher == nil {
			err := &Error{Op: "login", Message: "no session ticket and no ticket fetcher"}
			c.emit(EventLogin, err, nil)
			return err
		}
		c.log.Infof("Fetching play session")
		var err error
		ticket, err = c.fetcher.Fetch(ctx, token)
		if err != nil {
			c.log.Warnf("Play session request failed: %v", err)
			c.emit(EventLogin, err, nil)
			return err
		}
		c.log.Infof("Received play session (%s)", ticket)
	}

	data, err := c.codec.Pack(login.LoginRequest{SessionID: ticket, SystemFingerPrint: fingerprint})
	if err != nil {
		c.log.Errorf("Could not pack login request: %v", err)
		c.emit(EventLogin, err, nil)
		return err
	}

	c.mu.Lock()
	if c.epoch != epoch || c.state != StateConnected {
		c.mu.Unlock()
		c.log.Warnf("Connection lost before login request was sent")
		c.emit(EventLogin, ErrNotConnected, nil)
		return ErrNotConnected
	}
	c.state = StateAwaitingLoginReply
	c.session = &Session{
		ID:          uuid.New(),
		Ticket:      ticket,
		Fingerprint: fingerprint,
		Started:     time.Now(),
	}
	c.mu.Unlock()

	c.log.Infof("Sending login request")
	c.observer.Frame(component, dump.Out, data)
	if err := c.link.SendAppData(data, true); err != nil {
		c.mu.Lock()
		if c.state == StateAwaitingLoginReply {
			c.state = StateConnected
			c.session = nil
		}
		c.mu.Unlock()
		c.emit(EventLogin, err, nil)
		return err
	}
	return nil
}

// Logout ends the account session but keeps the transport open.
func (c *Client) Logout() error {
	if err := c.request("logout", login.Logout{}); err != nil {
		return err
	}
	c.mu.Lock()
	c.state = StateConnected
	c.session = nil
	c.mu.Unlock()
	return nil
}

func (c *Client) handleLoginReply(msg protocol.Message) {
	reply := msg.(login.LoginReply)

	c.mu.Lock()
	if c.state != StateAwaitingLoginReply {
		st := c.state
		c.mu.Unlock()
		c.log.Debugf("Ignoring LoginReply in state %s", st)
		return
	}
	if reply.Status != login.StatusSuccess {
		c.state = StateConnected
		c.session = nil
		c.mu.Unlock()
		c.log.Warnf("Login failed (status %d)", reply.Status)
		c.emit(EventLogin, &Error{Op: "login", Message: "Login failed", Status: reply.Status}, nil)
		return
	}
	c.state = StateAuthenticated
	c.mu.Unlock()

	c.log.Infof("Logged in")
	c.emit(EventLogin, nil, LoginResult{
		LoggedIn:   reply.LoggedIn,
		IsMember:   reply.IsMember,
		IsInternal: reply.IsInternal,
		Namespace:  reply.Namespace,
	})
}

func (c *Client) handleForceDisconnect(msg protocol.Message) {
	reason := msg.(login.ForceDisconnect).Reason
	c.log.Warnf("Server forced disconnect (reason %d)", reason)

	c.mu.Lock()
	c.forced = true
	c.session = nil
	c.mu.Unlock()

	if err := c.link.Disconnect(); err != nil {
		c.log.Debugf("Disconnect after ForceDisconnect: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Account and character requests
// ---------------------------------------------------------------------------

func (c *Client) RequestServerList() error {
	c.log.Infof("Requesting server list")
	return c.request("serverlist", login.ServerListRequest{})
}

func (c *Client) RequestCharacterInfo() error {
	c.log.Infof("Requesting character info")
	return c.request("characterinfo", login.CharacterSelectInfoRequest{})
}

// RequestCharacterLogin asks to enter the world with a character. Invalid
// ids or locale fail encoding and nothing is sent.
func (c *Client) RequestCharacterLogin(characterID uint64, serverID uint32, locale string) error {
	c.log.Infof("Requesting character login")
	return c.request("characterlogin", login.CharacterLoginRequest{
		CharacterID: characterID,
		ServerID:    serverID,
		Locale:      locale,
	})
}

func (c *Client) RequestCharacterCreate(req login.CharacterCreateRequest) error {
	c.log.Infof("Requesting character create")
	return c.request("charactercreate", req)
}

func (c *Client) RequestCharacterDelete(characterID uint64) error {
	c.log.Infof("Requesting character delete")
	return c.request("characterdelete", login.CharacterDeleteRequest{CharacterID: characterID})
}

// request packs and sends msg on an authenticated connection. An encoding
// failure is logged and returned; the frame is never sent.
func (c *Client) request(op string, msg protocol.Message) error {
	if c.State() != StateAuthenticated {
		return ErrNotAuthenticated
	}
	data, err := c.codec.Pack(msg)
	if err != nil {
		c.log.Errorf("Could not pack %s data: %v", msg.Name(), err)
		return fmt.Errorf("%s: %w", op, err)
	}
	c.observer.Frame(component, dump.Out, data)
	return c.link.SendAppData(data, true)
}

func (c *Client) handleCharacterLoginReply(msg protocol.Message) {
	reply := msg.(login.CharacterLoginReply)
	if reply.Status != login.StatusSuccess {
		c.fail(EventCharacterLogin, "characterlogin", "Character login failed", reply.Status)
		return
	}
	c.emit(EventCharacterLogin, nil, reply)
}

func (c *Client) handleCharacterCreateReply(msg protocol.Message) {
	reply := msg.(login.CharacterCreateReply)
	if reply.Status != login.StatusSuccess {
		c.fail(EventCharacterCreate, "charactercreate", "Character create failed", reply.Status)
		return
	}
	c.emit(EventCharacterCreate, nil, CharacterCreated{})
}

func (c *Client) handleCharacterDeleteReply(msg protocol.Message) {
	reply := msg.(login.CharacterDeleteReply)
	if reply.Status != login.StatusSuccess {
		c.fail(EventCharacterDelete, "characterdelete", "Character delete failed", reply.Status)
		return
	}
	c.emit(EventCharacterDelete, nil, CharacterDeleted{})
}

func (c *Client) handleCharacterSelectInfoReply(msg protocol.Message) {
	reply := msg.(login.CharacterSelectInfoReply)
	if reply.Status != login.StatusSuccess {
		c.fail(EventCharacterInfo, "characterinfo", "Character info failed", reply.Status)
		return
	}
	c.emit(EventCharacterInfo, nil, reply)
}

// ServerListReply has no status field.
func (c *Client) handleServerListReply(msg protocol.Message) {
	c.emit(EventServerList, nil, msg.(login.ServerListReply).Servers)
}

func (c *Client) handleServerUpdate(msg protocol.Message) {
	update := msg.(login.ServerUpdate)
	if update.Status != login.StatusSuccess {
		c.fail(EventServerUpdate, "serverupdate", "Server update failed", update.Status)
		return
	}
	c.emit(EventServerUpdate, nil, update.Server)
}

func (c *Client) handleTunnelApp(msg protocol.Message) {
	c.emit(EventTunnelApp, nil, msg.(login.TunnelAppPacketServerToClient).Data)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (c *Client) fail(kind event.Kind, op, message string, status uint32) {
	c.log.Warnf("%s (status %d)", message, status)
	c.emit(kind, &Error{Op: op, Message: message, Status: status}, nil)
}

func (c *Client) emit(kind event.Kind, err error, payload any) {
	c.events.Emit(kind, Event{Kind: kind, Err: err, Payload: payload})
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
