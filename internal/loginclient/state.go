package loginclient

import (
	"time"

	"github.com/google/uuid"

	"github.com/1ureka/soegate/internal/event"
)

// State is the client-observable stage of a login session.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateAwaitingLoginReply
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateAwaitingLoginReply:
		return "AwaitingLoginReply"
	case StateAuthenticated:
		return "Authenticated"
	}
	return "Unknown"
}

// Session is one logical account session, from login request until
// disconnect.
type Session struct {
	ID          uuid.UUID
	Ticket      string
	Fingerprint string
	Started     time.Time
}

// Event kinds.
const (
	EventConnect         event.Kind = "connect"
	EventDisconnect      event.Kind = "disconnect"
	EventLogin           event.Kind = "login"
	EventServerList      event.Kind = "serverlist"
	EventServerUpdate    event.Kind = "serverupdate"
	EventCharacterInfo   event.Kind = "characterinfo"
	EventCharacterLogin  event.Kind = "characterlogin"
	EventCharacterCreate event.Kind = "charactercreate"
	EventCharacterDelete event.Kind = "characterdelete"
	EventTunnelApp       event.Kind = "tunnelapp"
)

// Event is delivered to subscribers. On failure Err is set and Payload is
// nil. Payload types per kind:
//
//	login           LoginResult
//	serverlist      []login.Server
//	serverupdate    login.Server
//	characterinfo   login.CharacterSelectInfoReply
//	characterlogin  login.CharacterLoginReply
//	charactercreate CharacterCreated
//	characterdelete CharacterDeleted
//	tunnelapp       []byte
type Event struct {
	Kind    event.Kind
	Err     error
	Payload any
}

type LoginResult struct {
	LoggedIn   bool
	IsMember   bool
	IsInternal bool
	Namespace  string
}

// CharacterCreated and CharacterDeleted are intentionally empty: the
// success replies carry nothing beyond the status.
type CharacterCreated struct{}

type CharacterDeleted struct{}
