// Package login implements the login-tier protocol codec: one opcode byte
// followed by little-endian fields.
package login

import (
	"fmt"
	"regexp"

	"github.com/1ureka/soegate/internal/protocol"
)

const (
	opLoginRequest                  uint8 = 0x01
	opLoginReply                    uint8 = 0x02
	opLogout                        uint8 = 0x03
	opForceDisconnect               uint8 = 0x04
	opCharacterCreateRequest        uint8 = 0x05
	opCharacterCreateReply          uint8 = 0x06
	opCharacterLoginRequest         uint8 = 0x07
	opCharacterLoginReply           uint8 = 0x08
	opCharacterDeleteRequest        uint8 = 0x09
	opCharacterDeleteReply          uint8 = 0x0a
	opCharacterSelectInfoRequest    uint8 = 0x0b
	opCharacterSelectInfoReply      uint8 = 0x0c
	opServerListRequest             uint8 = 0x0d
	opServerListReply               uint8 = 0x0e
	opServerUpdate                  uint8 = 0x0f
	opTunnelAppPacketClientToServer uint8 = 0x10
	opTunnelAppPacketServerToClient uint8 = 0x11
)

// StatusSuccess is the only reply status treated as success.
const StatusSuccess uint32 = 1

var localePattern = regexp.MustCompile(`^[a-z]{2}_[A-Z]{2}$`)

type packet interface {
	protocol.Message
	opcode() uint8
	encode(w *protocol.Writer)
}

type LoginRequest struct {
	SessionID         string
	SystemFingerPrint string
}

func (LoginRequest) Name() string  { return "LoginRequest" }
func (LoginRequest) opcode() uint8 { return opLoginRequest }
func (p LoginRequest) encode(w *protocol.Writer) {
	w.String(p.SessionID)
	w.String(p.SystemFingerPrint)
}

type LoginReply struct {
	LoggedIn   bool
	Status     uint32
	IsMember   bool
	IsInternal bool
	Namespace  string
}

func (LoginReply) Name() string  { return "LoginReply" }
func (LoginReply) opcode() uint8 { return opLoginReply }
func (p LoginReply) encode(w *protocol.Writer) {
	w.Bool(p.LoggedIn)
	w.Uint32(p.Status)
	w.Bool(p.IsMember)
	w.Bool(p.IsInternal)
	w.String(p.Namespace)
}

type Logout struct{}

func (Logout) Name() string              { return "Logout" }
func (Logout) opcode() uint8             { return opLogout }
func (Logout) encode(w *protocol.Writer) {}

type ForceDisconnect struct {
	Reason uint32
}

func (ForceDisconnect) Name() string                { return "ForceDisconnect" }
func (ForceDisconnect) opcode() uint8               { return opForceDisconnect }
func (p ForceDisconnect) encode(w *protocol.Writer) { w.Uint32(p.Reason) }

type CharacterCreateRequest struct {
	ServerID      uint32
	CharacterName string
	Locale        string
	Faction       uint8
	Gender        uint8
}

func (CharacterCreateRequest) Name() string  { return "CharacterCreateRequest" }
func (CharacterCreateRequest) opcode() uint8 { return opCharacterCreateRequest }
func (p CharacterCreateRequest) encode(w *protocol.Writer) {
	if p.ServerID == 0 {
		w.Fail(fmt.Errorf("%w: server id must be non-zero", protocol.ErrInvalidField))
	}
	if p.CharacterName == "" {
		w.Fail(fmt.Errorf("%w: empty character name", protocol.ErrInvalidField))
	}
	checkLocale(w, p.Locale)
	w.Uint32(p.ServerID)
	w.String(p.CharacterName)
	w.String(p.Locale)
	w.Uint8(p.Faction)
	w.Uint8(p.Gender)
}

// CharacterCreateReply carries only a status; a successful create has no
// further payload.
type CharacterCreateReply struct {
	Status uint32
}

func (CharacterCreateReply) Name() string                { return "CharacterCreateReply" }
func (CharacterCreateReply) opcode() uint8               { return opCharacterCreateReply }
func (p CharacterCreateReply) encode(w *protocol.Writer) { w.Uint32(p.Status) }

type CharacterLoginRequest struct {
	CharacterID uint64
	ServerID    uint32
	Locale      string
}

func (CharacterLoginRequest) Name() string  { return "CharacterLoginRequest" }
func (CharacterLoginRequest) opcode() uint8 { return opCharacterLoginRequest }
func (p CharacterLoginRequest) encode(w *protocol.Writer) {
	if p.CharacterID == 0 {
		w.Fail(fmt.Errorf("%w: character id must be non-zero", protocol.ErrInvalidField))
	}
	if p.ServerID == 0 {
		w.Fail(fmt.Errorf("%w: server id must be non-zero", protocol.ErrInvalidField))
	}
	checkLocale(w, p.Locale)
	w.Uint64(p.CharacterID)
	w.Uint32(p.ServerID)
	w.String(p.Locale)
}

// CharacterLoginReply hands the client off to a zone: ServerAddress is the
// gateway to dial and ServerTicket the zone login ticket.
type CharacterLoginReply struct {
	CharacterID   uint64
	ServerID      uint32
	Status        uint32
	ServerAddress string
	ServerTicket  string
	EncryptionKey []byte
	GUID          uint64
}

func (CharacterLoginReply) Name() string  { return "CharacterLoginReply" }
func (CharacterLoginReply) opcode() uint8 { return opCharacterLoginReply }
func (p CharacterLoginReply) encode(w *protocol.Writer) {
	w.Uint64(p.CharacterID)
	w.Uint32(p.ServerID)
	w.Uint32(p.Status)
	w.String(p.ServerAddress)
	w.String(p.ServerTicket)
	w.Blob(p.EncryptionKey)
	w.Uint64(p.GUID)
}

type CharacterDeleteRequest struct {
	CharacterID uint64
}

func (CharacterDeleteRequest) Name() string  { return "CharacterDeleteRequest" }
func (CharacterDeleteRequest) opcode() uint8 { return opCharacterDeleteRequest }
func (p CharacterDeleteRequest) encode(w *protocol.Writer) {
	if p.CharacterID == 0 {
		w.Fail(fmt.Errorf("%w: character id must be non-zero", protocol.ErrInvalidField))
	}
	w.Uint64(p.CharacterID)
}

type CharacterDeleteReply struct {
	Status uint32
}

func (CharacterDeleteReply) Name() string                { return "CharacterDeleteReply" }
func (CharacterDeleteReply) opcode() uint8               { return opCharacterDeleteReply }
func (p CharacterDeleteReply) encode(w *protocol.Writer) { w.Uint32(p.Status) }

type CharacterSelectInfoRequest struct{}

func (CharacterSelectInfoRequest) Name() string              { return "CharacterSelectInfoRequest" }
func (CharacterSelectInfoRequest) opcode() uint8             { return opCharacterSelectInfoRequest }
func (CharacterSelectInfoRequest) encode(w *protocol.Writer) {}

type Character struct {
	ID        uint64
	ServerID  uint32
	Name      string
	LastLogin uint64
}

type CharacterSelectInfoReply struct {
	Status              uint32
	CanBypassServerLock bool
	Characters          []Character
}

func (CharacterSelectInfoReply) Name() string  { return "CharacterSelectInfoReply" }
func (CharacterSelectInfoReply) opcode() uint8 { return opCharacterSelectInfoReply }
func (p CharacterSelectInfoReply) encode(w *protocol.Writer) {
	w.Uint32(p.Status)
	w.Bool(p.CanBypassServerLock)
	w.Uint32(uint32(len(p.Characters)))
	for _, c := range p.Characters {
		w.Uint64(c.ID)
		w.Uint32(c.ServerID)
		w.String(c.Name)
		w.Uint64(c.LastLogin)
	}
}

type ServerListRequest struct{}

func (ServerListRequest) Name() string              { return "ServerListRequest" }
func (ServerListRequest) opcode() uint8             { return opServerListRequest }
func (ServerListRequest) encode(w *protocol.Writer) {}

type Server struct {
	ID              uint32
	State           uint32
	Locked          bool
	Name            string
	Description     string
	PopulationLevel uint32
	AllowedAccess   bool
}

func (s Server) encode(w *protocol.Writer) {
	w.Uint32(s.ID)
	w.Uint32(s.State)
	w.Bool(s.Locked)
	w.String(s.Name)
	w.String(s.Description)
	w.Uint32(s.PopulationLevel)
	w.Bool(s.AllowedAccess)
}

func readServer(r *protocol.Reader) Server {
	return Server{
		ID:              r.Uint32(),
		State:           r.Uint32(),
		Locked:          r.Bool(),
		Name:            r.String(),
		Description:     r.String(),
		PopulationLevel: r.Uint32(),
		AllowedAccess:   r.Bool(),
	}
}

type ServerListReply struct {
	Servers []Server
}

func (ServerListReply) Name() string  { return "ServerListReply" }
func (ServerListReply) opcode() uint8 { return opServerListReply }
func (p ServerListReply) encode(w *protocol.Writer) {
	w.Uint32(uint32(len(p.Servers)))
	for _, s := range p.Servers {
		s.encode(w)
	}
}

type ServerUpdate struct {
	Status uint32
	Server Server
}

func (ServerUpdate) Name() string  { return "ServerUpdate" }
func (ServerUpdate) opcode() uint8 { return opServerUpdate }
func (p ServerUpdate) encode(w *protocol.Writer) {
	w.Uint32(p.Status)
	p.Server.encode(w)
}

type TunnelAppPacketClientToServer struct {
	Data []byte
}

func (TunnelAppPacketClientToServer) Name() string                { return "TunnelAppPacketClientToServer" }
func (TunnelAppPacketClientToServer) opcode() uint8               { return opTunnelAppPacketClientToServer }
func (p TunnelAppPacketClientToServer) encode(w *protocol.Writer) { w.Raw(p.Data) }

type TunnelAppPacketServerToClient struct {
	Data []byte
}

func (TunnelAppPacketServerToClient) Name() string                { return "TunnelAppPacketServerToClient" }
func (TunnelAppPacketServerToClient) opcode() uint8               { return opTunnelAppPacketServerToClient }
func (p TunnelAppPacketServerToClient) encode(w *protocol.Writer) { w.Raw(p.Data) }

func checkLocale(w *protocol.Writer, locale string) {
	if !localePattern.MatchString(locale) {
		w.Fail(fmt.Errorf("%w: malformed locale %q", protocol.ErrInvalidField, locale))
	}
}
