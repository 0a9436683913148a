// Package protocol defines the decoded packet contract shared by the gateway,
// login and zone codecs, plus the little-endian wire primitives they use.
package protocol

import "errors"

// Message is one decoded packet: a type name plus its typed field set.
// Names are bit-exact with the remote peer's packet catalog.
type Message interface {
	Name() string
}

// Codec turns messages into frames and back.
//
// Pack returns an error (never panics) for field values that cannot be
// encoded; callers must skip the send in that case. Parse returns an error
// for malformed or unrecognized byte structure; callers drop the frame.
type Codec interface {
	Pack(msg Message) ([]byte, error)
	Parse(data []byte) (Message, error)
}

// Codec errors.
var (
	ErrShortBuffer   = errors.New("short buffer")
	ErrUnknownPacket = errors.New("unknown packet")
	ErrInvalidField  = errors.New("invalid field")
)
