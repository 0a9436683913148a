// Package transport carries app-data frames over WebSocket with an
// ordered, per-connection RC4 encryption toggle.
//
// Each WebSocket binary message is one frame: a flags byte followed by the
// payload. Each direction keeps its own RC4 stream, advanced only by frames
// flagged as encrypted, so both ends stay in step without negotiation.
package transport

import (
	"crypto/rc4"
	"encoding/base64"
	"errors"
	"fmt"
)

// Frame flags.
const (
	FlagEncrypted byte = 0x01
	FlagReliable  byte = 0x02
)

// Transport errors.
var (
	ErrClosed       = errors.New("transport: connection closed")
	ErrNotConnected = errors.New("transport: not connected")
	ErrEmptyFrame   = errors.New("transport: empty frame")
	ErrNoCipher     = errors.New("transport: encrypted frame before key exchange")
)

// ParseKey decodes a base64 RC4 key.
func ParseKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("transport: decode key: %w", err)
	}
	if len(key) < 1 || len(key) > 256 {
		return nil, fmt.Errorf("transport: key length %d out of range [1,256]", len(key))
	}
	return key, nil
}

// sealFrame builds a frame, encrypting payload with c when c is non-nil.
func sealFrame(c *rc4.Cipher, payload []byte, reliable bool) []byte {
	frame := make([]byte, 1+len(payload))
	if reliable {
		frame[0] |= FlagReliable
	}
	if c != nil {
		frame[0] |= FlagEncrypted
		c.XORKeyStream(frame[1:], payload)
	} else {
		copy(frame[1:], payload)
	}
	return frame
}

// openFrame returns the plaintext payload of frame, decrypting with c if the
// frame is flagged encrypted.
func openFrame(c *rc4.Cipher, frame []byte) ([]byte, error) {
	if len(frame) == 0 {
		return nil, ErrEmptyFrame
	}
	payload := make([]byte, len(frame)-1)
	if frame[0]&FlagEncrypted == 0 {
		copy(payload, frame[1:])
		return payload, nil
	}
	if c == nil {
		return nil, ErrNoCipher
	}
	c.XORKeyStream(payload, frame[1:])
	return payload, nil
}
