package transport

import (
	"context"
	"crypto/rc4"
	"time"

	"github.com/gorilla/websocket"

	"github.com/1ureka/soegate/internal/util"
)

const sendBufferSize = 64 // outgoing op channel capacity

// op is one entry on a connection's ordered outbound queue: either a frame
// or an encryption toggle.
type op struct {
	data     []byte
	reliable bool

	toggle  bool
	encrypt bool
}

// sender is a goroutine-based frame writer that serializes all writes to a
// single WebSocket. Encryption toggles travel through the same queue as
// frames, so a toggle takes effect exactly between the frames queued before
// and after it.
type sender struct {
	inbox        chan op
	ws           *websocket.Conn
	cipher       *rc4.Cipher
	encrypt      bool
	writeTimeout time.Duration
}

// newSender creates a sender and starts the background loop. The loop exits
// when ctx is cancelled or a write fails; onFail is called in the latter case.
func newSender(ctx context.Context, ws *websocket.Conn, key []byte, writeTimeout time.Duration, onFail func(error)) (*sender, error) {
	c, err := rc4.NewCipher(key)
	if err != nil {
		return nil, err
	}
	s := &sender{
		inbox:        make(chan op, sendBufferSize),
		ws:           ws,
		cipher:       c,
		writeTimeout: writeTimeout,
	}
	go s.loop(ctx, onFail)
	return s, nil
}

// loop is the single-writer goroutine.
func (s *sender) loop(ctx context.Context, onFail func(error)) {
	for {
		select {
		case o := <-s.inbox:
			if o.toggle {
				s.encrypt = o.encrypt
				continue
			}

			var c *rc4.Cipher
			if s.encrypt {
				c = s.cipher
			}
			frame := sealFrame(c, o.data, o.reliable)

			if s.writeTimeout > 0 {
				s.ws.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			}
			if err := s.ws.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				util.LogError("failed to send frame (%d bytes): %v", len(frame), err)
				onFail(err)
				return
			}
			util.Stats.AddFrameOut()

		case <-ctx.Done():
			return
		}
	}
}

// send enqueues an op. It blocks while the queue is full and returns
// ErrClosed once ctx is cancelled.
func (s *sender) send(ctx context.Context, o op) error {
	if ctx.Err() != nil {
		return ErrClosed
	}
	select {
	case s.inbox <- o:
		return nil
	case <-ctx.Done():
		return ErrClosed
	}
}
