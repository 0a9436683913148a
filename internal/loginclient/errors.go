package loginclient

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	ErrNotConnected     = errors.New("loginclient: not connected")
	ErrNotAuthenticated = errors.New("loginclient: not authenticated")
	ErrBusy             = errors.New("loginclient: login already in progress")
	ErrForceDisconnect  = errors.New("loginclient: disconnected by server")
)

// Error is an application-level failure: a reply with a non-success status,
// or a failed session-token exchange. Message carries the remote reason
// when there is one (e.g. "BAD_TOKEN").
type Error struct {
	Op      string
	Message string
	Status  uint32
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }
