package negotiation

import (
	"errors"
	"fmt"
)

var (
	ErrRoomFull         = errors.New("room is full")
	ErrRelayRejected    = errors.New("relay rejected the session")
	ErrRelayClosed      = errors.New("relay connection closed")
	ErrMalformedMessage = errors.New("malformed signaling message")
	ErrPeerDisconnected = errors.New("peer disconnected")
	ErrConnectionFailed = errors.New("connection failed")
	ErrTimeout          = errors.New("timeout")
	ErrSessionUsed      = errors.New("session already ran")
)

// Error is the single terminal failure of a negotiation.
type Error struct {
	Op      string
	Err     error
	Details string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}

func WrapError(op string, err error, details string) *Error {
	return &Error{Op: op, Err: err, Details: details}
}
