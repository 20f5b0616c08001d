package channel

import (
	"errors"
	"fmt"
)

// Errors
var (
	ErrAlreadyStarted = errors.New("connection already started")
	ErrClosed         = errors.New("connection closed")
	ErrNotConnected   = errors.New("not connected")
	ErrMissingType    = errors.New("frame has no type tag")
	ErrQueueClosed    = errors.New("queue closed")
)

// HandshakeError reports a failed dial or protocol upgrade.
type HandshakeError struct {
	URL string
	Err error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("handshake %s: %v", e.URL, e.Err)
}

func (e *HandshakeError) Unwrap() error { return e.Err }

// SendError reports a frame that could not be written to the socket.
type SendError struct {
	Err error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send frame: %v", e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// ReceiveError reports a socket that failed or was closed while reading.
type ReceiveError struct {
	Err error
}

func (e *ReceiveError) Error() string {
	return fmt.Sprintf("receive frame: %v", e.Err)
}

func (e *ReceiveError) Unwrap() error { return e.Err }

// DecodeError reports an inbound frame that is not a valid envelope.
type DecodeError struct {
	Frame []byte
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode frame: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// HandlerError reports a callback that returned an error or panicked.
type HandlerError struct {
	Type  string
	Err   error
	Panic any // non-nil if the callback panicked
}

func (e *HandlerError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("handler %q panicked: %v", e.Type, e.Panic)
	}
	return fmt.Sprintf("handler %q: %v", e.Type, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }
