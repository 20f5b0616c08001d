package api

import (
	"errors"
	"fmt"

	"github.com/rednet-io/rednet-go/internal/channel"
)

// Errors
var (
	ErrInvalidResponse = errors.New("invalid response")
	ErrNotConnected    = channel.ErrNotConnected
)

// APIError is a non-2xx response from the Rednet API.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("rednet api error %d: %s", e.StatusCode, e.Message)
}

// IsRetryable returns true if the error should trigger a retry under the
// default retry policy.
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429 || e.StatusCode == 408
}

// ErrorKind classifies a failure to complete an HTTP exchange.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindConnection
	KindTimeout
	KindInvalidURL
	KindInvalidSchema
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnection:
		return "Error to connect on server"
	case KindTimeout:
		return "Timeout"
	case KindInvalidURL:
		return "Invalid URL"
	case KindInvalidSchema:
		return "Invalid Schema"
	default:
		return "Unknown Exception"
	}
}

// ClientError is a request that never produced a response.
type ClientError struct {
	Kind ErrorKind
	Err  error
}

func (e *ClientError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ClientError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the request may succeed if sent again.
func (e *ClientError) IsRetryable() bool {
	return e.Kind == KindConnection || e.Kind == KindTimeout
}
