package api

import (
	"sync"

	"github.com/rednet-io/rednet-go/internal/channel"
)

// HandlerEndpoint is the /handler resource and its duplex channel.
type HandlerEndpoint struct {
	*Endpoint

	mu sync.Mutex
	ws *channel.Connection
}

// ConnectWS opens the handler channel.
func (e *HandlerEndpoint) ConnectWS() (*channel.Connection, error) {
	conn, err := e.client.ConnectWebSocket(HandlerPath)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.ws = conn
	e.mu.Unlock()
	return conn, nil
}

// DisconnectWS closes the handler channel and returns it so the caller can
// Wait on it. It returns nil if no channel was open.
func (e *HandlerEndpoint) DisconnectWS() *channel.Connection {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ws == nil {
		return nil
	}
	conn := e.ws
	e.ws = nil
	e.client.DisconnectWebSocket(HandlerPath)
	return conn
}

func (e *HandlerEndpoint) conn() *channel.Connection {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ws
}

// ExecuteCommand queues a command for the agent side.
func (e *HandlerEndpoint) ExecuteCommand(command string, args []string) error {
	ws := e.conn()
	if ws == nil {
		return ErrNotConnected
	}
	if args == nil {
		args = []string{}
	}

	env, err := channel.NewEnvelope(TypeCommand, ActionExecute, CommandData{Command: command, Args: args})
	if err != nil {
		return err
	}
	return ws.Send(env)
}

// StreamImage queues a base64 image frame with its metadata.
func (e *HandlerEndpoint) StreamImage(imageData string, metadata map[string]any) error {
	ws := e.conn()
	if ws == nil {
		return ErrNotConnected
	}
	if metadata == nil {
		metadata = map[string]any{}
	}

	env, err := channel.NewEnvelope(TypeImage, ActionStream, ImageData{ImageData: imageData, Metadata: metadata})
	if err != nil {
		return err
	}
	return ws.Send(env)
}

// OnMessage registers h for "handler" frames.
func (e *HandlerEndpoint) OnMessage(h channel.Handler) error {
	ws := e.conn()
	if ws == nil {
		return ErrNotConnected
	}
	ws.RegisterCallback(TypeHandler, h)
	return nil
}
