package api

import (
	"context"
	"net/http"
	"sync"

	"github.com/rednet-io/rednet-go/internal/channel"
)

// ListenerEndpoint is the /listener resource and its duplex channel.
type ListenerEndpoint struct {
	*Endpoint

	mu sync.Mutex
	ws *channel.Connection
}

// ConnectWS opens the listener channel.
func (e *ListenerEndpoint) ConnectWS() (*channel.Connection, error) {
	conn, err := e.client.ConnectWebSocket(ListenerPath)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.ws = conn
	e.mu.Unlock()
	return conn, nil
}

// DisconnectWS closes the listener channel and returns it, or nil if none
// was open.
func (e *ListenerEndpoint) DisconnectWS() *channel.Connection {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ws == nil {
		return nil
	}
	conn := e.ws
	e.ws = nil
	e.client.DisconnectWebSocket(ListenerPath)
	return conn
}

func (e *ListenerEndpoint) conn() *channel.Connection {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ws
}

// Transmit sends a listener response. With an open channel the response is
// queued as a listener/response envelope and Transmit returns nil, nil.
// Otherwise it is posted to /listener/transmit and the raw reply returned.
func (e *ListenerEndpoint) Transmit(ctx context.Context, magick, data string) ([]byte, error) {
	if ws := e.conn(); ws != nil {
		env, err := channel.NewEnvelope(TypeListener, ActionResponse, TransmitData{Magick: magick, Payload: data})
		if err != nil {
			return nil, err
		}
		return nil, ws.Send(env)
	}

	body := map[string]string{"magick": magick, "data": data}
	return e.client.Request(ctx, http.MethodPost, e.path+"/transmit", nil, body)
}

// OnMessage registers h for "listener" frames.
func (e *ListenerEndpoint) OnMessage(h channel.Handler) error {
	ws := e.conn()
	if ws == nil {
		return ErrNotConnected
	}
	ws.RegisterCallback(TypeListener, h)
	return nil
}
