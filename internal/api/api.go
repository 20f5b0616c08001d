package api

import (
	"context"
	"fmt"

	"github.com/rednet-io/rednet-go/internal/auth"
)

// API groups the Rednet resources behind one client.
type API struct {
	client *Client

	Auth     *AuthEndpoint
	Operator *Endpoint
	Agent    *Endpoint
	Handler  *HandlerEndpoint
	Listener *ListenerEndpoint

	token *auth.Token
}

// New wires every endpoint to client.
func New(client *Client) *API {
	return &API{
		client:   client,
		Auth:     &AuthEndpoint{NewEndpoint(client, "/auth")},
		Operator: NewEndpoint(client, "/operator"),
		Agent:    NewEndpoint(client, "/agent"),
		Handler:  &HandlerEndpoint{Endpoint: NewEndpoint(client, HandlerPath)},
		Listener: &ListenerEndpoint{Endpoint: NewEndpoint(client, ListenerPath)},
	}
}

// Client returns the underlying client.
func (a *API) Client() *Client {
	return a.client
}

// Login authenticates and installs the returned token.
func (a *API) Login(ctx context.Context, kind, username, password string) (*auth.Token, error) {
	resp, err := a.Auth.Auth(ctx, kind, username, password, nil)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return a.AddToken(resp.Token)
}

// AddToken sets "Authorization: Bearer <token>" on subsequent requests
// and channel handshakes.
func (a *API) AddToken(raw string) (*auth.Token, error) {
	tok, err := auth.ParseToken(raw)
	if err != nil {
		return nil, err
	}
	a.token = tok
	a.client.AddHeader("Authorization", tok.Header())
	return tok, nil
}

// Token returns the token installed by Login or AddToken, or nil.
func (a *API) Token() *auth.Token {
	return a.token
}

// Close disconnects every channel.
func (a *API) Close() {
	a.client.Close()
}
