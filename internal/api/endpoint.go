package api

import (
	"context"
	"net/http"
	"net/url"
)

// Endpoint is a REST resource rooted at path. Results are decoded into
// the out argument; pass nil to discard them.
type Endpoint struct {
	client *Client
	path   string
}

// NewEndpoint creates an endpoint for path, e.g. "/agent".
func NewEndpoint(client *Client, path string) *Endpoint {
	return &Endpoint{client: client, path: path}
}

// Path returns the resource path.
func (e *Endpoint) Path() string {
	return e.path
}

// Find fetches one record.
func (e *Endpoint) Find(ctx context.Context, id string, out any) error {
	return e.client.do(ctx, http.MethodGet, e.path+"/"+url.PathEscape(id), nil, nil, out)
}

// FindAll lists every record.
func (e *Endpoint) FindAll(ctx context.Context, out any) error {
	return e.client.do(ctx, http.MethodGet, e.path, nil, nil, out)
}

// Create posts a new record.
func (e *Endpoint) Create(ctx context.Context, data, out any) error {
	return e.client.do(ctx, http.MethodPost, e.path, nil, orEmpty(data), out)
}

// Update patches an existing record.
func (e *Endpoint) Update(ctx context.Context, id string, data, out any) error {
	return e.client.do(ctx, http.MethodPatch, e.path+"/"+url.PathEscape(id), nil, orEmpty(data), out)
}

// Remove deletes a record.
func (e *Endpoint) Remove(ctx context.Context, id string, out any) error {
	return e.client.do(ctx, http.MethodDelete, e.path+"/"+url.PathEscape(id), nil, nil, out)
}

func (e *Endpoint) post(ctx context.Context, sub string, data, out any) error {
	return e.client.do(ctx, http.MethodPost, e.path+sub, nil, orEmpty(data), out)
}

func orEmpty(data any) any {
	if data == nil {
		return struct{}{}
	}
	return data
}
