package api

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
)

// AuthEndpoint issues access tokens.
type AuthEndpoint struct {
	*Endpoint
}

// AuthResponse is a successful login.
type AuthResponse struct {
	Token  string
	Fields Record // full response body, token included
}

// Auth logs in with POST /auth/<kind>. extra fields are merged into the
// request body. A response without a "token" field yields ErrInvalidResponse.
func (e *AuthEndpoint) Auth(ctx context.Context, kind, username, password string, extra map[string]any) (*AuthResponse, error) {
	body := make(map[string]any, len(extra)+2)
	maps.Copy(body, extra)
	body["username"] = username
	body["password"] = password

	var raw json.RawMessage
	if err := e.post(ctx, "/"+kind, body, &raw); err != nil {
		return nil, err
	}

	var fields Record
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	token, ok := fields["token"].(string)
	if !ok || token == "" {
		return nil, ErrInvalidResponse
	}

	return &AuthResponse{Token: token, Fields: fields}, nil
}
