package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/alfozan/insights/internal/fetch"
)

// Exchanger performs the login exchange against an external identity source.
type Exchanger interface {
	Exchange(ctx context.Context, creds Credentials) (Identity, error)
}

// RemoteExchanger posts credentials to the backend's /auth/login endpoint.
type RemoteExchanger struct {
	client *fetch.Client
	path   string
}

// NewRemoteExchanger builds an exchanger using client. path defaults to
// "/auth/login".
func NewRemoteExchanger(client *fetch.Client, path string) *RemoteExchanger {
	if path == "" {
		path = "/auth/login"
	}
	return &RemoteExchanger{client: client, path: path}
}

type remoteLogin struct {
	User RemoteUser `json:"user"`
}

// Exchange returns the identity issued by the backend.
func (e *RemoteExchanger) Exchange(ctx context.Context, creds Credentials) (Identity, error) {
	var out remoteLogin
	if _, err := e.client.Send(ctx, e.path, fetch.Request{Method: http.MethodPost, Body: creds}, &out); err != nil {
		return Identity{}, fmt.Errorf("auth: remote login: %w", err)
	}
	return out.User.Identity()
}
