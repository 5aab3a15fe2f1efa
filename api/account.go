package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jrsteele09/deepsight-client/client"
	"github.com/jrsteele09/deepsight-client/internal/errors"
	"github.com/jrsteele09/deepsight-client/users"
)

const (
	pathHealth       = "/health"
	pathRegister     = "/auth/register"
	pathUser         = "/user"
	pathUserSettings = "/user/settings"
)

// Health calls the unauthenticated health route and returns its message.
func (c *Client) Health(ctx context.Context) (string, error) {
	return c.doEnvelope(ctx, pathHealth, client.RequestOptions{Method: http.MethodGet}, nil)
}

// Register creates an account. It needs the anti-forgery token but no bearer.
func (c *Client) Register(ctx context.Context, reg users.Registration) (string, error) {
	opts, err := jsonRequest(http.MethodPost, reg)
	if err != nil {
		return "", err
	}
	opts.UseAuth = false
	return c.doEnvelope(ctx, pathRegister, opts, nil)
}

// Profile returns the signed in user.
func (c *Client) Profile(ctx context.Context) (*users.User, error) {
	var u users.User
	if _, err := c.doEnvelope(ctx, pathUser, getRequest(), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) Settings(ctx context.Context) (*users.Settings, error) {
	var s users.Settings
	if _, err := c.doEnvelope(ctx, pathUserSettings, getRequest(), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateSettings stores new settings and returns what the server saved.
func (c *Client) UpdateSettings(ctx context.Context, s users.Settings) (*users.Settings, error) {
	if !s.Theme.Valid() {
		return nil, fmt.Errorf("%w: theme %q", errors.ErrUnsupported, s.Theme)
	}

	opts, err := jsonRequest(http.MethodPut, s)
	if err != nil {
		return nil, err
	}

	var saved users.Settings
	if _, err := c.doEnvelope(ctx, pathUserSettings, opts, &saved); err != nil {
		return nil, err
	}
	return &saved, nil
}
