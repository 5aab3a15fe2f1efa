package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jrsteele09/deepsight-client/internal/errors"
	"github.com/jrsteele09/deepsight-client/users"
)

// Login exchanges credentials for an access token and stores it.
func (c *SessionClient) Login(ctx context.Context, creds users.Credentials) *Response {
	body, err := json.Marshal(creds)
	if err != nil {
		return syntheticResponse(ResultTransportError, fmt.Errorf("json.Marshal: %w", err))
	}

	res := c.AuthenticatedRequest(ctx, c.config.GetLoginPath(), RequestOptions{
		Method:     http.MethodPost,
		Body:       body,
		AttachJSON: true,
		UseCSRF:    true,
	})
	if !res.OK() {
		return res
	}

	var tr tokenResponse
	if err := res.Decode(&tr); err != nil || tr.Access == "" {
		res.Kind = ResultHTTPError
		res.Err = fmt.Errorf("login response carried no access token")
		return res
	}

	if err := c.store.Save(ctx, tr.Access); err != nil {
		c.logger.Error().Err(err).Msg("Failed to store access token")
		res.Kind = ResultHTTPError
		res.Err = errors.Wrapf(err, "storing access token")
		return res
	}

	c.logger.Info().Str("username", creds.Username).Msg("Logged in")
	return res
}

// Logout tells the server to end the session and clears the stored token
// whatever the server answers.
func (c *SessionClient) Logout(ctx context.Context) *Response {
	res := c.AuthenticatedRequest(ctx, c.config.GetLogoutPath(), RequestOptions{
		Method:  http.MethodPost,
		UseCSRF: true,
	})

	if err := c.store.Clear(ctx); err != nil {
		c.logger.Error().Err(err).Msg("Failed to clear access token")
	}
	return res
}

// VerifyToken asks the server whether the stored access token is still valid.
func (c *SessionClient) VerifyToken(ctx context.Context) *Response {
	accessToken, err := c.store.Load(ctx)
	if err != nil || accessToken == "" {
		return syntheticResponse(ResultAuthRequired, errors.ErrAuthRequired)
	}

	body, err := json.Marshal(map[string]string{"token": accessToken})
	if err != nil {
		return syntheticResponse(ResultTransportError, fmt.Errorf("json.Marshal: %w", err))
	}

	return c.AuthenticatedRequest(ctx, c.config.GetVerifyPath(), RequestOptions{
		Method:     http.MethodPost,
		Body:       body,
		AttachJSON: true,
		UseCSRF:    true,
	})
}
