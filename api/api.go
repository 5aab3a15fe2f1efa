// Package api wraps the DeepSight REST endpoints in typed methods. Every call
// goes through a Requester, normally a *client.SessionClient, so credentials
// and failures are handled in one place.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jrsteele09/deepsight-client/client"
	"github.com/jrsteele09/deepsight-client/internal/errors"
)

// Requester sends one request to the API. *client.SessionClient implements it.
type Requester interface {
	AuthenticatedRequest(ctx context.Context, path string, opts client.RequestOptions) *client.Response
}

var _ Requester = (*client.SessionClient)(nil)

// Client exposes the DeepSight endpoints.
type Client struct {
	r Requester
}

func New(r Requester) *Client {
	return &Client{r: r}
}

// Envelope is the {"success", "message", "data"} body used by resource routes.
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Error is returned for every non-successful Response.
type Error struct {
	Kind       client.ResultKind
	StatusCode int
	Message    string
	err        error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s (%d)", e.Kind, e.StatusCode)
}

func (e *Error) Unwrap() error {
	return e.err
}

// IsAuthRequired reports whether err means the user has to log in again.
func IsAuthRequired(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == client.ResultAuthRequired
}

// NewError describes a failed response using the most useful message it
// carries: the envelope message, a "detail" field, or the response error.
func NewError(res *client.Response) *Error {
	e := &Error{Kind: res.Kind, StatusCode: res.StatusCode, err: res.Error()}

	var body struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(res.Body, &body); err == nil {
		e.Message = body.Message
		if e.Message == "" {
			e.Message = body.Detail
		}
	}
	if e.Message == "" && e.err != nil {
		e.Message = e.err.Error()
	}
	return e
}

// do sends the request and returns the raw response, or an *Error.
func (c *Client) do(ctx context.Context, path string, opts client.RequestOptions) (*client.Response, error) {
	res := c.r.AuthenticatedRequest(ctx, path, opts)
	if !res.OK() {
		return nil, NewError(res)
	}
	return res, nil
}

// doEnvelope sends the request and decodes the envelope's data into out when
// out is not nil. It returns the envelope message.
func (c *Client) doEnvelope(ctx context.Context, path string, opts client.RequestOptions, out interface{}) (string, error) {
	res, err := c.do(ctx, path, opts)
	if err != nil {
		return "", err
	}

	var env Envelope
	if err := res.Decode(&env); err != nil {
		return "", errors.Wrapf(err, "decoding %s %s", opts.Method, path)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return "", errors.Wrapf(err, "decoding %s %s data", opts.Method, path)
		}
	}
	return env.Message, nil
}

func jsonRequest(method string, v interface{}) (client.RequestOptions, error) {
	opts := client.DefaultRequest()
	opts.Method = method
	if v != nil {
		body, err := json.Marshal(v)
		if err != nil {
			return opts, fmt.Errorf("json.Marshal: %w", err)
		}
		opts.Body = body
	}
	return opts, nil
}

func getRequest() client.RequestOptions {
	return client.DefaultRequest()
}

func deleteRequest() client.RequestOptions {
	opts := client.DefaultRequest()
	opts.Method = http.MethodDelete
	return opts
}
