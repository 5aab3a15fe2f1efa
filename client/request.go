package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/deepsight-client/internal/errors"
	"github.com/jrsteele09/deepsight-client/metrics"
)

const requestIDHeader = "X-Request-ID"

// RequestOptions describe one call to the API. Body is kept as bytes so the
// request can be replayed after a token refresh.
type RequestOptions struct {
	Method     string
	Body       []byte
	Header     http.Header // merged last, overriding composed headers
	UseAuth    bool        // attach "Authorization: Bearer <token>"
	AttachJSON bool        // send "Content-Type: application/json" when Body is set
	UseCSRF    bool        // attach the anti-forgery header
}

// DefaultRequest returns a GET with authorization, JSON and CSRF enabled.
func DefaultRequest() RequestOptions {
	return RequestOptions{
		Method:     http.MethodGet,
		UseAuth:    true,
		AttachJSON: true,
		UseCSRF:    true,
	}
}

// AuthenticatedRequest sends a request to path (relative to the API URL)
// with the credentials selected in opts. It never returns nil: missing
// credentials and transport failures come back as synthetic responses.
//
// A 401 from the server on an authorized request triggers one forced token
// refresh and one retry. A second 401 is returned to the caller unchanged.
func (c *SessionClient) AuthenticatedRequest(ctx context.Context, path string, opts RequestOptions) *Response {
	if opts.Method == "" {
		opts.Method = http.MethodGet
	}

	res := c.authenticatedRequest(ctx, path, opts, true, "")
	metrics.Requests.WithLabelValues(opts.Method, res.Kind.String()).Inc()
	return res
}

// authenticatedRequest sends one attempt. A non-empty accessToken is used as
// is instead of asking GetAccessToken, so a retry reuses the refreshed token.
func (c *SessionClient) authenticatedRequest(ctx context.Context, path string, opts RequestOptions, retry bool, accessToken string) *Response {
	header := http.Header{}

	if len(opts.Body) > 0 && opts.AttachJSON {
		header.Set("Content-Type", "application/json")
	}

	if opts.UseCSRF {
		csrf := c.GetAntiForgeryToken(ctx)
		if csrf == "" {
			return syntheticResponse(ResultCSRFUnavailable, errors.ErrCSRFUnavailable)
		}
		header.Set(c.config.GetCSRFHeaderName(), csrf)
	}

	if opts.UseAuth {
		if accessToken == "" {
			var ok bool
			if accessToken, ok = c.GetAccessToken(ctx); !ok {
				return syntheticResponse(ResultAuthRequired, errors.ErrAuthRequired)
			}
		}
		header.Set("Authorization", "Bearer "+accessToken)
	}

	for name, values := range opts.Header {
		header[http.CanonicalHeaderKey(name)] = values
	}
	if header.Get(requestIDHeader) == "" {
		header.Set(requestIDHeader, uuid.New().String())
	}

	res := c.send(ctx, opts.Method, path, opts.Body, header)
	if res.Kind != ResultAuthRequired || !opts.UseAuth {
		return res
	}

	if retry {
		if refreshed, ok := c.refresh(ctx); ok {
			return c.authenticatedRequest(ctx, path, opts, false, refreshed)
		}
	}

	c.logger.Warn().
		Str("method", opts.Method).
		Str("path", path).
		Str("request_id", header.Get(requestIDHeader)).
		Msg("Server rejected the access token, session must be re-established")
	return res
}

func (c *SessionClient) send(ctx context.Context, method, path string, body []byte, header http.Header) *Response {
	ctx, cancel := context.WithTimeout(ctx, c.config.GetRequestTimeout())
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), reader)
	if err != nil {
		return syntheticResponse(ResultTransportError, fmt.Errorf("%w: %v", errors.ErrTransport, err))
	}
	req.Header = header

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("method", method).Str("path", path).Msg("Request failed")
		return syntheticResponse(ResultTransportError, fmt.Errorf("%w: %v", errors.ErrTransport, err))
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		c.logger.Error().Err(err).Str("method", method).Str("path", path).Msg("Failed to read response body")
		return syntheticResponse(ResultTransportError, fmt.Errorf("%w: %v", errors.ErrTransport, err))
	}
	metrics.RequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())

	c.logger.Debug().Str("method", method).Str("path", path).Int("status", res.StatusCode).Msg("Request completed")
	return newResponse(res.StatusCode, res.Header, data)
}
