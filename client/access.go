package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/jrsteele09/deepsight-client/internal/errors"
	"github.com/jrsteele09/deepsight-client/metrics"
	"github.com/jrsteele09/deepsight-client/token"
)

// tokenResponse is the body returned by the login and refresh endpoints.
type tokenResponse struct {
	Access string `json:"access"`
}

// GetAccessToken returns the stored access token while its exp claim is in
// the future, without any network call. Otherwise it exchanges the session
// cookies for a new token at the refresh endpoint. ok is false when no usable
// token could be obtained.
func (c *SessionClient) GetAccessToken(ctx context.Context) (accessToken string, ok bool) {
	cached, err := c.store.Load(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to load access token")
	}
	if cached != "" {
		err := token.CheckExpiry(cached, c.now())
		if err == nil {
			return cached, true
		}
		c.logger.Debug().Err(err).Msg("Access token needs a refresh")
	}
	return c.refresh(ctx)
}

// refresh performs one refresh call. Concurrent callers share the same call,
// which is detached from the first caller's cancellation and bounded by the
// request timeout instead.
func (c *SessionClient) refresh(ctx context.Context) (string, bool) {
	ctx = context.WithoutCancel(ctx)
	v, _, _ := c.refreshes.Do("refresh", func() (interface{}, error) {
		accessToken, err := c.requestRefresh(ctx)
		if err != nil {
			metrics.TokenRefreshes.WithLabelValues(metrics.OutcomeFailure).Inc()
			c.logger.Warn().Err(err).Msg("Error refreshing access token")
			if clearErr := c.store.Clear(ctx); clearErr != nil {
				c.logger.Warn().Err(clearErr).Msg("Failed to clear stale access token")
			}
			return "", nil
		}

		metrics.TokenRefreshes.WithLabelValues(metrics.OutcomeSuccess).Inc()
		if err := c.store.Save(ctx, accessToken); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to store refreshed access token")
		}
		return accessToken, nil
	})

	accessToken, _ := v.(string)
	return accessToken, accessToken != ""
}

func (c *SessionClient) requestRefresh(ctx context.Context) (string, error) {
	csrf := c.GetAntiForgeryToken(ctx)
	if csrf == "" {
		return "", errors.ErrCSRFUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.GetRequestTimeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(c.config.GetRefreshPath()), nil)
	if err != nil {
		return "", fmt.Errorf("http.NewRequest: %w", err)
	}
	req.Header.Set(c.config.GetCSRFHeaderName(), csrf)
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrTransport, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading refresh response: %v", errors.ErrTransport, err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return "", fmt.Errorf("%w: status %d", errors.ErrRefreshFailed, res.StatusCode)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", errors.ErrRefreshFailed, err)
	}
	if tr.Access == "" {
		return "", fmt.Errorf("%w: response carried no access token", errors.ErrRefreshFailed)
	}
	return tr.Access, nil
}
