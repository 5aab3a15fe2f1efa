package client

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/jrsteele09/deepsight-client/metrics"
)

// GetAntiForgeryToken returns the CSRF token from the server-set cookie. When
// the cookie is missing it sends one unauthenticated probe request so the
// server sets it, then reads the jar again. An empty string means no token
// could be obtained.
func (c *SessionClient) GetAntiForgeryToken(ctx context.Context) string {
	if csrf := c.csrfFromJar(); csrf != "" {
		return csrf
	}

	if err := c.probe(ctx); err != nil {
		metrics.CSRFProbes.WithLabelValues(metrics.OutcomeFailure).Inc()
		c.logger.Warn().Err(err).Msg("Anti-forgery probe failed")
		return ""
	}

	csrf := c.csrfFromJar()
	if csrf == "" {
		metrics.CSRFProbes.WithLabelValues(metrics.OutcomeFailure).Inc()
		c.logger.Warn().Str("cookie", c.config.GetCSRFCookieName()).Msg("Server did not set the anti-forgery cookie")
		return ""
	}

	metrics.CSRFProbes.WithLabelValues(metrics.OutcomeSuccess).Inc()
	return csrf
}

func (c *SessionClient) csrfFromJar() string {
	name := c.config.GetCSRFCookieName()
	for _, cookie := range c.http.Jar.Cookies(c.baseURL) {
		if cookie.Name == name {
			return cookie.Value
		}
	}
	return ""
}

func (c *SessionClient) probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.GetRequestTimeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(c.config.GetProbePath()), nil)
	if err != nil {
		return fmt.Errorf("http.NewRequest: %w", err)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("probe %s: %w", req.URL.Path, err)
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)
	return nil
}
