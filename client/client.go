// Package client is the single entry point for talking to the DeepSight API.
// SessionClient owns the access token lifecycle, attaches bearer and
// anti-forgery credentials, and turns every failure into a Response value.
package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/jrsteele09/deepsight-client/internal/config"
	"github.com/jrsteele09/deepsight-client/sessions"
	"github.com/jrsteele09/deepsight-client/token"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/sync/singleflight"
)

type SessionClient struct {
	config  config.Config
	baseURL *url.URL
	http    *http.Client
	store   sessions.Store
	logger  zerolog.Logger
	now     func() time.Time

	refreshes singleflight.Group
}

type Option func(*SessionClient)

// WithHTTPClient replaces the default HTTP client. A cookie jar is added if
// the client has none, since the session depends on server cookies.
func WithHTTPClient(c *http.Client) Option {
	return func(sc *SessionClient) {
		sc.http = c
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(sc *SessionClient) {
		sc.logger = l
	}
}

// WithClock overrides the time source used for token expiry checks.
func WithClock(now func() time.Time) Option {
	return func(sc *SessionClient) {
		sc.now = now
	}
}

// New creates a SessionClient for cfg.GetAPIURL() persisting tokens in store.
// When store is also a sessions.CookieStore the server cookies are restored
// from it and kept in it.
func New(cfg config.Config, store sessions.Store, opts ...Option) (*SessionClient, error) {
	baseURL, err := url.Parse(cfg.GetAPIURL())
	if err != nil {
		return nil, fmt.Errorf("invalid API URL %q: %w", cfg.GetAPIURL(), err)
	}
	if baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("invalid API URL %q: scheme and host are required", cfg.GetAPIURL())
	}

	sc := &SessionClient{
		config:  cfg,
		baseURL: baseURL,
		http:    &http.Client{},
		store:   store,
		logger:  log.With().Str("component", "session").Logger(),
		now:     func() time.Time { return token.NowTimeFunc() },
	}
	for _, opt := range opts {
		opt(sc)
	}

	if sc.http.Jar == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("cookiejar.New: %w", err)
		}
		sc.http.Jar = jar
	}
	sc.http.Jar = restoreCookies(sc.http.Jar, store, baseURL, sc.logger)

	return sc, nil
}

// Session returns a snapshot of the current session without touching the network.
func (c *SessionClient) Session(ctx context.Context) sessions.Session {
	s := sessions.Session{CSRFToken: c.csrfFromJar()}

	accessToken, err := c.store.Load(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to load access token")
		return s
	}
	s.AccessToken = accessToken
	if exp, err := token.ParseExpiry(accessToken); err == nil {
		s.Expiry = exp
	}
	return s
}

func (c *SessionClient) endpoint(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimRight(c.baseURL.String(), "/") + path
}
