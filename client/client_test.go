package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/deepsight-client/client"
	"github.com/jrsteele09/deepsight-client/internal/apitest"
	"github.com/jrsteele09/deepsight-client/internal/config"
	"github.com/jrsteele09/deepsight-client/internal/errors"
	"github.com/jrsteele09/deepsight-client/metrics"
	"github.com/jrsteele09/deepsight-client/sessions"
	"github.com/jrsteele09/deepsight-client/sessions/filestore"
	"github.com/jrsteele09/deepsight-client/sessions/storefake"
	"github.com/jrsteele09/deepsight-client/token/tokentest"
	"github.com/jrsteele09/deepsight-client/users"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// countingTransport records every request that reaches the network.
type countingTransport struct {
	n    atomic.Int64
	base http.RoundTripper
}

func (ct *countingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	ct.n.Add(1)
	return ct.base.RoundTrip(r)
}

func (ct *countingTransport) Count() int {
	return int(ct.n.Load())
}

type testFixture struct {
	server    *apitest.Server
	config    config.Config
	store     *storefake.FakeStore
	transport *countingTransport
	jar       http.CookieJar
	client    *client.SessionClient
}

func setupTestFixture(t *testing.T, cachedToken string) *testFixture {
	t.Helper()

	srv := apitest.NewServer(t)
	cfg := srv.Config(t)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	f := &testFixture{
		server:    srv,
		config:    cfg,
		store:     storefake.NewFakeStore(cachedToken),
		transport: &countingTransport{base: http.DefaultTransport},
		jar:       jar,
	}

	f.client, err = client.New(cfg, f.store,
		client.WithHTTPClient(&http.Client{Transport: f.transport, Jar: jar}),
		client.WithLogger(zerolog.Nop()),
	)
	require.NoError(t, err)
	return f
}

// presetCSRFCookie puts a CSRF cookie in the jar as if an earlier response had set it.
func (f *testFixture) presetCSRFCookie(t *testing.T, value string) {
	t.Helper()
	u, err := url.Parse(f.server.APIURL())
	require.NoError(t, err)
	f.jar.SetCookies(u, []*http.Cookie{{Name: apitest.CSRFCookieName, Value: value, Path: "/"}})
}

// startSession puts a server session cookie in the jar, as a login in an
// earlier run would have.
func (f *testFixture) startSession(t *testing.T) {
	t.Helper()
	u, err := url.Parse(f.server.APIURL())
	require.NoError(t, err)
	f.jar.SetCookies(u, []*http.Cookie{f.server.StartSession()})
}

type echoed struct {
	Method  string      `json:"method"`
	Headers http.Header `json:"headers"`
	Body    string      `json:"body"`
}

func decodeEcho(t *testing.T, res *client.Response) echoed {
	t.Helper()
	require.True(t, res.OK(), "unexpected result %s: %v", res.Kind, res.Error())
	var e echoed
	require.NoError(t, res.Decode(&e))
	return e
}

func TestNew(t *testing.T) {
	t.Run("rejects relative API URL", func(t *testing.T) {
		t.Setenv("DEEPSIGHT_API_URL", "api/v1")
		_, err := client.New(config.New(), sessions.NewMemoryStore())
		require.Error(t, err)
		require.Contains(t, err.Error(), "scheme and host are required")
	})

	t.Run("adds a cookie jar", func(t *testing.T) {
		t.Setenv("DEEPSIGHT_API_URL", "http://localhost:8000/api/v1")
		hc := &http.Client{}
		_, err := client.New(config.New(), sessions.NewMemoryStore(), client.WithHTTPClient(hc))
		require.NoError(t, err)
		require.NotNil(t, hc.Jar)
	})
}

func TestGetAccessToken(t *testing.T) {
	ctx := context.Background()

	t.Run("live cached token needs no network", func(t *testing.T) {
		cached := tokentest.Mint(t, time.Now().Add(3600*time.Second))
		f := setupTestFixture(t, cached)

		got, ok := f.client.GetAccessToken(ctx)
		require.True(t, ok)
		require.Equal(t, cached, got)
		require.Equal(t, 0, f.transport.Count())
		require.Equal(t, 0, f.store.Saves)
	})

	t.Run("expired cached token is refreshed", func(t *testing.T) {
		f := setupTestFixture(t, tokentest.Mint(t, time.Now().Add(-10*time.Second)))
		f.startSession(t)
		f.server.SetRefreshResponse(http.StatusOK, "T2")

		got, ok := f.client.GetAccessToken(ctx)
		require.True(t, ok)
		require.Equal(t, "T2", got)
		require.Equal(t, "T2", f.store.Token())
		require.Equal(t, 1, f.server.Calls(apitest.CallRefresh))
		require.Equal(t, 1, f.server.Calls(apitest.CallProbe), "CSRF cookie fetched once for the refresh")
	})

	t.Run("one refresh per call", func(t *testing.T) {
		f := setupTestFixture(t, tokentest.Mint(t, time.Now().Add(-10*time.Second)))
		f.startSession(t)
		f.server.SetRefreshResponse(http.StatusOK, "T2")

		for i := 1; i <= 3; i++ {
			_, ok := f.client.GetAccessToken(ctx)
			require.True(t, ok)
			require.Equal(t, i, f.server.Calls(apitest.CallRefresh), "T2 carries no exp so every call refreshes")
		}
		require.Equal(t, 1, f.server.Calls(apitest.CallProbe))
	})

	t.Run("missing token is refreshed from the session cookie", func(t *testing.T) {
		f := setupTestFixture(t, "")
		f.startSession(t)

		got, ok := f.client.GetAccessToken(ctx)
		require.True(t, ok)
		require.NotEmpty(t, got)
		require.Equal(t, 1, f.server.Calls(apitest.CallRefresh))
	})

	t.Run("token without exp is refreshed", func(t *testing.T) {
		f := setupTestFixture(t, tokentest.MintWithoutExpiry(t))
		f.startSession(t)

		_, ok := f.client.GetAccessToken(ctx)
		require.True(t, ok)
		require.Equal(t, 1, f.server.Calls(apitest.CallRefresh))
	})

	t.Run("refresh rejected", func(t *testing.T) {
		f := setupTestFixture(t, tokentest.Mint(t, time.Now().Add(-10*time.Second)))
		f.server.SetRefreshResponse(http.StatusBadRequest, "")

		got, ok := f.client.GetAccessToken(ctx)
		require.False(t, ok)
		require.Empty(t, got)
		require.Empty(t, f.store.Token(), "stale token is dropped")

		var authenticated, unauthenticated int
		f.client.IsAuthenticated(ctx, func() { authenticated++ }, func() { unauthenticated++ })
		require.Equal(t, 0, authenticated)
		require.Equal(t, 1, unauthenticated)
	})

	t.Run("no server session", func(t *testing.T) {
		f := setupTestFixture(t, "")

		_, ok := f.client.GetAccessToken(ctx)
		require.False(t, ok)
		require.Equal(t, 1, f.server.Calls(apitest.CallRefresh))
	})

	t.Run("server session ended", func(t *testing.T) {
		f := setupTestFixture(t, tokentest.Mint(t, time.Now().Add(-time.Second)))
		f.startSession(t)
		f.server.EndSession()

		_, ok := f.client.GetAccessToken(ctx)
		require.False(t, ok)
		require.Empty(t, f.store.Token())
	})

	t.Run("cancelled caller still completes the shared refresh", func(t *testing.T) {
		f := setupTestFixture(t, "")
		f.startSession(t)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		got, ok := f.client.GetAccessToken(cancelled)
		require.True(t, ok)
		require.Equal(t, got, f.store.Token(), "token is kept for the other callers")
		require.Equal(t, 1, f.server.Calls(apitest.CallRefresh))
	})

	t.Run("store read failure falls back to refresh", func(t *testing.T) {
		f := setupTestFixture(t, "")
		f.startSession(t)
		f.store.LoadErr = errors.ErrStoreUnavailable

		_, ok := f.client.GetAccessToken(ctx)
		require.True(t, ok)
		require.Equal(t, 1, f.server.Calls(apitest.CallRefresh))
	})

	t.Run("concurrent callers share refreshes", func(t *testing.T) {
		f := setupTestFixture(t, "")
		f.startSession(t)

		var wg sync.WaitGroup
		var okCount atomic.Int64
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, ok := f.client.GetAccessToken(ctx); ok {
					okCount.Add(1)
				}
			}()
		}
		wg.Wait()

		require.Equal(t, int64(10), okCount.Load())
		require.GreaterOrEqual(t, f.server.Calls(apitest.CallRefresh), 1)
		require.LessOrEqual(t, f.server.Calls(apitest.CallRefresh), 10)
	})
}

func TestGetAntiForgeryToken(t *testing.T) {
	ctx := context.Background()

	t.Run("probes once when the cookie is absent", func(t *testing.T) {
		f := setupTestFixture(t, "")

		csrf := f.client.GetAntiForgeryToken(ctx)
		require.NotEmpty(t, csrf)
		require.Equal(t, 1, f.server.Calls(apitest.CallProbe))

		require.Equal(t, csrf, f.client.GetAntiForgeryToken(ctx), "cookie is reused")
		require.Equal(t, 1, f.server.Calls(apitest.CallProbe))
	})

	t.Run("present cookie needs no probe", func(t *testing.T) {
		f := setupTestFixture(t, "")
		f.presetCSRFCookie(t, "preset-csrf")

		require.Equal(t, "preset-csrf", f.client.GetAntiForgeryToken(ctx))
		require.Equal(t, 0, f.transport.Count())
	})

	t.Run("server never sets the cookie", func(t *testing.T) {
		f := setupTestFixture(t, "")
		f.server.SetCSRFCookie(false)

		require.Empty(t, f.client.GetAntiForgeryToken(ctx))
		require.Equal(t, 1, f.server.Calls(apitest.CallProbe))
	})

	t.Run("unreachable server", func(t *testing.T) {
		f := setupTestFixture(t, "")
		f.server.Close()

		require.Empty(t, f.client.GetAntiForgeryToken(ctx))
	})
}

func TestAuthenticatedRequest_Headers(t *testing.T) {
	ctx := context.Background()

	t.Run("attaches bearer, CSRF and JSON headers", func(t *testing.T) {
		cached := tokentest.Mint(t, time.Now().Add(time.Hour))
		f := setupTestFixture(t, cached)
		f.presetCSRFCookie(t, "preset-csrf")

		opts := client.DefaultRequest()
		opts.Method = http.MethodPost
		opts.Body = []byte(`{"hello":"world"}`)

		e := decodeEcho(t, f.client.AuthenticatedRequest(ctx, apitest.RouteEcho, opts))
		require.Equal(t, http.MethodPost, e.Method)
		require.Equal(t, "Bearer "+cached, e.Headers.Get("Authorization"))
		require.Equal(t, "preset-csrf", e.Headers.Get(apitest.CSRFHeaderName))
		require.Equal(t, "application/json", e.Headers.Get("Content-Type"))
		require.NotEmpty(t, e.Headers.Get("X-Request-ID"))
		require.Equal(t, `{"hello":"world"}`, e.Body)
		require.Equal(t, 0, f.server.Calls(apitest.CallProbe), "no probe when the cookie is present")
	})

	t.Run("no content type without body", func(t *testing.T) {
		f := setupTestFixture(t, tokentest.Mint(t, time.Now().Add(time.Hour)))

		e := decodeEcho(t, f.client.AuthenticatedRequest(ctx, apitest.RouteEcho, client.DefaultRequest()))
		require.Empty(t, e.Headers.Get("Content-Type"))
	})

	t.Run("no content type when JSON is disabled", func(t *testing.T) {
		f := setupTestFixture(t, tokentest.Mint(t, time.Now().Add(time.Hour)))

		opts := client.DefaultRequest()
		opts.Method = http.MethodPost
		opts.Body = []byte("raw")
		opts.AttachJSON = false

		e := decodeEcho(t, f.client.AuthenticatedRequest(ctx, apitest.RouteEcho, opts))
		require.Empty(t, e.Headers.Get("Content-Type"))
	})

	t.Run("caller headers override composed ones", func(t *testing.T) {
		f := setupTestFixture(t, tokentest.Mint(t, time.Now().Add(time.Hour)))

		opts := client.DefaultRequest()
		opts.Method = http.MethodPost
		opts.Body = []byte("<xml/>")
		opts.Header = http.Header{"content-type": {"application/xml"}, "X-Request-Id": {"fixed-id"}}

		e := decodeEcho(t, f.client.AuthenticatedRequest(ctx, apitest.RouteEcho, opts))
		require.Equal(t, "application/xml", e.Headers.Get("Content-Type"))
		require.Equal(t, "fixed-id", e.Headers.Get("X-Request-ID"))
	})

	t.Run("auth and CSRF can be turned off", func(t *testing.T) {
		f := setupTestFixture(t, "")

		e := decodeEcho(t, f.client.AuthenticatedRequest(ctx, apitest.RouteEcho, client.RequestOptions{}))
		require.Equal(t, http.MethodGet, e.Method)
		require.Empty(t, e.Headers.Get("Authorization"))
		require.Empty(t, e.Headers.Get(apitest.CSRFHeaderName))
		require.Equal(t, 1, f.transport.Count())
	})
}

func TestAuthenticatedRequest_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("CSRF unobtainable short-circuits with 500", func(t *testing.T) {
		f := setupTestFixture(t, tokentest.Mint(t, time.Now().Add(time.Hour)))
		f.server.SetCSRFCookie(false)

		res := f.client.AuthenticatedRequest(ctx, apitest.RouteEcho, client.DefaultRequest())
		require.Equal(t, client.ResultCSRFUnavailable, res.Kind)
		require.Equal(t, http.StatusInternalServerError, res.StatusCode)
		require.True(t, res.Synthetic)
		require.ErrorIs(t, res.Error(), errors.ErrCSRFUnavailable)
		require.Equal(t, 0, f.server.Calls(apitest.CallEcho))

		var env struct {
			Success bool   `json:"success"`
			Message string `json:"message"`
		}
		require.NoError(t, res.Decode(&env))
		require.False(t, env.Success)
		require.Equal(t, errors.ErrCSRFUnavailable.Error(), env.Message)
	})

	t.Run("token unobtainable short-circuits with 401", func(t *testing.T) {
		f := setupTestFixture(t, "")
		f.server.SetRefreshResponse(http.StatusUnauthorized, "")

		res := f.client.AuthenticatedRequest(ctx, apitest.RouteEcho, client.DefaultRequest())
		require.Equal(t, client.ResultAuthRequired, res.Kind)
		require.Equal(t, http.StatusUnauthorized, res.StatusCode)
		require.True(t, res.Synthetic)
		require.ErrorIs(t, res.Error(), errors.ErrAuthRequired)
		require.Equal(t, 0, f.server.Calls(apitest.CallEcho))
	})

	t.Run("unreachable host resolves to a synthetic response", func(t *testing.T) {
		f := setupTestFixture(t, tokentest.Mint(t, time.Now().Add(time.Hour)))
		f.server.Close()

		res := f.client.AuthenticatedRequest(ctx, apitest.RouteEcho, client.DefaultRequest())
		require.NotNil(t, res)
		require.True(t, res.Synthetic)
		require.Equal(t, http.StatusInternalServerError, res.StatusCode)

		res = f.client.AuthenticatedRequest(ctx, apitest.RouteEcho, client.RequestOptions{})
		require.Equal(t, client.ResultTransportError, res.Kind)
		require.True(t, res.Synthetic)
		require.ErrorIs(t, res.Error(), errors.ErrTransport)
	})

	t.Run("server errors pass through", func(t *testing.T) {
		f := setupTestFixture(t, tokentest.Mint(t, time.Now().Add(time.Hour)))

		res := f.client.AuthenticatedRequest(ctx, "/user/image/999/", client.DefaultRequest())
		require.Equal(t, client.ResultHTTPError, res.Kind)
		require.Equal(t, http.StatusNotFound, res.StatusCode)
		require.False(t, res.Synthetic)
		require.ErrorIs(t, res.Error(), errors.ErrNotFound)
	})
}

func TestAuthenticatedRequest_Unauthorized(t *testing.T) {
	ctx := context.Background()

	t.Run("refreshes once and retries", func(t *testing.T) {
		revoked := tokentest.Mint(t, time.Now().Add(time.Hour))
		f := setupTestFixture(t, revoked)
		f.startSession(t)
		f.server.Revoke(revoked)

		res := f.client.AuthenticatedRequest(ctx, apitest.RouteUser, client.DefaultRequest())
		require.True(t, res.OK(), "got %s", res.Kind)
		require.Equal(t, 1, f.server.Calls(apitest.CallRefresh))
		require.Equal(t, 2, f.server.Calls("GET "+apitest.BasePath+apitest.RouteUser))
		require.NotEqual(t, revoked, f.store.Token())
	})

	t.Run("retry uses the refreshed token without another refresh", func(t *testing.T) {
		revoked := tokentest.Mint(t, time.Now().Add(time.Hour))
		f := setupTestFixture(t, revoked)
		f.startSession(t)
		f.server.Revoke(revoked)
		f.server.SetRefreshResponse(http.StatusOK, "opaque-T2")

		res := f.client.AuthenticatedRequest(ctx, apitest.RouteUser, client.DefaultRequest())
		require.True(t, res.OK(), "got %s", res.Kind)
		require.Equal(t, 1, f.server.Calls(apitest.CallRefresh), "opaque token has no exp but is not refreshed again")
		require.Equal(t, 2, f.server.Calls("GET "+apitest.BasePath+apitest.RouteUser))
		require.Equal(t, "opaque-T2", f.store.Token())
	})

	t.Run("second 401 is returned as is", func(t *testing.T) {
		f := setupTestFixture(t, tokentest.Mint(t, time.Now().Add(time.Hour)))
		f.startSession(t)
		f.server.RejectAllTokens(true)

		res := f.client.AuthenticatedRequest(ctx, apitest.RouteUser, client.DefaultRequest())
		require.Equal(t, client.ResultAuthRequired, res.Kind)
		require.Equal(t, http.StatusUnauthorized, res.StatusCode)
		require.False(t, res.Synthetic)
		require.Equal(t, 1, f.server.Calls(apitest.CallRefresh))
		require.Equal(t, 2, f.server.Calls("GET "+apitest.BasePath+apitest.RouteUser))
	})

	t.Run("refresh failure after 401 returns the server response", func(t *testing.T) {
		revoked := tokentest.Mint(t, time.Now().Add(time.Hour))
		f := setupTestFixture(t, revoked)
		f.server.Revoke(revoked)
		f.server.SetRefreshResponse(http.StatusUnauthorized, "")

		res := f.client.AuthenticatedRequest(ctx, apitest.RouteUser, client.DefaultRequest())
		require.Equal(t, client.ResultAuthRequired, res.Kind)
		require.False(t, res.Synthetic)
		require.Equal(t, 1, f.server.Calls("GET "+apitest.BasePath+apitest.RouteUser))
		require.Empty(t, f.store.Token())
	})
}

func TestIsAuthenticated(t *testing.T) {
	ctx := context.Background()

	cases := map[string]struct {
		cached        func(t *testing.T) string
		refreshStatus int
		authenticated bool
	}{
		"live token":               {cached: func(t *testing.T) string { return tokentest.Mint(t, time.Now().Add(time.Hour)) }, refreshStatus: http.StatusOK, authenticated: true},
		"expired token, refreshed": {cached: func(t *testing.T) string { return tokentest.Mint(t, time.Now().Add(-time.Minute)) }, refreshStatus: http.StatusOK, authenticated: true},
		"expired token, rejected":  {cached: func(t *testing.T) string { return tokentest.Mint(t, time.Now().Add(-time.Minute)) }, refreshStatus: http.StatusUnauthorized},
		"no token, rejected":       {cached: func(t *testing.T) string { return "" }, refreshStatus: http.StatusBadRequest},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			f := setupTestFixture(t, tc.cached(t))
			f.startSession(t)
			f.server.SetRefreshResponse(tc.refreshStatus, "")

			var authenticated, unauthenticated int
			f.client.IsAuthenticated(ctx, func() { authenticated++ }, func() { unauthenticated++ })

			require.Equal(t, 1, authenticated+unauthenticated, "exactly one callback")
			if tc.authenticated {
				require.Equal(t, 1, authenticated)
			} else {
				require.Equal(t, 1, unauthenticated)
			}
		})
	}

	t.Run("nil callbacks are skipped", func(t *testing.T) {
		f := setupTestFixture(t, tokentest.Mint(t, time.Now().Add(time.Hour)))
		require.NotPanics(t, func() { f.client.IsAuthenticated(ctx, nil, nil) })
	})
}

func TestWatch(t *testing.T) {
	f := setupTestFixture(t, tokentest.Mint(t, time.Now().Add(time.Hour)))

	var checks atomic.Int64
	stop := f.client.Watch(context.Background(), 10*time.Millisecond, func() { checks.Add(1) }, func() { t.Error("unexpected unauthenticated callback") })

	require.Eventually(t, func() bool { return checks.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)

	stop()
	stop()
	time.Sleep(50 * time.Millisecond)
	settled := checks.Load()
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, settled, checks.Load(), "no checks after stop")

	t.Run("stop from inside a callback", func(t *testing.T) {
		f := setupTestFixture(t, "")
		f.server.SetRefreshResponse(http.StatusUnauthorized, "")

		var stopWatch func()
		var mu sync.Mutex
		done := make(chan struct{})
		var once sync.Once

		mu.Lock()
		stopWatch = f.client.Watch(context.Background(), 10*time.Millisecond, nil, func() {
			mu.Lock()
			defer mu.Unlock()
			stopWatch()
			once.Do(func() { close(done) })
		})
		mu.Unlock()

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("unauthenticated callback never ran")
		}
	})

	t.Run("context cancellation stops the watch", func(t *testing.T) {
		f := setupTestFixture(t, tokentest.Mint(t, time.Now().Add(time.Hour)))
		ctx, cancel := context.WithCancel(context.Background())

		var checks atomic.Int64
		f.client.Watch(ctx, 10*time.Millisecond, func() { checks.Add(1) }, nil)
		require.Eventually(t, func() bool { return checks.Load() >= 1 }, 2*time.Second, 5*time.Millisecond)

		cancel()
		time.Sleep(50 * time.Millisecond)
		settled := checks.Load()
		time.Sleep(50 * time.Millisecond)
		require.Equal(t, settled, checks.Load())
	})
}

func TestLoginLogout(t *testing.T) {
	ctx := context.Background()

	t.Run("login stores the access token", func(t *testing.T) {
		f := setupTestFixture(t, "")

		res := f.client.Login(ctx, users.Credentials{Username: "ada", Password: "Str0ng!pass"})
		require.True(t, res.OK(), "got %s: %v", res.Kind, res.Error())
		require.NotEmpty(t, f.store.Token())
		require.Equal(t, 0, f.server.Calls(apitest.CallRefresh))

		s := f.client.Session(ctx)
		require.Equal(t, f.store.Token(), s.AccessToken)
		require.NotEmpty(t, s.CSRFToken)
		require.True(t, s.Authenticated(time.Now()))

		verify := f.client.VerifyToken(ctx)
		require.True(t, verify.OK())
		require.Equal(t, 1, f.server.Calls(apitest.CallVerify))
	})

	t.Run("bad credentials", func(t *testing.T) {
		f := setupTestFixture(t, "")

		res := f.client.Login(ctx, users.Credentials{Username: "ada", Password: "Wr0ng!pass"})
		require.Equal(t, client.ResultAuthRequired, res.Kind)
		require.False(t, res.Synthetic)
		require.Empty(t, f.store.Token())
		require.Equal(t, 0, f.server.Calls(apitest.CallRefresh), "a failed login is not retried")

		var body struct {
			Detail string `json:"detail"`
		}
		require.NoError(t, res.Decode(&body))
		require.Contains(t, body.Detail, "No active account")
	})

	t.Run("store failure is reported", func(t *testing.T) {
		f := setupTestFixture(t, "")
		f.store.SaveErr = errors.ErrStoreUnavailable

		res := f.client.Login(ctx, users.Credentials{Username: "ada", Password: "Str0ng!pass"})
		require.False(t, res.OK())
		require.ErrorIs(t, res.Error(), errors.ErrStoreUnavailable)
	})

	t.Run("logout clears the store", func(t *testing.T) {
		f := setupTestFixture(t, tokentest.Mint(t, time.Now().Add(time.Hour)))

		res := f.client.Logout(ctx)
		require.True(t, res.OK())
		require.Equal(t, 1, f.server.Calls(apitest.CallLogout))
		require.Empty(t, f.store.Token())
		require.Equal(t, 1, f.store.Clears)
	})

	t.Run("logout clears the store even when the server is down", func(t *testing.T) {
		f := setupTestFixture(t, tokentest.Mint(t, time.Now().Add(time.Hour)))
		f.server.Close()

		res := f.client.Logout(ctx)
		require.False(t, res.OK())
		require.Empty(t, f.store.Token())
	})

	t.Run("verify without a token", func(t *testing.T) {
		f := setupTestFixture(t, "")

		res := f.client.VerifyToken(ctx)
		require.Equal(t, client.ResultAuthRequired, res.Kind)
		require.True(t, res.Synthetic)
		require.Equal(t, 0, f.transport.Count())
	})
}

func TestCookiePersistence(t *testing.T) {
	ctx := context.Background()
	srv := apitest.NewServer(t)
	cfg := srv.Config(t)
	path := filepath.Join(t.TempDir(), "session.json")

	newClient := func(t *testing.T) (*client.SessionClient, *filestore.Store) {
		t.Helper()
		store := filestore.New(path, "")
		sc, err := client.New(cfg, store, client.WithHTTPClient(&http.Client{}), client.WithLogger(zerolog.Nop()))
		require.NoError(t, err)
		return sc, store
	}

	first, _ := newClient(t)
	require.True(t, first.Login(ctx, users.Credentials{Username: "ada", Password: "Str0ng!pass"}).OK())

	t.Run("a new client refreshes with the stored session cookie", func(t *testing.T) {
		second, store := newClient(t)
		require.NoError(t, store.Save(ctx, tokentest.Mint(t, time.Now().Add(-time.Minute))))
		refreshes := srv.Calls(apitest.CallRefresh)

		got, ok := second.GetAccessToken(ctx)
		require.True(t, ok)
		require.Equal(t, refreshes+1, srv.Calls(apitest.CallRefresh))

		stored, err := store.Load(ctx)
		require.NoError(t, err)
		require.Equal(t, got, stored)
	})

	t.Run("logout forgets the session cookie", func(t *testing.T) {
		second, store := newClient(t)
		require.True(t, second.Logout(ctx).OK())

		cookies, err := store.LoadCookies(ctx)
		require.NoError(t, err)
		require.Empty(t, cookies)

		third, _ := newClient(t)
		_, ok := third.GetAccessToken(ctx)
		require.False(t, ok)
	})
}

func TestTokenSource(t *testing.T) {
	ctx := context.Background()

	t.Run("supplies the session token", func(t *testing.T) {
		exp := time.Now().Add(time.Hour).Truncate(time.Second)
		cached := tokentest.Mint(t, exp)
		f := setupTestFixture(t, cached)

		tok, err := f.client.TokenSource(ctx).Token()
		require.NoError(t, err)
		require.Equal(t, cached, tok.AccessToken)
		require.Equal(t, "Bearer", tok.TokenType)
		require.True(t, tok.Expiry.Equal(exp))

		req, err := http.NewRequest(http.MethodGet, f.server.APIURL()+apitest.RouteEcho, nil)
		require.NoError(t, err)
		tok.SetAuthHeader(req)
		res, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer res.Body.Close()

		var e echoed
		require.NoError(t, json.NewDecoder(res.Body).Decode(&e))
		require.Equal(t, "Bearer "+cached, e.Headers.Get("Authorization"))
	})

	t.Run("no session", func(t *testing.T) {
		f := setupTestFixture(t, "")
		f.server.SetRefreshResponse(http.StatusUnauthorized, "")

		_, err := f.client.TokenSource(ctx).Token()
		require.ErrorIs(t, err, errors.ErrAuthRequired)
	})

	t.Run("logout ends the token source", func(t *testing.T) {
		f := setupTestFixture(t, "")
		require.True(t, f.client.Login(ctx, users.Credentials{Username: "ada", Password: "Str0ng!pass"}).OK())

		ts := f.client.TokenSource(ctx)
		before, err := ts.Token()
		require.NoError(t, err)
		require.Equal(t, f.store.Token(), before.AccessToken)

		require.True(t, f.client.Logout(ctx).OK())

		_, err = ts.Token()
		require.ErrorIs(t, err, errors.ErrAuthRequired)
	})
}

func TestMetrics(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t, "")
	f.startSession(t)

	refreshes := testutil.ToFloat64(metrics.TokenRefreshes.WithLabelValues(metrics.OutcomeSuccess))
	probes := testutil.ToFloat64(metrics.CSRFProbes.WithLabelValues(metrics.OutcomeSuccess))
	unauthenticated := testutil.ToFloat64(metrics.AuthChecks.WithLabelValues(metrics.OutcomeUnauthenticated))
	synthetic := testutil.ToFloat64(metrics.Requests.WithLabelValues(http.MethodGet, client.ResultAuthRequired.String()))

	_, ok := f.client.GetAccessToken(ctx)
	require.True(t, ok)
	require.Equal(t, refreshes+1, testutil.ToFloat64(metrics.TokenRefreshes.WithLabelValues(metrics.OutcomeSuccess)))
	require.Equal(t, probes+1, testutil.ToFloat64(metrics.CSRFProbes.WithLabelValues(metrics.OutcomeSuccess)))

	f.server.SetRefreshResponse(http.StatusUnauthorized, "")
	require.NoError(t, f.store.Clear(ctx))
	f.client.IsAuthenticated(ctx, nil, nil)
	require.Equal(t, unauthenticated+1, testutil.ToFloat64(metrics.AuthChecks.WithLabelValues(metrics.OutcomeUnauthenticated)))

	f.client.AuthenticatedRequest(ctx, apitest.RouteUser, client.DefaultRequest())
	require.Equal(t, synthetic+1, testutil.ToFloat64(metrics.Requests.WithLabelValues(http.MethodGet, client.ResultAuthRequired.String())))
}
