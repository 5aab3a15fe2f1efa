package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/jrsteele09/deepsight-client/sessions"
	"github.com/rs/zerolog"
)

// persistentJar writes the API cookies to a sessions.CookieStore whenever the
// server sets one, so the refresh endpoint recognises the session after a
// restart.
type persistentJar struct {
	http.CookieJar
	store   sessions.CookieStore
	baseURL *url.URL
	logger  zerolog.Logger
}

func (j *persistentJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.CookieJar.SetCookies(u, cookies)
	if err := j.store.SaveCookies(context.Background(), j.CookieJar.Cookies(j.baseURL)); err != nil {
		j.logger.Warn().Err(err).Msg("Failed to store session cookies")
	}
}

// restoreCookies loads persisted cookies into jar and wraps it so later
// changes are persisted too. Stores without cookie support leave jar as is.
func restoreCookies(jar http.CookieJar, store sessions.Store, baseURL *url.URL, logger zerolog.Logger) http.CookieJar {
	cs, ok := store.(sessions.CookieStore)
	if !ok {
		return jar
	}

	cookies, err := cs.LoadCookies(context.Background())
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to load session cookies")
	}
	if len(cookies) > 0 {
		restored := make([]*http.Cookie, 0, len(cookies))
		for _, c := range cookies {
			// The jar only reports name and value, scope them to the whole host again.
			restored = append(restored, &http.Cookie{Name: c.Name, Value: c.Value, Path: "/"})
		}
		jar.SetCookies(baseURL, restored)
		logger.Debug().Int("count", len(restored)).Msg("Restored session cookies")
	}

	return &persistentJar{CookieJar: jar, store: cs, baseURL: baseURL, logger: logger}
}
