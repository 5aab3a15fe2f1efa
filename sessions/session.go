package sessions

import (
	"context"
	"net/http"
	"time"
)

const (
	// AccessTokenKey is the single storage key that holds the current access token.
	AccessTokenKey = "access"
	// CookiesKey holds the server cookies of a persisted session.
	CookiesKey = "cookies"
)

// Session is the client side view of an authenticated session.
// Only AccessToken is persisted; CSRFToken lives in the server-set cookie and
// Expiry is decoded from the access token.
type Session struct {
	AccessToken string    // Bearer token (JWT) sent as "Authorization: Bearer <token>"
	CSRFToken   string    // Anti-forgery token echoed back in the X-CSRFToken header
	Expiry      time.Time // Value of the access token's exp claim
}

// Authenticated reports whether the session holds an access token that is
// still valid at now.
func (s Session) Authenticated(now time.Time) bool {
	return s.AccessToken != "" && s.Expiry.After(now)
}

// Store persists the access token under AccessTokenKey.
// Load returns an empty string and no error when nothing is stored.
type Store interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, accessToken string) error
	Clear(ctx context.Context) error
}

// CookieStore is implemented by stores that also keep the server's session
// cookies, so the refresh endpoint still recognises the session after a
// restart. Clear on the Store removes the cookies as well.
type CookieStore interface {
	LoadCookies(ctx context.Context) ([]*http.Cookie, error)
	SaveCookies(ctx context.Context, cookies []*http.Cookie) error
}
