// Package apitest runs an in-process fake of the DeepSight API for tests.
// It speaks the same wire format as the real service: the CSRF cookie set by
// the health probe, SimpleJWT style token endpoints, and the
// {"success","message","data"} envelope on resource routes.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/deepsight-client/internal/config"
	"github.com/jrsteele09/deepsight-client/token"
	"github.com/jrsteele09/deepsight-client/token/tokentest"
)

const (
	CSRFCookieName    = "csrftoken"
	CSRFHeaderName    = "X-CSRFToken"
	RefreshCookieName = "refresh_token"
)

type image struct {
	ID          int
	Name        string
	Format      string
	Data        []byte
	Uploaded    time.Time
	IsProcessed bool
}

type processedImage struct {
	ID      int
	ImageID int
	ModelID int
	Data    []byte
	Created time.Time
}

type model struct {
	ID          int     `json:"id"`
	Name        string  `json:"model_name"`
	Type        string  `json:"model_type"`
	Description string  `json:"model_description"`
	Version     string  `json:"model_version"`
	Accuracy    float64 `json:"accuracy"`
	Category    string  `json:"category"`
}

type account struct {
	ID        int
	Email     string
	Username  string
	Password  string
	FirstName string
	LastName  string
	Theme     string
}

// Server is a fake DeepSight API. Configure it through its setter methods;
// they are safe to call while requests are in flight.
type Server struct {
	*httptest.Server
	t testing.TB

	mu            sync.Mutex
	calls         map[string]int
	setCSRFCookie bool
	refreshStatus int
	refreshToken  string
	rejectAll     bool
	revoked       map[string]bool
	issued        map[string]bool
	sessions      map[string]bool
	accounts      map[string]*account
	images        map[int]*image
	processed     map[int]*processedImage
	models        map[int]model
	nextID        int
}

// NewServer starts a fake API seeded with one account ("ada" / "Str0ng!pass")
// and two models. It is closed when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		t:             t,
		calls:         make(map[string]int),
		setCSRFCookie: true,
		refreshStatus: http.StatusOK,
		revoked:       make(map[string]bool),
		issued:        make(map[string]bool),
		sessions:      make(map[string]bool),
		accounts:      make(map[string]*account),
		images:        make(map[int]*image),
		processed:     make(map[int]*processedImage),
		models: map[int]model{
			1: {ID: 1, Name: "EdgeNet", Type: "segmentation", Description: "Edge detection", Version: "1.0", Accuracy: 0.91, Category: "Vision"},
			2: {ID: 2, Name: "UpScaler", Type: "super_resolution", Description: "4x upscaling", Version: "2.1", Accuracy: 0.87, Category: "Enhancement"},
		},
		nextID: 1,
	}
	s.accounts["ada"] = &account{ID: 1, Email: "ada@example.com", Username: "ada", Password: "Str0ng!pass", FirstName: "Ada", LastName: "Lovelace", Theme: "systemdefault"}

	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Server.Close)
	return s
}

// APIURL is the base URL clients should be configured with.
func (s *Server) APIURL() string {
	return s.Server.URL + BasePath
}

// Config points DEEPSIGHT_API_URL at the server for the rest of the test and
// returns an environment backed config.
func (s *Server) Config(t *testing.T) config.Config {
	t.Helper()
	t.Setenv("DEEPSIGHT_API_URL", s.APIURL())
	t.Setenv("DEEPSIGHT_REQUEST_TIMEOUT", "5s")
	return config.New()
}

// Calls returns how many times the named endpoint was hit (see Call* constants).
func (s *Server) Calls(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[name]
}

// SetCSRFCookie controls whether the health probe sets the CSRF cookie.
func (s *Server) SetCSRFCookie(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setCSRFCookie = enabled
}

// SetRefreshResponse makes the refresh endpoint answer with status. With a
// 2xx status the request still needs a valid refresh cookie; a non-empty
// accessToken is then returned and accepted by protected routes, an empty one
// mints a fresh token per call.
func (s *Server) SetRefreshResponse(status int, accessToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshStatus = status
	s.refreshToken = accessToken
}

// StartSession creates a server session as a login would and returns its
// refresh cookie, for tests that put it in a cookie jar directly.
func (s *Server) StartSession() *http.Cookie {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startSessionLocked()
}

// EndSession invalidates every refresh cookie issued so far.
func (s *Server) EndSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]bool)
}

func (s *Server) startSessionLocked() *http.Cookie {
	id := newCSRFToken()
	s.sessions[id] = true
	return &http.Cookie{Name: RefreshCookieName, Value: id, Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode}
}

// hasSessionLocked checks the refresh cookie of r.
func (s *Server) hasSessionLocked(r *http.Request) bool {
	cookie, err := r.Cookie(RefreshCookieName)
	return err == nil && s.sessions[cookie.Value]
}

// RejectAllTokens makes every protected route answer 401.
func (s *Server) RejectAllTokens(reject bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectAll = reject
}

// Revoke makes protected routes reject accessToken even if it is unexpired.
func (s *Server) Revoke(accessToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[accessToken] = true
}

// AddImage stores an uploaded image for the seeded account and returns its id.
func (s *Server) AddImage(name string, data []byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addImageLocked(name, data)
}

func (s *Server) addImageLocked(name string, data []byte) int {
	id := s.nextID
	s.nextID++
	format := "png"
	if i := strings.LastIndex(name, "."); i >= 0 {
		format = strings.ToLower(name[i+1:])
	}
	s.images[id] = &image{ID: id, Name: name, Format: format, Data: data, Uploaded: time.Now().UTC()}
	return id
}

func (s *Server) count(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[name]++
}

// mintLocked issues a live access token and remembers it.
func (s *Server) mintLocked() string {
	tok := tokentest.Mint(s.t, time.Now().Add(time.Hour))
	s.issued[tok] = true
	return tok
}

// authorized checks the bearer token of r. Issued tokens are accepted even if
// they are not JWTs, any other token must be an unexpired JWT.
func (s *Server) authorized(r *http.Request) bool {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || raw == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rejectAll || s.revoked[raw] {
		return false
	}
	return s.issued[raw] || token.IsLive(raw, time.Now())
}

// csrfValid checks the double submit: header must equal the cookie.
func csrfValid(r *http.Request) bool {
	cookie, err := r.Cookie(CSRFCookieName)
	if err != nil || cookie.Value == "" {
		return false
	}
	return r.Header.Get(CSRFHeaderName) == cookie.Value
}

func newCSRFToken() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeEnvelope(w http.ResponseWriter, status int, message string, data interface{}) {
	if data == nil {
		data = map[string]interface{}{}
	}
	writeJSON(w, status, map[string]interface{}{
		"success": status >= 200 && status <= 299,
		"message": message,
		"data":    data,
	})
}
