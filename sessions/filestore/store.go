// Package filestore persists the access token and the server session cookies
// to a JSON file so a session survives process restarts. When a passphrase is
// configured the contents are sealed with NaCl secretbox before they are
// written.
package filestore

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/jrsteele09/deepsight-client/internal/errors"
	"github.com/jrsteele09/deepsight-client/sessions"
	"golang.org/x/crypto/nacl/secretbox"
)

var (
	_ sessions.Store       = (*Store)(nil)
	_ sessions.CookieStore = (*Store)(nil)
)

const nonceSize = 24

type payload struct {
	Access  string         `json:"access,omitempty"`
	Cookies []*http.Cookie `json:"cookies,omitempty"`
}

type contents struct {
	payload
	Sealed string `json:"sealed,omitempty"`
}

type Store struct {
	mu   sync.Mutex
	path string
	key  *[32]byte // nil when contents are stored in the clear
}

// New returns a Store writing to path. An empty passphrase disables sealing.
func New(path, passphrase string) *Store {
	s := &Store{path: path}
	if passphrase != "" {
		k := sha256.Sum256([]byte(passphrase))
		s.key = &k
	}
	return s
}

func (s *Store) Load(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.read()
	if err != nil {
		return "", err
	}
	return p.Access, nil
}

func (s *Store) Save(_ context.Context, accessToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.read()
	if err != nil {
		p = payload{}
	}
	p.Access = accessToken
	return s.write(p)
}

func (s *Store) LoadCookies(_ context.Context) ([]*http.Cookie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.read()
	if err != nil {
		return nil, err
	}
	return p.Cookies, nil
}

func (s *Store) SaveCookies(_ context.Context, cookies []*http.Cookie) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.read()
	if err != nil {
		p = payload{}
	}
	p.Cookies = cookies
	return s.write(p)
}

// Clear removes the file, token and cookies alike.
func (s *Store) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Wrapf(err, "[filestore] remove %s", s.path)
	}
	return nil
}

func (s *Store) read() (payload, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return payload{}, nil
	}
	if err != nil {
		return payload{}, errors.Wrapf(err, "[filestore] read %s", s.path)
	}

	var c contents
	if err := json.Unmarshal(data, &c); err != nil {
		return payload{}, errors.Wrapf(err, "[filestore] decode %s", s.path)
	}
	if c.Sealed == "" {
		return c.payload, nil
	}
	return s.open(c.Sealed)
}

func (s *Store) write(p payload) error {
	c := contents{payload: p}
	if s.key != nil {
		sealed, err := s.seal(p)
		if err != nil {
			return err
		}
		c = contents{Sealed: sealed}
	}

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("[filestore] encode: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return errors.Wrapf(err, "[filestore] create folder for %s", s.path)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.Wrapf(err, "[filestore] write %s", tmp)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrapf(err, "[filestore] rename %s", tmp)
	}
	return nil
}

func (s *Store) seal(p payload) (string, error) {
	plain, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("[filestore] encode: %w", err)
	}

	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("[filestore] failed to generate nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], plain, &nonce, s.key)
	return base64.RawURLEncoding.EncodeToString(box), nil
}

func (s *Store) open(sealed string) (payload, error) {
	if s.key == nil {
		return payload{}, fmt.Errorf("%w: token is sealed but no passphrase is configured", errors.ErrStoreUnavailable)
	}

	box, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil || len(box) < nonceSize {
		return payload{}, fmt.Errorf("%w: malformed sealed token", errors.ErrStoreUnavailable)
	}

	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])
	plain, ok := secretbox.Open(nil, box[nonceSize:], &nonce, s.key)
	if !ok {
		return payload{}, fmt.Errorf("%w: failed to open sealed token", errors.ErrStoreUnavailable)
	}

	var p payload
	if err := json.Unmarshal(plain, &p); err != nil {
		return payload{}, fmt.Errorf("%w: malformed sealed token", errors.ErrStoreUnavailable)
	}
	return p, nil
}
