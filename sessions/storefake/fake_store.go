package storefake

import (
	"context"
	"sync"

	"github.com/jrsteele09/deepsight-client/sessions"
)

var _ sessions.Store = (*FakeStore)(nil)

// FakeStore is an in-memory Store that records how it was used and can be
// told to fail.
type FakeStore struct {
	lock sync.Mutex

	token string

	Loads  int
	Saves  int
	Clears int

	LoadErr  error
	SaveErr  error
	ClearErr error
}

func NewFakeStore(token string) *FakeStore {
	return &FakeStore{token: token}
}

func (s *FakeStore) Load(_ context.Context) (string, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.Loads++
	if s.LoadErr != nil {
		return "", s.LoadErr
	}
	return s.token, nil
}

func (s *FakeStore) Save(_ context.Context, accessToken string) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.Saves++
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.token = accessToken
	return nil
}

func (s *FakeStore) Clear(_ context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.Clears++
	if s.ClearErr != nil {
		return s.ClearErr
	}
	s.token = ""
	return nil
}

// Token returns the stored value without counting as a Load.
func (s *FakeStore) Token() string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.token
}
