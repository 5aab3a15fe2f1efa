package sessions_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/deepsight-client/sessions"
	"github.com/stretchr/testify/require"
)

func TestSession_Authenticated(t *testing.T) {
	now := time.Now()

	require.True(t, sessions.Session{AccessToken: "a.b.c", Expiry: now.Add(time.Minute)}.Authenticated(now))
	require.False(t, sessions.Session{AccessToken: "a.b.c", Expiry: now.Add(-time.Minute)}.Authenticated(now))
	require.False(t, sessions.Session{AccessToken: "a.b.c", Expiry: now}.Authenticated(now))
	require.False(t, sessions.Session{Expiry: now.Add(time.Minute)}.Authenticated(now))
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := sessions.NewMemoryStore()

	t.Run("empty store", func(t *testing.T) {
		v, err := s.Load(ctx)
		require.NoError(t, err)
		require.Empty(t, v)
	})

	t.Run("save and load", func(t *testing.T) {
		require.NoError(t, s.Save(ctx, "token-1"))
		v, err := s.Load(ctx)
		require.NoError(t, err)
		require.Equal(t, "token-1", v)
	})

	t.Run("clear", func(t *testing.T) {
		require.NoError(t, s.Clear(ctx))
		v, err := s.Load(ctx)
		require.NoError(t, err)
		require.Empty(t, v)
	})

	t.Run("concurrent access", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = s.Save(ctx, "token")
				_, _ = s.Load(ctx)
			}()
		}
		wg.Wait()
		v, err := s.Load(ctx)
		require.NoError(t, err)
		require.Equal(t, "token", v)
	})
}
